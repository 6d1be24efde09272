package solver

import (
	"fmt"
	"strings"
)

// Parameters selects the Krylov method and preconditioner of a solve. Input
// files name them with the usual ksp_/pc_ option spelling.
type Parameters struct {
	KSPType          string  `json:"ksp_type"`
	PCType           string  `json:"pc_type"`
	RTol             float64 `json:"ksp_rtol"`
	ATol             float64 `json:"ksp_atol"`
	MaxIt            int     `json:"ksp_max_it"`
	MGSmoothingSteps int     `json:"mg_levels_ksp_max_it"`
	MGDamping        float64 `json:"mg_levels_damping"`
}

func DefaultParameters() Parameters {
	return Parameters{
		KSPType:          "cg",
		PCType:           "jacobi",
		RTol:             1.e-10,
		ATol:             1.e-14,
		MaxIt:            1000,
		MGSmoothingSteps: 2,
		MGDamping:        2. / 3.,
	}
}

// Validate fills unset numeric fields with defaults and rejects unknown
// method names.
func (p *Parameters) Validate() error {
	def := DefaultParameters()
	p.KSPType = strings.ToLower(p.KSPType)
	p.PCType = strings.ToLower(p.PCType)
	if p.KSPType == "" {
		p.KSPType = def.KSPType
	}
	if p.PCType == "" {
		p.PCType = def.PCType
	}
	switch p.KSPType {
	case "preonly", "richardson", "cg":
	default:
		return fmt.Errorf("unknown ksp_type %q", p.KSPType)
	}
	switch p.PCType {
	case "none", "jacobi", "lu", "mg":
	default:
		return fmt.Errorf("unknown pc_type %q", p.PCType)
	}
	if p.RTol <= 0 {
		p.RTol = def.RTol
	}
	if p.ATol <= 0 {
		p.ATol = def.ATol
	}
	if p.MaxIt <= 0 {
		p.MaxIt = def.MaxIt
	}
	if p.MGSmoothingSteps <= 0 {
		p.MGSmoothingSteps = def.MGSmoothingSteps
	}
	if p.MGDamping <= 0 {
		p.MGDamping = def.MGDamping
	}
	return nil
}

func (p Parameters) String() string {
	return fmt.Sprintf("ksp_type=%s pc_type=%s rtol=%g atol=%g max_it=%d",
		p.KSPType, p.PCType, p.RTol, p.ATol, p.MaxIt)
}
