package InputParameters

import (
	"fmt"
	"io"

	"github.com/ghodss/yaml"
	"github.com/notargets/gomg/fem"
	"github.com/notargets/gomg/solver"
)

// Parameters obtained from the YAML input file. YAML is converted to JSON
// before decoding, so the json tags name the keys.
type InputParameters struct {
	Title       string  `json:"Title"`
	Cells       int     `json:"Cells"` // Cells in the coarsest mesh
	XMin        float64 `json:"XMin"`
	XMax        float64 `json:"XMax"`
	Refinements int     `json:"Refinements"`
	Ranks       int     `json:"Ranks"`
	Family      string  `json:"Family"` // Lagrange or DG
	Degree      int     `json:"Degree"`
	Stiffness   float64 `json:"Stiffness"`
	Mass        float64 `json:"Mass"`

	Solver solver.Parameters `json:"Solver"`
}

func Defaults() InputParameters {
	return InputParameters{
		Title:       "gomg",
		Cells:       2,
		XMin:        0,
		XMax:        1,
		Refinements: 3,
		Ranks:       1,
		Family:      "Lagrange",
		Degree:      1,
		Stiffness:   1,
		Mass:        1,
		Solver:      solver.DefaultParameters(),
	}
}

// Parse overlays the YAML in data on the receiver and checks the result.
func (ip *InputParameters) Parse(data []byte) (err error) {
	if err = yaml.Unmarshal(data, ip); err != nil {
		return
	}
	return ip.Validate()
}

func (ip *InputParameters) Validate() (err error) {
	switch {
	case ip.Cells < 1:
		return fmt.Errorf("cells must be positive, have %d", ip.Cells)
	case ip.XMax <= ip.XMin:
		return fmt.Errorf("empty domain [%g,%g]", ip.XMin, ip.XMax)
	case ip.Refinements < 0:
		return fmt.Errorf("refinements must not be negative, have %d", ip.Refinements)
	case ip.Ranks < 1:
		return fmt.Errorf("ranks must be positive, have %d", ip.Ranks)
	}
	if _, err = ip.Element(); err != nil {
		return
	}
	return ip.Solver.Validate()
}

func (ip *InputParameters) Element() (fe fem.FiniteElement, err error) {
	var family fem.Family
	if family, err = fem.ParseFamily(ip.Family); err != nil {
		return
	}
	fe = fem.NewFiniteElement(family, ip.Degree)
	err = fe.Validate()
	return
}

// Marshal writes the parameters back out as YAML.
func (ip *InputParameters) Marshal() ([]byte, error) {
	return yaml.Marshal(ip)
}

func (ip *InputParameters) Print(w io.Writer) {
	fmt.Fprintf(w, "\"%s\"\t\t= Title\n", ip.Title)
	fmt.Fprintf(w, "[%d]\t\t\t= Coarse Cells\n", ip.Cells)
	fmt.Fprintf(w, "[%8.5f,%8.5f]\t= Domain\n", ip.XMin, ip.XMax)
	fmt.Fprintf(w, "[%d]\t\t\t= Refinements\n", ip.Refinements)
	fmt.Fprintf(w, "[%d]\t\t\t= Ranks\n", ip.Ranks)
	fmt.Fprintf(w, "[%s%d]\t\t= Element\n", ip.Family, ip.Degree)
	fmt.Fprintf(w, "%8.5f,%8.5f\t= Stiffness, Mass\n", ip.Stiffness, ip.Mass)
	fmt.Fprintf(w, "%s\t= Solver\n", ip.Solver)
}
