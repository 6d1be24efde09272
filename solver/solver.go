package solver

import (
	"fmt"
	"log/slog"

	"github.com/notargets/gomg/fem"
	"github.com/notargets/gomg/mg"
	"github.com/notargets/gomg/utils"
)

// LinearVariationalProblem is a(u,v) = L(v) for u in the space of U.
type LinearVariationalProblem struct {
	A fem.BilinearForm
	L fem.LinearForm
	U *fem.Function
}

type LinearVariationalSolver struct {
	Problem    *LinearVariationalProblem
	Params     Parameters
	Iterations int // Iterations used by the last Solve

	tm     *mg.TransferManager
	logger *slog.Logger
	A      utils.CSR
	b      []float64
	pc     Preconditioner
}

type Option func(s *LinearVariationalSolver)

func WithLogger(logger *slog.Logger) Option {
	return func(s *LinearVariationalSolver) {
		s.logger = logger
	}
}

// NewLinearVariationalSolver assembles the system and sets up the
// preconditioner. tm is only needed for pc_type mg.
func NewLinearVariationalSolver(problem *LinearVariationalProblem, params Parameters,
	tm *mg.TransferManager, opts ...Option) (s *LinearVariationalSolver, err error) {
	if err = params.Validate(); err != nil {
		return
	}
	V := problem.U.FunctionSpace()
	if V.IsMixed() {
		return nil, fmt.Errorf("solve on mixed space %s is not supported", V)
	}
	s = &LinearVariationalSolver{
		Problem: problem,
		Params:  params,
		tm:      tm,
		logger:  utils.DiscardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.A, err = fem.AssembleMatrix(V, problem.A); err != nil {
		return
	}
	var b *fem.Function
	if b, err = fem.AssembleVector(V, problem.L); err != nil {
		return
	}
	s.b = b.Values()
	switch params.PCType {
	case "none":
		s.pc = Identity
	case "jacobi":
		s.pc, err = Jacobi(s.A)
	case "lu":
		s.pc, err = LU(s.A)
	case "mg":
		if tm == nil {
			return nil, fmt.Errorf("pc_type mg needs a transfer manager")
		}
		var m *Multigrid
		if m, err = NewMultigrid(tm, V, problem.A, params.MGSmoothingSteps, params.MGDamping); err != nil {
			return
		}
		s.pc = m.Apply
		s.logger.Debug("multigrid preconditioner", "levels", m.Levels())
	}
	return
}

// Solve updates U, starting from its current values.
func (s *LinearVariationalSolver) Solve() (err error) {
	var (
		p = s.Params
		x = s.Problem.U.Values()
	)
	switch p.KSPType {
	case "preonly":
		if x, err = s.pc(s.b); err != nil {
			return
		}
		s.Iterations = 1
	case "richardson":
		s.Iterations, err = Richardson(s.A, s.b, x, s.pc, p.RTol, p.ATol, p.MaxIt)
	case "cg":
		s.Iterations, err = CG(s.A, s.b, x, s.pc, p.RTol, p.ATol, p.MaxIt)
	}
	if err != nil {
		return
	}
	s.Problem.U.SetValues(x)
	s.logger.Info("linear solve converged", "ksp", p.KSPType, "pc", p.PCType,
		"iterations", s.Iterations, "space", s.Problem.U.FunctionSpace().String())
	return
}

// Residual returns ||b - A u|| for the current U.
func (s *LinearVariationalSolver) Residual() float64 {
	return utils.NewVector(len(s.b), residual(s.A, s.b, s.Problem.U.Values())).Norm()
}
