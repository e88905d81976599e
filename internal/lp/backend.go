package lp

import (
	"github.com/pkg/errors"
)

// ErrUnknownBackend is returned by NewSolver for unrecognized backend names.
var ErrUnknownBackend = errors.New("unknown solver backend")

// Options select and configure a solver backend.
type Options struct {
	// Backend is "cbc" or "simplex".
	Backend   string
	CBCPath   string
	WorkDir   string
	KeepFiles bool
}

// NewSolver returns the backend named by opts.Backend.
func NewSolver(opts Options) (Solver, error) {
	switch opts.Backend {
	case "", "cbc":
		return &CBC{Path: opts.CBCPath, WorkDir: opts.WorkDir, KeepFiles: opts.KeepFiles}, nil
	case "simplex":
		return &Simplex{}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownBackend, "%q", opts.Backend)
	}
}
