package lp

import (
	"bufio"
	"context"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrSolverUnavailable is returned when the solver binary cannot be found.
var ErrSolverUnavailable = errors.New("solver unavailable")

// CBC runs the COIN-OR CBC binary as an external process. The model is
// written to a scratch directory in LP format and the answer is read back
// from the solution file CBC writes.
type CBC struct {
	// Path is the binary name or path. Defaults to "cbc" on PATH.
	Path string
	// WorkDir is the parent of per-solve scratch directories. Defaults to the
	// system temp directory.
	WorkDir string
	// KeepFiles leaves model.lp and solution.txt behind for inspection.
	KeepFiles bool
	// Options are extra CBC arguments placed before -solve, e.g.
	// []string{"-sec", "60"}.
	Options []string
}

func NewCBC(path string) *CBC {
	return &CBC{Path: path}
}

func (c *CBC) Name() string { return "cbc" }

// Solve writes m, runs CBC to completion and parses its solution file.
func (c *CBC) Solve(ctx context.Context, m *Model) (*Solution, error) {
	bin, err := c.lookPath()
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(c.WorkDir, "optiplan-cbc-")
	if err != nil {
		return nil, errors.Wrap(err, "create cbc work dir")
	}
	if c.KeepFiles {
		klog.V(2).InfoS("Keeping CBC files", "dir", dir)
	} else {
		defer os.RemoveAll(dir)
	}

	lpPath := filepath.Join(dir, "model.lp")
	solPath := filepath.Join(dir, "solution.txt")
	if err := writeModelFile(lpPath, m); err != nil {
		return nil, err
	}

	args := []string{lpPath}
	args = append(args, c.Options...)
	args = append(args, "-printingOptions", "all", "-solve", "-solution", solPath)

	start := time.Now()
	cmd := exec.CommandContext(ctx, bin, args...)
	out, err := cmd.CombinedOutput()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, errors.Wrap(ctxErr, "cbc interrupted")
	}
	if err != nil {
		return nil, errors.Wrapf(err, "run cbc: %s", lastLines(string(out), 5))
	}
	klog.V(4).InfoS("CBC finished", "model", m.Name, "elapsed", time.Since(start), "output", string(out))

	f, err := os.Open(solPath)
	if err != nil {
		return nil, errors.Wrap(err, "cbc wrote no solution file")
	}
	defer f.Close()

	sol, err := ParseCBCSolution(f, m)
	if err != nil {
		return nil, err
	}
	sol.Backend = c.Name()
	return sol, nil
}

func (c *CBC) lookPath() (string, error) {
	name := c.Path
	if name == "" {
		name = "cbc"
	}
	bin, err := exec.LookPath(name)
	if err != nil {
		return "", errors.Wrapf(ErrSolverUnavailable, "cbc binary %q: %v", name, err)
	}
	return bin, nil
}

func writeModelFile(path string, m *Model) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create model file")
	}
	if err := WriteLP(f, m); err != nil {
		f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "close model file")
}

// ParseCBCSolution reads a solution file written by CBC with
// "-printingOptions all":
//
//	Optimal - objective value 60.00000000
//	      0 c1                     10                      6
//	      0 x1                     10                      0
//
// Row lines carry the row activity and dual, column lines the value and
// reduced cost. Lines of violated rows or columns are prefixed with "**".
func ParseCBCSolution(r io.Reader, m *Model) (*Solution, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, errors.Wrap(err, "read cbc solution")
		}
		return nil, errors.New("empty cbc solution file")
	}
	header := strings.TrimSpace(sc.Text())
	sol := &Solution{Status: parseCBCStatus(header), Message: header}
	reported, hasObjective := parseCBCObjective(header)

	values := make([]float64, m.NumVars())
	duals := make([]float64, m.NumConstraints())
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) > 0 && fields[0] == "**" {
			fields = fields[1:]
		}
		if len(fields) < 4 {
			continue
		}
		name := fields[1]
		value, err1 := strconv.ParseFloat(fields[2], 64)
		dual, err2 := strconv.ParseFloat(fields[3], 64)
		if err1 != nil || err2 != nil {
			return nil, errors.Errorf("malformed cbc solution line %q", sc.Text())
		}
		if col, ok := parsePositional(name, "x"); ok && col < len(values) {
			values[col] = value
		} else if row, ok := parsePositional(name, "c"); ok && row < len(duals) {
			duals[row] = dual
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read cbc solution")
	}

	if sol.Status != StatusOptimal {
		return sol, nil
	}

	sol.Values = values
	sol.Objective = m.Evaluate(values)
	if hasObjective {
		sol.Objective = reported
		// Some CBC builds report maximization objectives in minimization
		// form; the duals then carry the same flipped sign.
		if m.Sense == Maximize && reported != 0 && math.Abs(reported+m.Evaluate(values)) < 1e-6*math.Max(1, math.Abs(reported)) {
			sol.Objective = -reported
			for i := range duals {
				duals[i] = -duals[i]
			}
		}
	}
	if !m.IsMIP() {
		sol.Duals = duals
	}
	return sol, nil
}

func parseCBCStatus(line string) Status {
	lower := strings.ToLower(line)
	switch {
	case strings.HasPrefix(lower, "optimal"):
		return StatusOptimal
	case strings.HasPrefix(lower, "infeasible"),
		strings.HasPrefix(lower, "integer infeasible"),
		strings.HasPrefix(lower, "primal infeasible"):
		return StatusInfeasible
	case strings.HasPrefix(lower, "unbounded"),
		strings.HasPrefix(lower, "dual infeasible"):
		return StatusUnbounded
	case strings.HasPrefix(lower, "stopped"):
		return StatusStopped
	default:
		return StatusError
	}
}

func parseCBCObjective(line string) (float64, bool) {
	i := strings.LastIndex(line, "objective value")
	if i < 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(line[i+len("objective value"):]), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
