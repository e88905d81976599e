// Package lptest provides a stand-in for the cbc binary so the process
// backend can be exercised end to end without COIN-OR installed.
package lptest

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// FakeCBC is a shell script that behaves like cbc from the caller's side: it
// records its arguments and the model file it was given, then copies a canned
// answer to the path that follows -solution.
type FakeCBC struct {
	// Path is the script, usable as lp.CBC.Path.
	Path string
	dir  string
}

const script = `#!/bin/sh
printf '%%s\n' "$@" > %[1]q
cp "$1" %[2]q
while [ $# -gt 0 ]; do
	if [ "$1" = "-solution" ]; then
		cp %[3]q "$2"
	fi
	shift
done
`

// NewFakeCBC writes a fake cbc that answers every solve with solution, the
// text of a cbc solution file (see Solution).
func NewFakeCBC(t testing.TB, solution string) *FakeCBC {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake cbc is a shell script")
	}
	dir := t.TempDir()
	f := &FakeCBC{Path: filepath.Join(dir, "cbc"), dir: dir}

	answer := filepath.Join(dir, "answer.txt")
	if err := os.WriteFile(answer, []byte(solution), 0o644); err != nil {
		t.Fatal(err)
	}
	body := fmt.Sprintf(script, filepath.Join(dir, "args.txt"), filepath.Join(dir, "model.lp"), answer)
	if err := os.WriteFile(f.Path, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return f
}

// Args returns the arguments of the last run, one per element.
func (f *FakeCBC) Args(t testing.TB) []string {
	t.Helper()
	return strings.Split(strings.TrimRight(f.read(t, "args.txt"), "\n"), "\n")
}

// Model returns the LP file of the last run.
func (f *FakeCBC) Model(t testing.TB) string {
	t.Helper()
	return f.read(t, "model.lp")
}

func (f *FakeCBC) read(t testing.TB, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.dir, name))
	if err != nil {
		t.Fatalf("fake cbc did not run: %v", err)
	}
	return string(data)
}

// Solution formats a cbc solution file with the given status line and one
// line per non-zero column value. Columns are numbered from zero, as model
// columns are.
func Solution(status string, values []float64) string {
	var b strings.Builder
	b.WriteString(status + "\n")
	for col, v := range values {
		if v == 0 {
			continue
		}
		fmt.Fprintf(&b, "%7d x%-20d %15g %15g\n", col, col+1, v, 0.0)
	}
	return b.String()
}
