package lp

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// maxLineLen keeps written rows well below the 255 character limit most LP
// readers enforce.
const maxLineLen = 80

// ColumnName is the name a column gets in written model files. User labels
// such as "x[A,B,H1,H2]" are not valid LP identifiers, so files only carry
// positional names and the mapping back is done by index.
func ColumnName(col int) string { return "x" + strconv.Itoa(col+1) }

// RowName is the positional name of a constraint row in written model files.
func RowName(row int) string { return "c" + strconv.Itoa(row+1) }

// parsePositional reverses ColumnName / RowName for the given prefix.
func parsePositional(name, prefix string) (int, bool) {
	if !strings.HasPrefix(name, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(name[len(prefix):])
	if err != nil || n < 1 {
		return 0, false
	}
	return n - 1, true
}

// WriteLP writes m in CPLEX LP format.
func WriteLP(w io.Writer, m *Model) error {
	if m.NumVars() == 0 {
		return errors.Errorf("model %s has no variables", m.Name)
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "\\ %s\n", m.Name)

	if m.Sense == Maximize {
		bw.WriteString("Maximize\n")
	} else {
		bw.WriteString("Minimize\n")
	}
	writeExpr(bw, " obj:", m.Objective, "")

	bw.WriteString("Subject To\n")
	for i, c := range m.Constraints() {
		writeExpr(bw, " "+RowName(i)+":", c.Terms, fmt.Sprintf(" %s %s", c.Sense, formatNumber(c.RHS)))
	}

	var general, binary []string
	var bounded []int
	for col, v := range m.Vars() {
		switch v.Type {
		case Integer:
			general = append(general, ColumnName(col))
		case Binary:
			binary = append(binary, ColumnName(col))
			continue
		}
		if v.Lower != 0 || !math.IsInf(v.Upper, 1) {
			bounded = append(bounded, col)
		}
	}

	if len(bounded) > 0 {
		bw.WriteString("Bounds\n")
		for _, col := range bounded {
			v := m.Var(col)
			if math.IsInf(v.Upper, 1) {
				fmt.Fprintf(bw, " %s >= %s\n", ColumnName(col), formatNumber(v.Lower))
				continue
			}
			fmt.Fprintf(bw, " %s <= %s <= %s\n", formatNumber(v.Lower), ColumnName(col), formatNumber(v.Upper))
		}
	}
	writeNames(bw, "General", general)
	writeNames(bw, "Binary", binary)
	bw.WriteString("End\n")

	return errors.Wrap(bw.Flush(), "write lp")
}

// writeExpr writes "<head> <terms><tail>", wrapping long expressions onto
// continuation lines. An empty expression is written as "0 x1".
func writeExpr(bw *bufio.Writer, head string, terms []Term, tail string) {
	line := head
	wrote := false
	for _, t := range terms {
		if t.Coef == 0 {
			continue
		}
		tok := formatTerm(t, !wrote)
		if len(line)+len(tok) > maxLineLen {
			bw.WriteString(line + "\n")
			line = " "
		}
		line += tok
		wrote = true
	}
	if !wrote {
		line += " 0 " + ColumnName(0)
	}
	if len(line)+len(tail) > maxLineLen {
		bw.WriteString(line + "\n")
		line = " "
	}
	bw.WriteString(line + tail + "\n")
}

func formatTerm(t Term, first bool) string {
	name := ColumnName(t.Col)
	coef := t.Coef
	sign := "+"
	if coef < 0 {
		sign = "-"
		coef = -coef
	}
	var s string
	if coef == 1 {
		s = name
	} else {
		s = formatNumber(coef) + " " + name
	}
	if first && sign == "+" {
		return " " + s
	}
	return " " + sign + " " + s
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeNames(bw *bufio.Writer, section string, names []string) {
	if len(names) == 0 {
		return
	}
	bw.WriteString(section + "\n")
	line := ""
	for _, n := range names {
		if len(line)+len(n)+1 > maxLineLen {
			bw.WriteString(line + "\n")
			line = ""
		}
		line += " " + n
	}
	bw.WriteString(line + "\n")
}
