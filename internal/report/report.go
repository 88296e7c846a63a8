// Package report renders generated models and stored runs for the terminal.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/san-kum/dynblocks/internal/codegen"
	"github.com/san-kum/dynblocks/internal/sim"
	"github.com/san-kum/dynblocks/internal/storage"
)

var (
	title  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	label  = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	value  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dimmer = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))

	header = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("255")).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(lipgloss.Color("238"))
)

// Model writes the calling convention, equations and mass matrix of m.
func Model(w io.Writer, m *codegen.Model) error {
	var sb strings.Builder
	sb.WriteString(header.Render(m.Name) + "\n")
	field(&sb, "states", strings.Join(codegen.Names(m.States), ", "))
	field(&sb, "inputs", strings.Join(codegen.Names(m.Inputs), ", "))
	field(&sb, "params", strings.Join(codegen.Names(m.Params), ", "))

	mass := yellow.Render(m.Mass.String())
	if m.Mass.IsIdentity() {
		mass = green.Render(m.Mass.String())
	}
	field(&sb, "mass", mass)

	sb.WriteString("\n" + title.Render("equations") + "\n")
	width := len(fmt.Sprint(len(m.Equations)))
	for i, eq := range m.Equations {
		kind := "alg"
		if m.Mass.At(i, i) != 0 {
			kind = "ode"
		}
		fmt.Fprintf(&sb, "  %s %s %s\n",
			dimmer.Render(fmt.Sprintf("%*d", width, i+1)),
			label.Render(kind),
			value.Render(eq.String()))
	}

	if len(m.Observed) > 0 {
		sb.WriteString("\n" + title.Render("observed") + "\n")
		for _, eq := range m.Observed {
			sb.WriteString("  " + value.Render(eq.String()) + "\n")
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// Result writes the final state and metrics of a run.
func Result(w io.Writer, m *codegen.Model, res *sim.Result, metrics map[string]float64, elapsed time.Duration) error {
	var sb strings.Builder
	sb.WriteString(header.Render(m.Name+" run") + "\n")
	field(&sb, "steps", humanize.Comma(int64(res.StepsTaken)))
	if n := len(res.Times); n > 0 {
		field(&sb, "t_end", fmt.Sprintf("%.6g", res.Times[n-1]))
	}
	field(&sb, "elapsed", elapsed.Round(time.Microsecond).String())

	final := res.Final()
	if final != nil {
		sb.WriteString("\n" + title.Render("final state") + "\n")
		names := codegen.Names(m.States)
		pad := longest(names)
		for i, name := range names {
			if i >= len(final) {
				break
			}
			fmt.Fprintf(&sb, "  %s %s\n",
				label.Render(fmt.Sprintf("%-*s", pad, name)),
				value.Render(fmt.Sprintf("% .6g", final[i])))
		}
	}

	if len(metrics) > 0 {
		sb.WriteString("\n" + title.Render("metrics") + "\n")
		names := make([]string, 0, len(metrics))
		for name := range metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		pad := longest(names)
		for _, name := range names {
			fmt.Fprintf(&sb, "  %s %s\n",
				label.Render(fmt.Sprintf("%-*s", pad, name)),
				value.Render(fmt.Sprintf("%.6g", metrics[name])))
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// Runs writes one line per stored run, newest first as given.
func Runs(w io.Writer, runs []storage.RunMetadata, now time.Time) error {
	var sb strings.Builder
	if len(runs) == 0 {
		sb.WriteString(label.Render("no runs") + "\n")
		_, err := io.WriteString(w, sb.String())
		return err
	}

	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	pad := longest(ids)

	sb.WriteString(header.Render(fmt.Sprintf("%d runs", len(runs))) + "\n")
	for _, r := range runs {
		integ := r.Integrator
		if r.Adaptive {
			integ += "*"
		}
		fmt.Fprintf(&sb, "  %s %s %s %s\n",
			value.Render(fmt.Sprintf("%-*s", pad, r.ID)),
			label.Render(fmt.Sprintf("%-6s", integ)),
			dimmer.Render(humanize.Comma(int64(r.Steps))+" steps"),
			dimmer.Render(humanize.RelTime(r.Timestamp, now, "ago", "from now")))
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func field(sb *strings.Builder, name, v string) {
	if v == "" {
		v = dimmer.Render("-")
	}
	sb.WriteString(label.Render(fmt.Sprintf("%-8s", name)) + " " + v + "\n")
}

func longest(names []string) int {
	n := 0
	for _, s := range names {
		n = max(n, len(s))
	}
	return n
}
