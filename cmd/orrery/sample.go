package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/model"
)

func newSampleCmd(a *app) *cobra.Command {
	var rows int
	cmd := &cobra.Command{
		Use:   "sample [body]",
		Short: "Print sampled orbit paths and their radius statistics",
		Long: `Without arguments, summarises every body's sampled path. With a body ID,
prints evenly spaced samples from that body's path.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.loadCatalog(cmd.Context())
			if err != nil {
				return err
			}
			n := a.cfg.Simulation.PointCount
			if len(args) == 0 {
				return a.printSummary(cat, n)
			}
			body, ok := cat.Body(args[0])
			if !ok {
				return fmt.Errorf("no body %q in catalog %q", args[0], cat.Name)
			}
			if body.Central {
				return fmt.Errorf("%q is the central body and has no orbit", args[0])
			}
			return a.printSamples(body, n, rows)
		},
	}
	cmd.Flags().IntVar(&rows, "rows", 12, "samples to print for a single body")
	return cmd
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...)
}

func ff(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }

func (a *app) printSummary(cat *core.Catalog, n int) error {
	t := newTable("body", "parent", "a", "e", "periapsis", "apoapsis", "min r", "max r", "mean r", "length")
	for _, b := range cat.Bodies {
		path, err := core.SampleOrbit(b.Elements, n)
		if err != nil {
			return err
		}
		st := core.SummarizePath(path)
		parent := b.ParentID
		if parent == "" {
			parent = cat.Central.ID
		}
		t.Row(b.ID, parent,
			ff(b.Elements.SemiMajorAxis), ff(b.Elements.Eccentricity),
			ff(b.Elements.Periapsis()), ff(b.Elements.Apoapsis()),
			ff(st.MinRadius), ff(st.MaxRadius), ff(st.MeanRadius), ff(st.Circumference),
		)
	}
	fmt.Fprintf(a.out, "catalog %s (%s, %d samples per orbit)\n", cat.Name, cat.Unit, n)
	fmt.Fprintln(a.out, t.String())
	return nil
}

func (a *app) printSamples(b model.Body, n, rows int) error {
	path, err := core.SampleOrbit(b.Elements, n)
	if err != nil {
		return err
	}
	if rows <= 0 || rows > n {
		rows = n
	}
	t := newTable("i", "ν (deg)", "r", "x", "y", "z")
	for k := 0; k < rows; k++ {
		i := k * n / rows
		p := path.At(i)
		nu := 360 * float64(i) / float64(n)
		t.Row(strconv.Itoa(i), strconv.FormatFloat(nu, 'f', 2, 64),
			ff(p.Len()), ff(p.X()), ff(p.Y()), ff(p.Z()))
	}
	st := core.SummarizePath(path)
	fmt.Fprintf(a.out, "%s: a=%s e=%s samples=%d\n", b.ID, ff(b.Elements.SemiMajorAxis), ff(b.Elements.Eccentricity), n)
	fmt.Fprintln(a.out, t.String())
	fmt.Fprintf(a.out, "radius min %s max %s mean %s σ %s (periapsis %s, apoapsis %s)\n",
		ff(st.MinRadius), ff(st.MaxRadius), ff(st.MeanRadius), ff(st.StdDevRadius),
		ff(b.Elements.Periapsis()), ff(b.Elements.Apoapsis()))
	if st.MinRadius < b.Elements.Periapsis()-1e-9 || st.MaxRadius > b.Elements.Apoapsis()+1e-9 {
		return fmt.Errorf("sampled radii escape [%v, %v]", b.Elements.Periapsis(), b.Elements.Apoapsis())
	}
	return nil
}
