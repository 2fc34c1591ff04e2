package main

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/orrery/core"
)

func newCatalogsCmd(a *app) *cobra.Command {
	var describe bool
	cmd := &cobra.Command{
		Use:   "catalogs",
		Short: "List builtin catalogs, or describe the selected one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !describe {
				for _, name := range core.BuiltinCatalogNames() {
					marker := " "
					if name == a.cfg.Catalog.Name {
						marker = "*"
					}
					fmt.Fprintf(a.out, "%s %s\n", marker, name)
				}
				return nil
			}

			cat, err := a.loadCatalog(cmd.Context())
			if err != nil {
				return err
			}
			deg := func(rad float64) string { return ff(rad * 180 / math.Pi) }
			t := newTable("id", "name", "parent", "a", "e", "i°", "Ω°", "ω°", "color")
			t.Row(cat.Central.ID, cat.Central.Elements.Name, "", "", "", "", "", "", cat.Central.Elements.Color.Hex())
			for _, b := range cat.Bodies {
				e := b.Elements
				t.Row(b.ID, e.Name, b.ParentID, ff(e.SemiMajorAxis), ff(e.Eccentricity),
					deg(e.Inclination), deg(e.AscendingNode), deg(e.ArgumentOfPeriapsis), e.Color.Hex())
			}
			fmt.Fprintf(a.out, "catalog %s, distances in %s\n", cat.Name, cat.Unit)
			fmt.Fprintln(a.out, t.String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&describe, "describe", false, "print the selected catalog's bodies")
	return cmd
}
