package main

import (
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/internal/render/snapshot"
	"github.com/signalsfoundry/orrery/timectrl"
)

func newSnapshotCmd(a *app) *cobra.Command {
	var noLabels bool
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Advance a number of frames and write the scene as PNG",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sim, err := a.newSimulation(ctx, setupOptions{
				registry: prometheus.NewRegistry(),
				mode:     timectrl.Accelerated,
			})
			if err != nil {
				return err
			}

			frames := a.cfg.Snapshot.Frames
			if frames > 0 {
				var tickErr error
				sim.clock.AddListener(func(timectrl.Frame) {
					if tickErr == nil {
						tickErr = sim.engine.Tick(ctx)
					}
				})
				<-sim.clock.Start(ctx, time.Duration(frames)*sim.clock.Interval())
				if tickErr != nil {
					return tickErr
				}
			}

			opts := snapshot.DefaultOptions
			opts.Width = a.cfg.Snapshot.Width
			opts.Height = a.cfg.Snapshot.Height
			opts.Lens = sim.lens
			opts.Labels = !noLabels

			f, err := os.Create(a.cfg.Snapshot.Output)
			if err != nil {
				return fmt.Errorf("create snapshot: %w", err)
			}
			if err := snapshot.Encode(f, sim.scene.Snapshot(), opts); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("write snapshot: %w", err)
			}

			a.log.Info(ctx, "snapshot written",
				logging.String("path", a.cfg.Snapshot.Output),
				logging.Int("frames", sim.clock.Frames()),
			)
			fmt.Fprintln(a.out, a.cfg.Snapshot.Output)
			return nil
		},
	}
	cmd.Flags().Int("frames", 0, "frames to advance before rendering")
	cmd.Flags().StringP("output", "o", "", "PNG output path")
	cmd.Flags().Int("width", 0, "image width in pixels")
	cmd.Flags().Int("height", 0, "image height in pixels")
	cmd.Flags().BoolVar(&noLabels, "no-labels", false, "omit body names")
	bind(a.v, cmd.Flags(), map[string]string{
		"snapshot.frames": "frames",
		"snapshot.output": "output",
		"snapshot.width":  "width",
		"snapshot.height": "height",
	})
	return cmd
}
