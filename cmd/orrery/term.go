package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/internal/render/term"
	"github.com/signalsfoundry/orrery/timectrl"
)

func newTermCmd(a *app) *cobra.Command {
	var logFile string
	cmd := &cobra.Command{
		Use:   "term",
		Short: "Animate the scene in the terminal",
		Long: `Draws the scene full-screen in the terminal. Drag with the left button to
rotate, the right button to pan, and use the wheel (or +/-) to zoom.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			// The program owns the screen; logs go to a file or nowhere.
			a.log = logging.Noop()
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return fmt.Errorf("open log file: %w", err)
				}
				defer f.Close()
				a.log = logging.New(logging.Config{
					Level:  a.cfg.Log.Level,
					Format: a.cfg.Log.Format,
					Output: f,
				})
			}

			sim, err := a.newSimulation(ctx, setupOptions{
				registry: prometheus.NewRegistry(),
				mode:     timectrl.RealTime,
			})
			if err != nil {
				return err
			}

			model, err := term.New(ctx, term.Config{
				Clock:  sim.clock,
				Engine: sim.engine,
				Scene:  sim.scene,
				Input:  sim.queue,
				Lens:   sim.lens,
				Logger: a.log,
			})
			if err != nil {
				return err
			}

			program := tea.NewProgram(model,
				tea.WithContext(ctx),
				tea.WithAltScreen(),
				tea.WithMouseCellMotion(),
			)
			final, err := program.Run()
			if err != nil {
				return fmt.Errorf("terminal renderer: %w", err)
			}
			if m, ok := final.(term.Model); ok && m.Err() != nil {
				return m.Err()
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs here while the terminal UI runs")
	return cmd
}
