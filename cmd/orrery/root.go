package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/signalsfoundry/orrery/internal/config"
	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/internal/observability"
)

const appName = "orrery"

// app carries what every subcommand needs once the root pre-run has
// loaded configuration.
type app struct {
	v   *viper.Viper
	cfg *config.Config
	log logging.Logger
	out io.Writer

	configPath string
	shutdown   func(context.Context) error
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{v: config.NewViper(), out: out}

	root := &cobra.Command{
		Use:   appName,
		Short: "Animated orbits with an orbit camera",
		Long: `orrery samples each body's orbit from its Keplerian elements, moves the
body along the sampled path every frame and renders the scene through a
camera you rotate, pan and zoom with the mouse.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			observability.ShutdownWithTimeout(context.Background(), a.shutdown, a.log)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default ./orrery.yaml or ~/.orrery/orrery.yaml)")
	flags.String("catalog", "", "builtin catalog name")
	flags.String("catalog-file", "", "path to a catalog YAML file (overrides --catalog)")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.Int("points", 0, "samples per orbit")
	bind(a.v, flags, map[string]string{
		"catalog.name":           "catalog",
		"catalog.path":           "catalog-file",
		"log.level":              "log-level",
		"simulation.point_count": "points",
	})

	root.AddCommand(
		newTermCmd(a),
		newServeCmd(a),
		newSnapshotCmd(a),
		newSampleCmd(a),
		newCatalogsCmd(a),
	)
	return root
}

func (a *app) init(ctx context.Context) error {
	cfg, err := config.Load(a.v, a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	if a.log == nil {
		a.log = logging.New(logging.Config{
			Level:     cfg.Log.Level,
			Format:    cfg.Log.Format,
			AddSource: cfg.Log.AddSource,
		})
	}

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
	}, a.log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	a.shutdown = shutdown
	return nil
}

// bind maps viper keys onto flags so a changed flag beats env and file
// values.
func bind(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if f := fs.Lookup(name); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}
}
