// Package config loads orrery settings from defaults, an optional YAML file
// and ORRERY_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// ORRERY_SIMULATION_POINT_COUNT.
const EnvPrefix = "ORRERY"

// Config is the full application configuration.
type Config struct {
	Catalog    CatalogConfig    `yaml:"catalog" mapstructure:"catalog"`
	Simulation SimulationConfig `yaml:"simulation" mapstructure:"simulation"`
	Camera     CameraConfig     `yaml:"camera" mapstructure:"camera"`
	Serve      ServeConfig      `yaml:"serve" mapstructure:"serve"`
	Snapshot   SnapshotConfig   `yaml:"snapshot" mapstructure:"snapshot"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Tracing    TracingConfig    `yaml:"tracing" mapstructure:"tracing"`
}

// CatalogConfig selects the bodies to simulate. Path wins over Name.
type CatalogConfig struct {
	Name  string `yaml:"name" mapstructure:"name"`
	Path  string `yaml:"path" mapstructure:"path"`
	Epoch string `yaml:"epoch" mapstructure:"epoch"`
}

type SimulationConfig struct {
	PointCount    int     `yaml:"point_count" mapstructure:"point_count"`
	SpeedConstant float64 `yaml:"speed_constant" mapstructure:"speed_constant"`
	FrameRate     int     `yaml:"frame_rate" mapstructure:"frame_rate"`
}

// CameraConfig holds the starting pose, lens and controller tuning.
type CameraConfig struct {
	Position    []float64 `yaml:"position" mapstructure:"position"`
	Target      []float64 `yaml:"target" mapstructure:"target"`
	FOV         float64   `yaml:"fov" mapstructure:"fov"`
	Near        float64   `yaml:"near" mapstructure:"near"`
	Far         float64   `yaml:"far" mapstructure:"far"`
	RotateSpeed float64   `yaml:"rotate_speed" mapstructure:"rotate_speed"`
	ZoomSpeed   float64   `yaml:"zoom_speed" mapstructure:"zoom_speed"`
	PanSpeed    float64   `yaml:"pan_speed" mapstructure:"pan_speed"`
	MinRadius   float64   `yaml:"min_radius" mapstructure:"min_radius"`
	MaxRadius   float64   `yaml:"max_radius" mapstructure:"max_radius"`
}

// PositionVec returns Position as a vector. Validate guarantees length 3.
func (c CameraConfig) PositionVec() mgl64.Vec3 { return toVec3(c.Position) }

// TargetVec returns Target as a vector.
func (c CameraConfig) TargetVec() mgl64.Vec3 { return toVec3(c.Target) }

func toVec3(v []float64) mgl64.Vec3 {
	var out mgl64.Vec3
	copy(out[:], v)
	return out
}

type ServeConfig struct {
	Addr          string `yaml:"addr" mapstructure:"addr"`
	MetricsAddr   string `yaml:"metrics_addr" mapstructure:"metrics_addr"`
	QueueCapacity int    `yaml:"queue_capacity" mapstructure:"queue_capacity"`
	MaxClients    int    `yaml:"max_clients" mapstructure:"max_clients"`
}

type SnapshotConfig struct {
	Width  int    `yaml:"width" mapstructure:"width"`
	Height int    `yaml:"height" mapstructure:"height"`
	Frames int    `yaml:"frames" mapstructure:"frames"`
	Output string `yaml:"output" mapstructure:"output"`
}

type LogConfig struct {
	Level     string `yaml:"level" mapstructure:"level"`
	Format    string `yaml:"format" mapstructure:"format"`
	AddSource bool   `yaml:"add_source" mapstructure:"add_source"`
}

type TracingConfig struct {
	Enabled     bool    `yaml:"enabled" mapstructure:"enabled"`
	Exporter    string  `yaml:"exporter" mapstructure:"exporter"`
	Endpoint    string  `yaml:"endpoint" mapstructure:"endpoint"`
	ServiceName string  `yaml:"service_name" mapstructure:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio" mapstructure:"sample_ratio"`
}

// SetDefaults registers every key with its default so environment
// overrides are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("catalog.name", "solar-system")
	v.SetDefault("catalog.path", "")
	v.SetDefault("catalog.epoch", "")

	v.SetDefault("simulation.point_count", 1000)
	v.SetDefault("simulation.speed_constant", 0.01)
	v.SetDefault("simulation.frame_rate", 60)

	v.SetDefault("camera.position", []float64{0, 3, 10})
	v.SetDefault("camera.target", []float64{0, 0, 0})
	v.SetDefault("camera.fov", 75.0)
	v.SetDefault("camera.near", 0.1)
	v.SetDefault("camera.far", 1000.0)
	v.SetDefault("camera.rotate_speed", 1.0)
	v.SetDefault("camera.zoom_speed", 1.2)
	v.SetDefault("camera.pan_speed", 1.0)
	v.SetDefault("camera.min_radius", 0.0)
	v.SetDefault("camera.max_radius", 0.0)

	v.SetDefault("serve.addr", ":8080")
	v.SetDefault("serve.metrics_addr", ":9090")
	v.SetDefault("serve.queue_capacity", 256)
	v.SetDefault("serve.max_clients", 64)

	v.SetDefault("snapshot.width", 800)
	v.SetDefault("snapshot.height", 600)
	v.SetDefault("snapshot.frames", 0)
	v.SetDefault("snapshot.output", "orrery.png")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.add_source", false)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.service_name", "orrery")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (or orrery.yaml from the working directory and
// ~/.orrery when path is empty) on top of the defaults in v. A missing
// search-path file is not an error; a missing explicit path is.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = NewViper()
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("orrery")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".orrery"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks ranges that would otherwise fail deep inside setup.
func (c *Config) Validate() error {
	if c.Catalog.Name == "" && c.Catalog.Path == "" {
		return fmt.Errorf("catalog name or path is required")
	}
	if c.Simulation.PointCount < 3 {
		return fmt.Errorf("simulation.point_count must be at least 3, got %d", c.Simulation.PointCount)
	}
	if c.Simulation.FrameRate <= 0 {
		return fmt.Errorf("simulation.frame_rate must be positive, got %d", c.Simulation.FrameRate)
	}
	if len(c.Camera.Position) != 3 || len(c.Camera.Target) != 3 {
		return fmt.Errorf("camera.position and camera.target need three components")
	}
	if c.Camera.PositionVec().ApproxEqual(c.Camera.TargetVec()) {
		return fmt.Errorf("camera.position must differ from camera.target")
	}
	if c.Camera.FOV <= 0 || c.Camera.FOV >= 180 {
		return fmt.Errorf("camera.fov must be in (0, 180), got %v", c.Camera.FOV)
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		return fmt.Errorf("camera clip planes must satisfy 0 < near < far")
	}
	if c.Snapshot.Width <= 0 || c.Snapshot.Height <= 0 {
		return fmt.Errorf("snapshot size must be positive")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be in [0, 1]")
	}
	return nil
}
