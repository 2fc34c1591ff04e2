package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/orrery/camctl"
	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/internal/observability"
	"github.com/signalsfoundry/orrery/internal/render"
	"github.com/signalsfoundry/orrery/kb"
	"github.com/signalsfoundry/orrery/timectrl"
)

// simulation is one fully wired scene: catalog, engine, camera and clock.
type simulation struct {
	catalog    *core.Catalog
	scene      *kb.SceneGraph
	controller *camctl.Controller
	queue      *camctl.Queue
	engine     *core.Engine
	clock      *timectrl.FrameClock
	metrics    *observability.FrameCollector
	lens       render.Lens
}

type setupOptions struct {
	registry prometheus.Registerer
	mode     timectrl.Mode
}

// loadCatalog resolves the configured catalog: a file path wins over a
// builtin name.
func (a *app) loadCatalog(ctx context.Context) (*core.Catalog, error) {
	ctx, span := observability.StartSpan(ctx, "catalog.load",
		attribute.String("catalog.name", a.cfg.Catalog.Name),
		attribute.String("catalog.path", a.cfg.Catalog.Path),
	)
	defer span.End()

	var opts []core.CatalogOption
	if a.cfg.Catalog.Epoch != "" {
		epoch, err := time.Parse(time.RFC3339, a.cfg.Catalog.Epoch)
		if err != nil {
			return nil, fmt.Errorf("catalog epoch: %w", err)
		}
		opts = append(opts, core.WithEpoch(epoch))
	}

	var (
		cat *core.Catalog
		err error
	)
	if a.cfg.Catalog.Path != "" {
		f, openErr := os.Open(a.cfg.Catalog.Path)
		if openErr != nil {
			span.RecordError(openErr)
			return nil, fmt.Errorf("open catalog: %w", openErr)
		}
		defer f.Close()
		cat, err = core.LoadCatalog(f, opts...)
	} else {
		cat, err = core.BuiltinCatalog(a.cfg.Catalog.Name, opts...)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("catalog.bodies", len(cat.Bodies)+1))
	a.log.Debug(ctx, "catalog loaded",
		logging.String("catalog", cat.Name),
		logging.String("unit", cat.Unit),
		logging.Int("bodies", len(cat.Bodies)+1),
	)
	return cat, nil
}

// newSimulation wires catalog, scene graph, camera, engine and clock
// together for one run.
func (a *app) newSimulation(ctx context.Context, so setupOptions) (*simulation, error) {
	cat, err := a.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "simulation.build")
	defer span.End()

	metrics, err := observability.NewFrameCollector(so.registry)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	cam := a.cfg.Camera
	controller, err := camctl.New(camctl.Config{
		Position:    cam.PositionVec(),
		Target:      cam.TargetVec(),
		RotateSpeed: cam.RotateSpeed,
		ZoomSpeed:   cam.ZoomSpeed,
		PanSpeed:    cam.PanSpeed,
		MinRadius:   cam.MinRadius,
		MaxRadius:   cam.MaxRadius,
		Logger:      a.log,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	queue := camctl.NewQueue(
		camctl.WithCapacity(a.cfg.Serve.QueueCapacity),
		camctl.WithObserver(metrics),
	)

	scene := kb.NewSceneGraph()
	engine, err := core.NewEngine(ctx, cat, scene,
		core.WithPointCount(a.cfg.Simulation.PointCount),
		core.WithSpeedConstant(a.cfg.Simulation.SpeedConstant),
		core.WithCameraRig(camctl.QueuedRig{Controller: controller, Queue: queue}),
		core.WithFrameRecorder(metrics),
		core.WithLogger(a.log),
	)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := render.StyleScene(scene, engine); err != nil {
		return nil, err
	}
	scene.SetCameraPose(controller.Pose())
	if err := scene.Render(); err != nil {
		return nil, err
	}

	interval := time.Second / time.Duration(a.cfg.Simulation.FrameRate)
	clock := timectrl.NewFrameClock(time.Now(), interval, timectrl.WithMode(so.mode))

	return &simulation{
		catalog:    cat,
		scene:      scene,
		controller: controller,
		queue:      queue,
		engine:     engine,
		clock:      clock,
		metrics:    metrics,
		lens:       render.Lens{FOV: cam.FOV, Near: cam.Near, Far: cam.Far},
	}, nil
}
