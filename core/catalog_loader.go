package core

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"path"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/orrery/model"
)

//go:embed catalogs/*.yaml
var builtinCatalogs embed.FS

// DefaultCatalogName is the catalog used when none is configured.
const DefaultCatalogName = "solar-system"

// Catalog is the static configuration consumed at scene setup: one central
// body plus everything orbiting it. Bodies are ordered so that a parent
// always precedes its children.
type Catalog struct {
	Name    string
	Unit    string
	Central model.Body
	Bodies  []model.Body
}

// Body returns the body with the given ID, including the central body.
func (c *Catalog) Body(id string) (model.Body, bool) {
	if c.Central.ID == id {
		return c.Central, true
	}
	for _, b := range c.Bodies {
		if b.ID == id {
			return b, true
		}
	}
	return model.Body{}, false
}

// internal YAML shapes; unexported so the file format can evolve freely.
type catalogYAML struct {
	Name         string     `yaml:"name"`
	DistanceUnit string     `yaml:"distance_unit"` // au | km | earth_radii
	AngleUnit    string     `yaml:"angle_unit"`    // deg | rad | arcsec
	Epoch        string     `yaml:"epoch"`         // RFC3339, used for TLE entries
	Central      bodyYAML   `yaml:"central"`
	Bodies       []bodyYAML `yaml:"bodies"`
}

type bodyYAML struct {
	Name   string   `yaml:"name"`
	Parent string   `yaml:"parent"`
	A      float64  `yaml:"a"`
	E      float64  `yaml:"e"`
	I      float64  `yaml:"i"`
	Node   float64  `yaml:"node"`
	Peri   float64  `yaml:"peri"`
	Color  string   `yaml:"color"`
	Radius float64  `yaml:"radius"`
	TLE    []string `yaml:"tle"`
}

type catalogOptions struct {
	epoch time.Time
}

// CatalogOption tweaks catalog loading.
type CatalogOption func(*catalogOptions)

// WithEpoch fixes the time at which TLE entries are propagated, overriding
// the catalog's own epoch.
func WithEpoch(t time.Time) CatalogOption {
	return func(o *catalogOptions) { o.epoch = t }
}

// LoadCatalog reads a YAML catalog from r, converts angles to radians and
// validates every element set. Invalid elements are reported, never clamped.
func LoadCatalog(r io.Reader, opts ...CatalogOption) (*Catalog, error) {
	var o catalogOptions
	for _, opt := range opts {
		opt(&o)
	}

	var payload catalogYAML
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("LoadCatalog: decode failed: %w", err)
	}

	angleScale, err := angleScaleFromString(payload.AngleUnit)
	if err != nil {
		return nil, fmt.Errorf("LoadCatalog: %w", err)
	}
	unit, kmPerUnit, err := distanceUnitFromString(payload.DistanceUnit)
	if err != nil {
		return nil, fmt.Errorf("LoadCatalog: %w", err)
	}

	epoch := o.epoch
	if epoch.IsZero() && payload.Epoch != "" {
		epoch, err = time.Parse(time.RFC3339, payload.Epoch)
		if err != nil {
			return nil, fmt.Errorf("LoadCatalog: epoch: %w", err)
		}
	}
	if epoch.IsZero() {
		epoch = time.Now().UTC()
	}

	if payload.Central.Name == "" {
		return nil, fmt.Errorf("LoadCatalog: central body has no name")
	}
	centralColor, err := colorOrDefault(payload.Central.Color)
	if err != nil {
		return nil, fmt.Errorf("LoadCatalog: central body: %w", err)
	}

	cat := &Catalog{
		Name: payload.Name,
		Unit: unit,
		Central: model.Body{
			ID:      BodyID(payload.Central.Name),
			Central: true,
			Elements: model.OrbitalElementSet{
				Name:          payload.Central.Name,
				Color:         centralColor,
				DisplayRadius: payload.Central.Radius,
			},
		},
	}

	seen := map[string]bool{cat.Central.ID: true}
	bodies := make([]model.Body, 0, len(payload.Bodies))
	for _, b := range payload.Bodies {
		if b.Name == "" {
			return nil, fmt.Errorf("LoadCatalog: body with empty name")
		}
		id := BodyID(b.Name)
		if seen[id] {
			return nil, fmt.Errorf("LoadCatalog: duplicate body %q", id)
		}
		seen[id] = true

		color, err := colorOrDefault(b.Color)
		if err != nil {
			return nil, fmt.Errorf("LoadCatalog: body %q: %w", b.Name, err)
		}

		var elems model.OrbitalElementSet
		switch {
		case len(b.TLE) == 2:
			elems, err = ElementsFromTLE(b.Name, b.TLE[0], b.TLE[1], epoch)
			if err != nil {
				return nil, fmt.Errorf("LoadCatalog: %w", err)
			}
			elems.SemiMajorAxis *= EarthRadiusKm / kmPerUnit
		case len(b.TLE) != 0:
			return nil, fmt.Errorf("LoadCatalog: body %q: tle needs exactly two lines, got %d", b.Name, len(b.TLE))
		default:
			elems = model.OrbitalElementSet{
				Name:                b.Name,
				SemiMajorAxis:       b.A,
				Eccentricity:        b.E,
				Inclination:         b.I * angleScale,
				AscendingNode:       b.Node * angleScale,
				ArgumentOfPeriapsis: b.Peri * angleScale,
			}
		}
		elems.Color = color
		elems.DisplayRadius = b.Radius

		if err := elems.Validate(); err != nil {
			return nil, fmt.Errorf("LoadCatalog: %w", err)
		}

		parent := ""
		if b.Parent != "" && BodyID(b.Parent) != cat.Central.ID {
			parent = BodyID(b.Parent)
		}
		bodies = append(bodies, model.Body{ID: id, Elements: elems, ParentID: parent})
	}

	ordered, err := orderByParent(bodies)
	if err != nil {
		return nil, fmt.Errorf("LoadCatalog: %w", err)
	}
	cat.Bodies = ordered
	return cat, nil
}

// BuiltinCatalog loads one of the catalogs compiled into the binary.
func BuiltinCatalog(name string, opts ...CatalogOption) (*Catalog, error) {
	f, err := builtinCatalogs.Open(path.Join("catalogs", name+".yaml"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("unknown builtin catalog %q (have %s)", name, strings.Join(BuiltinCatalogNames(), ", "))
		}
		return nil, err
	}
	defer f.Close()
	return LoadCatalog(f, opts...)
}

// BuiltinCatalogNames lists the compiled-in catalogs in sorted order.
func BuiltinCatalogNames() []string {
	entries, err := builtinCatalogs.ReadDir("catalogs")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// BodyID derives a stable identifier from a display name.
func BodyID(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}

// orderByParent returns bodies with every parent ahead of its children,
// keeping file order otherwise.
func orderByParent(bodies []model.Body) ([]model.Body, error) {
	byID := make(map[string]model.Body, len(bodies))
	for _, b := range bodies {
		byID[b.ID] = b
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(bodies))
	out := make([]model.Body, 0, len(bodies))

	var visit func(b model.Body) error
	visit = func(b model.Body) error {
		switch state[b.ID] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("parent cycle through %q", b.ID)
		}
		state[b.ID] = visiting
		if b.ParentID != "" {
			parent, ok := byID[b.ParentID]
			if !ok {
				return fmt.Errorf("%w: %q (parent of %q)", ErrUnknownParent, b.ParentID, b.ID)
			}
			if err := visit(parent); err != nil {
				return err
			}
		}
		state[b.ID] = done
		out = append(out, b)
		return nil
	}

	for _, b := range bodies {
		if err := visit(b); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func angleScaleFromString(s string) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "deg", "degree", "degrees":
		return math.Pi / 180, nil
	case "rad", "radian", "radians":
		return 1, nil
	case "arcsec", "arcsecond", "arcseconds":
		return math.Pi / (180 * 3600), nil
	default:
		return 0, fmt.Errorf("unknown angle unit %q", s)
	}
}

// distanceUnitFromString returns the canonical unit name and its size in km.
func distanceUnitFromString(s string) (string, float64, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "au":
		return "au", 149597870.7, nil
	case "km":
		return "km", 1, nil
	case "earth_radii", "re":
		return "earth_radii", EarthRadiusKm, nil
	default:
		return "", 0, fmt.Errorf("unknown distance unit %q", s)
	}
}

func colorOrDefault(s string) (model.Color, error) {
	if s == "" {
		return 0xffffff, nil
	}
	return model.ParseColor(s)
}
