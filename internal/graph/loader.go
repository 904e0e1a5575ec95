package graph

import (
	"os"
	"strconv"

	shp "github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/urbansafe/evacroute/internal/model"
)

// LoadGeoJSON reads a road network from a GeoJSON FeatureCollection. Point
// features become nodes (property "id"); LineString features become edges
// (properties "id", "from", "to"). Edge length is the summed geodesic length
// of the line, so curved segments are not shortchanged.
func LoadGeoJSON(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "graph: read geojson")
	}

	var fc geojson.FeatureCollection
	if err := fc.UnmarshalJSON(data); err != nil {
		return nil, eris.Wrap(err, "graph: parse geojson")
	}

	log := zap.L().With(zap.String("component", "graph.loader"))
	g := New()

	// Nodes first so edges can validate endpoints.
	for _, f := range fc.Features {
		pt, ok := f.Geometry.(*geom.Point)
		if !ok {
			continue
		}
		id, err := propInt64(f.Properties, "id")
		if err != nil {
			return nil, eris.Wrap(err, "graph: node feature")
		}
		coords := pt.Coords()
		if err := g.AddNode(id, model.LatLng{Lat: coords[1], Lng: coords[0]}); err != nil {
			return nil, err
		}
	}

	for _, f := range fc.Features {
		line, ok := f.Geometry.(*geom.LineString)
		if !ok {
			continue
		}
		id, err := propInt64(f.Properties, "id")
		if err != nil {
			return nil, eris.Wrap(err, "graph: edge feature")
		}
		from, err := propInt64(f.Properties, "from")
		if err != nil {
			return nil, eris.Wrapf(err, "graph: edge %d", id)
		}
		to, err := propInt64(f.Properties, "to")
		if err != nil {
			return nil, eris.Wrapf(err, "graph: edge %d", id)
		}
		if err := g.AddEdge(id, from, to, lineLengthMeters(line)); err != nil {
			return nil, err
		}
	}

	log.Info("road network loaded",
		zap.String("path", path),
		zap.Int("nodes", len(g.nodes)),
		zap.Int("edges", len(g.edges)),
	)
	return g, nil
}

func lineLengthMeters(line *geom.LineString) float64 {
	coords := line.Coords()
	var total float64
	for i := 1; i < len(coords); i++ {
		a := model.LatLng{Lat: coords[i-1][1], Lng: coords[i-1][0]}
		b := model.LatLng{Lat: coords[i][1], Lng: coords[i][0]}
		total += model.HaversineMeters(a, b)
	}
	return total
}

func propInt64(props map[string]interface{}, key string) (int64, error) {
	v, ok := props[key]
	if !ok {
		return 0, eris.Errorf("graph: missing property %q", key)
	}
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, eris.Wrapf(err, "graph: property %q", key)
		}
		return parsed, nil
	default:
		return 0, eris.Errorf("graph: property %q has unsupported type %T", key, v)
	}
}

// LoadSafeZonesYAML reads an ops-maintained safe-zone list and registers the
// zones on the graph.
func LoadSafeZonesYAML(g *Graph, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrap(err, "graph: read safe zones")
	}

	var zones []SafeZone
	if err := yaml.Unmarshal(data, &zones); err != nil {
		return eris.Wrap(err, "graph: parse safe zones")
	}

	for _, z := range zones {
		if z.ID == "" {
			return eris.New("graph: safe zone with empty id")
		}
		if !z.Location.Valid() {
			return eris.Errorf("graph: safe zone %s has invalid location", z.ID)
		}
		if err := g.AddSafeZone(z); err != nil {
			return err
		}
	}

	zap.L().Info("safe zones loaded",
		zap.String("component", "graph.loader"),
		zap.String("path", path),
		zap.Int("zones", len(zones)),
	)
	return nil
}

// LoadSafeZonesShapefile reads safe zones from a point shapefile with ID and
// optional CAPACITY attributes. Municipal rally-point datasets typically ship
// in this form.
func LoadSafeZonesShapefile(g *Graph, path string) error {
	reader, err := shp.Open(path)
	if err != nil {
		return eris.Wrap(err, "graph: open shapefile")
	}
	defer func() { _ = reader.Close() }()

	idIdx := fieldIndex(reader, "ID")
	if idIdx < 0 {
		return eris.New("graph: shapefile missing ID field")
	}
	capIdx := fieldIndex(reader, "CAPACITY")

	count := 0
	for reader.Next() {
		row, shape := reader.Shape()
		pt, ok := shape.(*shp.Point)
		if !ok {
			continue
		}
		zone := SafeZone{
			ID:       reader.ReadAttribute(row, idIdx),
			Location: model.LatLng{Lat: pt.Y, Lng: pt.X},
		}
		if capIdx >= 0 {
			if c, err := strconv.Atoi(reader.ReadAttribute(row, capIdx)); err == nil {
				zone.Capacity = c
			}
		}
		if err := g.AddSafeZone(zone); err != nil {
			return err
		}
		count++
	}
	if err := reader.Err(); err != nil {
		return eris.Wrap(err, "graph: read shapefile")
	}

	zap.L().Info("safe zones loaded",
		zap.String("component", "graph.loader"),
		zap.String("path", path),
		zap.Int("zones", count),
	)
	return nil
}

func fieldIndex(reader *shp.Reader, name string) int {
	for i, f := range reader.Fields() {
		if f.String() == name {
			return i
		}
	}
	return -1
}
