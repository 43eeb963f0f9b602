package counties

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/couchcryptid/wage-level-map/internal/domain"
)

// shapefileProps are the TIGER/Line county attributes carried onto features.
var shapefileProps = []string{domain.PropStateFP, domain.PropName, "COUNTYFP", "GEOID"}

// readShapefile converts a TIGER/Line county shapefile into the master
// collection. Each polygon part becomes its own polygon of a MultiPolygon.
func readShapefile(path string) (*domain.Counties, int, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open shapefile: %w", err)
	}
	defer func() { _ = reader.Close() }()

	fieldIdx := make(map[string]int)
	for i, f := range reader.Fields() {
		fieldIdx[strings.ToUpper(strings.TrimRight(f.String(), "\x00"))] = i
	}
	for _, required := range []string{domain.PropStateFP, domain.PropName} {
		if _, ok := fieldIdx[required]; !ok {
			return nil, 0, fmt.Errorf("shapefile has no %s attribute", required)
		}
	}

	var (
		features []*geojson.Feature
		skipped  int
	)
	for reader.Next() {
		_, shape := reader.Shape()
		g := toGeometry(shape)
		if g == nil {
			skipped++
			continue
		}

		props := make(map[string]any, len(shapefileProps))
		for _, name := range shapefileProps {
			idx, ok := fieldIdx[name]
			if !ok {
				continue
			}
			if v := strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00")); v != "" {
				props[name] = v
			}
		}
		features = append(features, &geojson.Feature{Geometry: g, Properties: props})
	}
	if err := reader.Err(); err != nil {
		return nil, 0, fmt.Errorf("read shapefile: %w", err)
	}
	if len(features) == 0 {
		return nil, skipped, errors.New("shapefile has no polygon records")
	}
	return domain.NewCounties(&geojson.FeatureCollection{Features: features}), skipped, nil
}

func toGeometry(shape shp.Shape) geom.T {
	p, ok := shape.(*shp.Polygon)
	if !ok || p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}

		flat := make([]float64, 0, 2*(end-start))
		for _, pt := range p.Points[start:end] {
			flat = append(flat, pt.X, pt.Y)
		}
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
			continue
		}
		if err := mp.Push(poly); err != nil {
			continue
		}
	}
	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
