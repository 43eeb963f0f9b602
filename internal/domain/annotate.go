package domain

import (
	"encoding/json"
	"math"

	"github.com/twpayne/go-geom/encoding/geojson"
)

// CoverageStats counts classified counties per level. Unclassified counties
// are excluded from Total.
type CoverageStats struct {
	Level1 int `json:"level1"`
	Level2 int `json:"level2"`
	Level3 int `json:"level3"`
	Level4 int `json:"level4"`
	Total  int `json:"total"`
}

// Count returns the number of counties at level l.
func (s CoverageStats) Count(l Level) int {
	switch l {
	case Level1:
		return s.Level1
	case Level2:
		return s.Level2
	case Level3:
		return s.Level3
	case Level4:
		return s.Level4
	default:
		return 0
	}
}

func (s *CoverageStats) add(l Level) {
	switch l {
	case Level1:
		s.Level1++
	case Level2:
		s.Level2++
	case Level3:
		s.Level3++
	case Level4:
		s.Level4++
	default:
		return
	}
	s.Total++
}

// Annotation is the result of one classification pass over a Counties
// collection. Levels are held in a side slice indexed by feature position;
// the master collection is never written to.
type Annotation struct {
	counties *Counties
	levels   []Level
	Stats    CoverageStats
}

// Annotate classifies every county against the wage table at the given
// hourly rate. A feature is skipped (left without a level and not counted)
// when its identity is malformed, its FIPS code is unknown, or the table
// has no entry for its key.
func Annotate(counties *Counties, table WageTable, hourly float64) *Annotation {
	a := &Annotation{
		counties: counties,
		levels:   make([]Level, counties.Len()),
	}
	for i := range a.levels {
		key, ok := counties.Key(i)
		if !ok {
			continue
		}
		thresholds, ok := table[key]
		if !ok {
			continue
		}
		l := Classify(hourly, thresholds)
		a.levels[i] = l
		a.Stats.add(l)
	}
	return a
}

// FeatureCollection materializes the annotated layer. Each feature shares
// geometry with the master collection but gets its own property map: any
// inherited level property is removed, and a level is set only when the
// county was classified.
func (a *Annotation) FeatureCollection() *geojson.FeatureCollection {
	features := make([]*geojson.Feature, len(a.levels))
	for i, src := range a.counties.features {
		props := a.counties.Properties(i)
		delete(props, PropLevel)
		if l := a.levels[i]; l.Valid() {
			props[PropLevel] = int(l)
		}
		features[i] = &geojson.Feature{
			ID:         src.ID,
			BBox:       src.BBox,
			Geometry:   src.Geometry,
			Properties: props,
		}
	}
	return &geojson.FeatureCollection{Features: features}
}

// Aggregate recomputes coverage statistics by scanning the level property of
// a rendered collection. For any annotation a,
// Aggregate(a.FeatureCollection()) equals a.Stats.
func Aggregate(fc *geojson.FeatureCollection) CoverageStats {
	var stats CoverageStats
	if fc == nil {
		return stats
	}
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		if l, ok := LevelOf(f.Properties); ok {
			stats.add(l)
		}
	}
	return stats
}

// LevelOf reads the level property from a feature's properties. It accepts
// the integer form written by Annotation and the float64 or json.Number
// forms produced by decoding JSON.
func LevelOf(props map[string]any) (Level, bool) {
	var l Level
	switch v := props[PropLevel].(type) {
	case int:
		l = Level(v)
	case Level:
		l = v
	case float64:
		if v != math.Trunc(v) {
			return LevelNone, false
		}
		l = Level(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return LevelNone, false
		}
		l = Level(n)
	default:
		return LevelNone, false
	}
	if !l.Valid() {
		return LevelNone, false
	}
	return l, true
}
