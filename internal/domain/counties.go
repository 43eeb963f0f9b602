package domain

import (
	"encoding/json"
	"fmt"

	"github.com/twpayne/go-geom/encoding/geojson"
)

// Feature property names used by the county geometry source and the map layer.
const (
	PropStateFP = "STATEFP"
	PropName    = "NAME"
	PropLevel   = "level"
)

// Counties is the unannotated master county collection. It is loaded once
// and shared read-only by every annotation pass.
type Counties struct {
	features []*geojson.Feature
}

// NewCounties wraps a parsed feature collection, dropping null features. The
// caller hands over ownership and must not modify fc afterwards.
func NewCounties(fc *geojson.FeatureCollection) *Counties {
	if fc == nil {
		return &Counties{}
	}
	features := make([]*geojson.Feature, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f != nil {
			features = append(features, f)
		}
	}
	return &Counties{features: features}
}

// ParseCounties decodes a GeoJSON feature collection.
func ParseCounties(data []byte) (*Counties, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse county geometry: %w", err)
	}
	return NewCounties(&fc), nil
}

// Len returns the number of features.
func (c *Counties) Len() int {
	return len(c.features)
}

// Identity returns the STATEFP and NAME properties of feature i. ok is false
// when either is missing or not a string.
func (c *Counties) Identity(i int) (stateFP, name string, ok bool) {
	f := c.features[i]
	stateFP, ok1 := f.Properties[PropStateFP].(string)
	name, ok2 := f.Properties[PropName].(string)
	return stateFP, name, ok1 && ok2
}

// Key returns the join key for feature i, or false when the feature cannot
// be joined (bad properties or unknown FIPS code).
func (c *Counties) Key(i int) (string, bool) {
	stateFP, name, ok := c.Identity(i)
	if !ok {
		return "", false
	}
	abbr, ok := StateAbbr(stateFP)
	if !ok {
		return "", false
	}
	return JoinKey(abbr, name), true
}

// Find returns the index of the first feature with the given identity.
func (c *Counties) Find(stateFP, name string) (int, bool) {
	want := Normalize(name)
	for i := range c.features {
		fp, n, ok := c.Identity(i)
		if ok && fp == stateFP && Normalize(n) == want {
			return i, true
		}
	}
	return 0, false
}

// Properties returns a copy of feature i's properties.
func (c *Counties) Properties(i int) map[string]any {
	f := c.features[i]
	props := make(map[string]any, len(f.Properties)+1)
	for k, v := range f.Properties {
		props[k] = v
	}
	return props
}
