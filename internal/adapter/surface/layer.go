package surface

import (
	"context"
	"errors"
	"sync"

	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/couchcryptid/wage-level-map/internal/domain"
	"github.com/couchcryptid/wage-level-map/internal/observability"
)

// ErrNotFound is returned by Lookup when no rendered feature matches.
var ErrNotFound = errors.New("county not found in rendered layer")

// ErrEmpty is returned by Lookup before any layer has been rendered.
var ErrEmpty = errors.New("no layer has been rendered")

// Layer is an in-memory rendering surface. It keeps the most recently
// pushed layer and fill-color rule so they can be served to map clients.
// It implements pipeline.Surface.
type Layer struct {
	metrics *observability.Metrics

	mu      sync.RWMutex
	current *domain.Layer
	rule    *domain.StyleRule
}

// NewLayer creates an empty in-memory surface.
func NewLayer(metrics *observability.Metrics) *Layer {
	return &Layer{metrics: metrics}
}

// ReplaceData swaps the whole rendered layer.
func (l *Layer) ReplaceData(_ context.Context, layer domain.Layer) error {
	l.mu.Lock()
	l.current = &layer
	l.mu.Unlock()
	l.metrics.SurfacePublishes.WithLabelValues("memory", "data", "success").Inc()
	return nil
}

// SetFillColorRule stores the style rule used to paint the layer.
func (l *Layer) SetFillColorRule(_ context.Context, rule domain.StyleRule) error {
	l.mu.Lock()
	l.rule = &rule
	l.mu.Unlock()
	l.metrics.SurfacePublishes.WithLabelValues("memory", "style", "success").Inc()
	return nil
}

// Current returns the rendered layer, or false before the first push.
func (l *Layer) Current() (domain.Layer, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.current == nil {
		return domain.Layer{}, false
	}
	return *l.current, true
}

// Rule returns the fill-color rule, or false before it has been set.
func (l *Layer) Rule() (domain.StyleRule, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.rule == nil {
		return domain.StyleRule{}, false
	}
	return *l.rule, true
}

// Lookup returns the display detail of the rendered county with the given
// identity. Names are compared after normalization, so "Cook County" and
// "COOK" match the same feature.
func (l *Layer) Lookup(stateFP, name string) (domain.CountyDetail, error) {
	l.mu.RLock()
	current, rule := l.current, l.rule
	l.mu.RUnlock()

	if current == nil || rule == nil {
		return domain.CountyDetail{}, ErrEmpty
	}

	f := find(current.Features, stateFP, name)
	if f == nil {
		return domain.CountyDetail{}, ErrNotFound
	}
	return domain.DescribeCounty(f.Properties, *rule), nil
}

func find(fc *geojson.FeatureCollection, stateFP, name string) *geojson.Feature {
	if fc == nil {
		return nil
	}
	want := domain.Normalize(name)
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		fp, _ := f.Properties[domain.PropStateFP].(string)
		n, _ := f.Properties[domain.PropName].(string)
		if fp == stateFP && domain.Normalize(n) == want {
			return f
		}
	}
	return nil
}
