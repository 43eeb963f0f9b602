package surface

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchcryptid/wage-level-map/internal/domain"
	"github.com/couchcryptid/wage-level-map/internal/pipeline"
)

// Fanout forwards every push to several surfaces in order. All targets are
// attempted. When every target fails the errors are joined; when only some
// fail the result is a *pipeline.PartialPublishError naming them.
type Fanout struct {
	targets []named
}

type named struct {
	name    string
	surface pipeline.Surface
}

// NewFanout creates an empty Fanout. Add surfaces with Add.
func NewFanout() *Fanout {
	return &Fanout{}
}

// Add appends a surface under a name used in error messages.
func (f *Fanout) Add(name string, s pipeline.Surface) *Fanout {
	f.targets = append(f.targets, named{name: name, surface: s})
	return f
}

// ReplaceData pushes layer to every surface.
func (f *Fanout) ReplaceData(ctx context.Context, layer domain.Layer) error {
	return f.each(func(s pipeline.Surface) error { return s.ReplaceData(ctx, layer) })
}

// SetFillColorRule pushes rule to every surface.
func (f *Fanout) SetFillColorRule(ctx context.Context, rule domain.StyleRule) error {
	return f.each(func(s pipeline.Surface) error { return s.SetFillColorRule(ctx, rule) })
}

func (f *Fanout) each(push func(pipeline.Surface) error) error {
	var (
		errs   []error
		failed []string
	)
	for _, t := range f.targets {
		if err := push(t.surface); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.name, err))
			failed = append(failed, t.name)
		}
	}
	switch {
	case len(errs) == 0:
		return nil
	case len(errs) == len(f.targets):
		return errors.Join(errs...)
	default:
		return &pipeline.PartialPublishError{Failed: failed, Err: errors.Join(errs...)}
	}
}
