package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/couchcryptid/wage-level-map/internal/domain"
)

// WageTableLoader fetches the wage table for one occupation code.
type WageTableLoader interface {
	LoadWageTable(ctx context.Context, occupation string) (domain.WageTable, error)
}

// Surface is a rendering surface that displays the county layer. Each
// ReplaceData call swaps the whole layer atomically.
type Surface interface {
	ReplaceData(ctx context.Context, layer domain.Layer) error
	SetFillColorRule(ctx context.Context, rule domain.StyleRule) error
}

// PartialPublishError is returned by a Surface that forwards to several
// targets when at least one target accepted the push and others failed.
type PartialPublishError struct {
	Failed []string
	Err    error
}

func (e *PartialPublishError) Error() string {
	return fmt.Sprintf("publish failed for %s: %v", strings.Join(e.Failed, ", "), e.Err)
}

func (e *PartialPublishError) Unwrap() error { return e.Err }

// MapSession owns the rendering surface, the unannotated master county
// collection, and the compiled style rule. One session is created at
// startup and handed to the Orchestrator.
type MapSession struct {
	surface  Surface
	rule     domain.StyleRule
	counties atomic.Pointer[domain.Counties]
}

// NewMapSession creates a session whose style rule is compiled from palette.
// Base data is not ready until SetCounties is called.
func NewMapSession(surface Surface, palette domain.Palette) *MapSession {
	return &MapSession{
		surface: surface,
		rule:    domain.BuildStyleRule(palette),
	}
}

// SetCounties installs the master collection. It is shared read-only by
// every subsequent classification pass.
func (s *MapSession) SetCounties(c *domain.Counties) {
	s.counties.Store(c)
}

// Counties returns the master collection, or nil before base data is loaded.
func (s *MapSession) Counties() *domain.Counties {
	return s.counties.Load()
}

// StyleRule returns the session's compiled fill-color rule.
func (s *MapSession) StyleRule() domain.StyleRule {
	return s.rule
}

// Surface returns the session's rendering surface.
func (s *MapSession) Surface() Surface {
	return s.surface
}

// CheckReadiness returns nil once base county data has been loaded.
func (s *MapSession) CheckReadiness(_ context.Context) error {
	if s.Counties() == nil {
		return errors.New("county base data has not been loaded")
	}
	return nil
}
