package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/wage-level-map/internal/domain"
	"github.com/couchcryptid/wage-level-map/internal/observability"
)

var (
	// ErrBaseDataNotReady is returned by Update before county geometry is loaded.
	ErrBaseDataNotReady = errors.New("base data not ready")

	// ErrSuperseded is returned by Update when a newer update was issued
	// before this one finished. Its result was discarded.
	ErrSuperseded = errors.New("update superseded by a newer selection")
)

// Status is the orchestrator's position in its state machine.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

var allStatuses = []Status{StatusIdle, StatusLoading, StatusReady, StatusFailed}

// State is a point-in-time view of the orchestrator for the UI.
type State struct {
	Status     Status               `json:"status"`
	Error      string               `json:"error,omitempty"`
	Stats      domain.CoverageStats `json:"stats"`
	Occupation string               `json:"occupation,omitempty"`
	Salary     float64              `json:"salary"`
	SalaryText string               `json:"salary_text,omitempty"` // e.g. "93,600"
	Sequence   uint64               `json:"sequence"`
	UpdatedAt  time.Time            `json:"updated_at,omitzero"`
}

// Orchestrator recomputes the county layer for each (occupation, salary)
// selection and pushes it to the session's surface. Every update gets a
// monotonically increasing sequence number; starting an update cancels the
// previous one, and only the latest update may change state or write to
// the surface.
type Orchestrator struct {
	session *MapSession
	loader  WageTableLoader
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock

	mu           sync.Mutex
	seq          uint64
	cancel       context.CancelFunc
	state        State
	styleApplied bool

	// publishMu serializes surface writes so an older cycle can never land
	// after a newer one.
	publishMu sync.Mutex
}

// NewOrchestrator creates an Orchestrator in the Idle state.
func NewOrchestrator(session *MapSession, loader WageTableLoader, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Orchestrator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	o := &Orchestrator{
		session: session,
		loader:  loader,
		logger:  logger,
		metrics: metrics,
		clock:   clock,
		state:   State{Status: StatusIdle},
	}
	o.recordStatus(StatusIdle)
	return o
}

// Snapshot returns the current state.
func (o *Orchestrator) Snapshot() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// ClearError dismisses the user-visible error message. The status is left
// unchanged.
func (o *Orchestrator) ClearError() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.Error = ""
}

// Ticket is an update cycle reserved by Begin. Its sequence number is fixed
// when it is issued, so the most recently issued ticket wins no matter in
// which order tickets are run.
type Ticket struct {
	Occupation string
	Salary     float64
	Sequence   uint64

	ctx      context.Context //nolint:containedctx // scoped to one cycle, cancelled by the next Begin
	cancel   context.CancelFunc
	counties *domain.Counties
}

// Update loads the wage table for occupation, classifies every county at
// the given annual salary, and replaces the surface's layer. On a fetch
// failure the previous layer and stats stay in place and the state moves
// to Failed. Nothing is retried; the next selection is the retry.
func (o *Orchestrator) Update(ctx context.Context, occupation string, salary float64) error {
	t, err := o.Begin(ctx, occupation, salary)
	if err != nil {
		return err
	}
	return o.Run(t)
}

// Begin reserves the next sequence number for a selection, cancels the
// in-flight update, and moves to Loading. It does not block on I/O.
func (o *Orchestrator) Begin(ctx context.Context, occupation string, salary float64) (Ticket, error) {
	counties := o.session.Counties()
	if counties == nil {
		return Ticket{}, ErrBaseDataNotReady
	}

	ctx, seq, cancel := o.begin(ctx, occupation, salary)
	return Ticket{
		Occupation: occupation,
		Salary:     salary,
		Sequence:   seq,
		ctx:        ctx,
		cancel:     cancel,
		counties:   counties,
	}, nil
}

// Run executes a reserved cycle. It returns ErrSuperseded when a newer
// ticket was issued before it could publish.
func (o *Orchestrator) Run(t Ticket) error {
	if t.cancel == nil {
		return ErrBaseDataNotReady
	}
	defer t.cancel()

	ctx, seq, occupation, salary := t.ctx, t.Sequence, t.Occupation, t.Salary
	logger := o.logger.With("occupation", occupation, "salary", salary, "sequence", seq)

	start := time.Now()
	table, err := o.loader.LoadWageTable(ctx, occupation)
	o.metrics.WageTableFetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if !o.isLatest(seq) {
			o.metrics.WageTableFetches.WithLabelValues("canceled").Inc()
			return o.superseded(logger)
		}
		if ctx.Err() != nil {
			// Caller went away (shutdown); not a data failure.
			o.metrics.WageTableFetches.WithLabelValues("canceled").Inc()
			return ctx.Err()
		}
		o.metrics.WageTableFetches.WithLabelValues("error").Inc()
		logger.Error("wage table load failed", "error", err)
		o.fail(seq, fmt.Sprintf("Failed to load wage data for SOC %s", occupation))
		return err
	}
	o.metrics.WageTableFetches.WithLabelValues("success").Inc()

	if !o.isLatest(seq) {
		return o.superseded(logger)
	}

	hourly := domain.HourlyWage(salary)
	start = time.Now()
	annotation := domain.Annotate(t.counties, table, hourly)
	layer := domain.Layer{
		Occupation: occupation,
		Salary:     salary,
		Hourly:     hourly,
		Sequence:   seq,
		Stats:      annotation.Stats,
		Features:   annotation.FeatureCollection(),
	}
	o.metrics.AnnotationDuration.Observe(time.Since(start).Seconds())

	return o.publish(context.WithoutCancel(ctx), logger, layer)
}

// begin registers a new update: it assigns the next sequence number,
// cancels the previous in-flight update, and moves to Loading.
func (o *Orchestrator) begin(ctx context.Context, occupation string, salary float64) (context.Context, uint64, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	o.seq++
	o.cancel = cancel

	o.state.Status = StatusLoading
	o.state.Error = ""
	o.state.Occupation = occupation
	o.state.Salary = salary
	o.state.SalaryText = domain.FormatSalary(salary)
	o.state.Sequence = o.seq
	o.recordStatus(StatusLoading)

	return ctx, o.seq, cancel
}

// publish pushes a finished layer to the surface if its cycle is still the
// latest, then records the new stats. Once any target has accepted the
// layer, stats follow it even if another target failed.
func (o *Orchestrator) publish(ctx context.Context, logger *slog.Logger, layer domain.Layer) error {
	o.publishMu.Lock()
	defer o.publishMu.Unlock()

	if !o.isLatest(layer.Sequence) {
		return o.superseded(logger)
	}

	var (
		partial    *PartialPublishError
		publishErr error
	)
	if err := o.session.Surface().ReplaceData(ctx, layer); err != nil {
		if !errors.As(err, &partial) {
			logger.Error("replace layer data failed", "error", err)
			o.fail(layer.Sequence, "Failed to update the map")
			return fmt.Errorf("replace layer data: %w", err)
		}
		publishErr = fmt.Errorf("replace layer data: %w", err)
	}
	if err := o.applyStyle(ctx); err != nil {
		publishErr = errors.Join(publishErr, fmt.Errorf("set fill color rule: %w", err))
	}

	o.mu.Lock()
	o.state.Stats = layer.Stats
	o.state.UpdatedAt = o.clock.Now()
	if layer.Sequence == o.seq {
		if publishErr != nil {
			o.state.Status = StatusFailed
			o.state.Error = "Failed to update the map"
			o.recordStatus(StatusFailed)
		} else {
			o.state.Status = StatusReady
			o.recordStatus(StatusReady)
		}
	}
	o.mu.Unlock()

	o.recordStats(layer.Stats, o.session.Counties().Len())
	if publishErr != nil {
		logger.Error("layer published with errors", "error", publishErr)
		return publishErr
	}
	logger.Info("layer updated",
		"hourly", layer.Hourly,
		"classified", layer.Stats.Total,
	)
	return nil
}

// applyStyle sets the fill-color rule once per session.
func (o *Orchestrator) applyStyle(ctx context.Context) error {
	o.mu.Lock()
	applied := o.styleApplied
	o.mu.Unlock()
	if applied {
		return nil
	}

	if err := o.session.Surface().SetFillColorRule(ctx, o.session.StyleRule()); err != nil {
		return err
	}

	o.mu.Lock()
	o.styleApplied = true
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) fail(seq uint64, message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if seq != o.seq {
		return
	}
	o.state.Status = StatusFailed
	o.state.Error = message
	o.recordStatus(StatusFailed)
}

func (o *Orchestrator) superseded(logger *slog.Logger) error {
	o.metrics.UpdatesSuperseded.Inc()
	logger.Debug("discarding superseded update")
	return ErrSuperseded
}

func (o *Orchestrator) isLatest(seq uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return seq == o.seq
}

func (o *Orchestrator) recordStatus(current Status) {
	for _, s := range allStatuses {
		v := 0.0
		if s == current {
			v = 1
		}
		o.metrics.OrchestratorState.WithLabelValues(string(s)).Set(v)
	}
}

func (o *Orchestrator) recordStats(stats domain.CoverageStats, counties int) {
	for _, l := range domain.Levels {
		o.metrics.CountiesClassified.WithLabelValues(strconv.Itoa(int(l))).Set(float64(stats.Count(l)))
	}
	o.metrics.CountiesClassified.WithLabelValues("none").Set(float64(counties - stats.Total))
}
