// Package session implements the per-alias, in-memory streaming batch
// ingest coordinator: start, process-batch, complete, cancel, status
// and the expiry sweep over a long-lived, resumable ingest session.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/bluedex/internal/apierrors"
	"github.com/go-go-golems/bluedex/internal/cluster"
	"github.com/go-go-golems/bluedex/internal/deploy"
	"github.com/go-go-golems/bluedex/internal/health"
	"github.com/go-go-golems/bluedex/internal/lifecycle"
)

// MaxBatchSize is the largest batch ProcessBatch accepts in one call.
const MaxBatchSize = 1000

// SessionTimeout is the idle duration after which a non-terminal
// session is swept as expired.
const SessionTimeout = time.Hour

// sweepInterval is how often the background expiry sweep runs.
const sweepInterval = 5 * time.Minute

// BatchProcessResult is the outcome of one ProcessBatch call.
type BatchProcessResult struct {
	SessionID      string
	BatchNumber    int
	Successful     int
	Failed         int
	Errors         []BatchError
	SessionStatus  Status
	TotalProcessed int
	TotalFailed    int
	Progress       *float64
}

// Manager owns every in-flight Session and the background expiry
// sweep. It creates and deletes its target indices through the Index
// Lifecycle and delegates alias mutation to the Deployment Coordinator,
// so that swap-on-complete stays the one path through which an alias
// is ever bound.
type Manager struct {
	gateway     cluster.Gateway
	lifecycle   *lifecycle.Lifecycle
	coordinator *deploy.Coordinator
	probe       *health.Probe

	mapMu    sync.Mutex
	sessions map[string]*Session

	now func() time.Time
}

// New builds a Manager over its collaborators.
func New(gateway cluster.Gateway, lc *lifecycle.Lifecycle, coordinator *deploy.Coordinator, probe *health.Probe) *Manager {
	return &Manager{
		gateway:     gateway,
		lifecycle:   lc,
		coordinator: coordinator,
		probe:       probe,
		sessions:    make(map[string]*Session),
		now:         time.Now,
	}
}

// SetClock overrides the Manager's notion of "now". It exists so tests
// can advance time past SessionTimeout without sleeping for real; it is
// not meant to be called outside of test setup.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Start derives the alias's current deployment state, computes the
// opposite color as target, creates a mapped staging index under a
// fresh timestamped name, and allocates a new active Session over it.
func (m *Manager) Start(ctx context.Context, aliasName string, strategy deploy.Strategy, estimatedTotal int64) (*Session, error) {
	if aliasName == "" {
		return nil, apierrors.InvalidArgument("alias must not be blank")
	}
	if strategy != deploy.StrategySafe && strategy != deploy.StrategyAutoSwap {
		return nil, apierrors.InvalidArgument("unsupported strategy %q", strategy)
	}

	current, err := m.coordinator.GetStatus(ctx, aliasName)
	if err != nil {
		return nil, err
	}
	targetColor := lifecycle.Blue
	if current.ActiveColor != lifecycle.Unknown {
		targetColor = current.ActiveColor.Opposite()
	}
	targetIndex := m.lifecycle.GenerateName(aliasName, targetColor)

	if err := m.lifecycle.Create(ctx, targetIndex, aliasName, ""); err != nil {
		return nil, err
	}

	now := m.now()
	s := &Session{
		ID:             newSessionID(now),
		Alias:          aliasName,
		TargetIndex:    targetIndex,
		TargetColor:    targetColor,
		Strategy:       strategy,
		EstimatedTotal: estimatedTotal,
		Status:         StatusActive,
		CreatedAt:      now,
		LastBatchAt:    now,
	}

	m.mapMu.Lock()
	m.sessions[s.ID] = s
	m.mapMu.Unlock()

	return s, nil
}

func (m *Manager) lookup(sessionID string) (*Session, error) {
	m.mapMu.Lock()
	s, ok := m.sessions[sessionID]
	m.mapMu.Unlock()
	if !ok {
		return nil, apierrors.NotFound("session %q not found", sessionID)
	}
	return s, nil
}

// ProcessBatch validates and bulk-indexes one batch of documents into
// sessionID's target index, serialized against any other operation on
// the same session.
func (m *Manager) ProcessBatch(ctx context.Context, sessionID string, documents []map[string]interface{}) (*BatchProcessResult, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status != StatusActive {
		return nil, apierrors.Conflict("session %q is not active", sessionID)
	}
	if len(documents) == 0 {
		return nil, apierrors.InvalidArgument("batch must contain at least one document")
	}
	if len(documents) > MaxBatchSize {
		return nil, apierrors.InvalidArgument("batch of %d documents exceeds the limit of %d", len(documents), MaxBatchSize)
	}

	now := m.now()
	batchNumber := s.TotalBatches + 1

	ids := make([]string, len(documents))
	seen := make(map[string]bool, len(documents))
	for i, doc := range documents {
		id := documentID(doc, sessionID, batchNumber, i, now)
		if seen[id] {
			return nil, apierrors.InvalidArgument("batch contains duplicate document id %q", id)
		}
		seen[id] = true
		ids[i] = id
	}

	items := make([]cluster.BulkItem, len(documents))
	for i, doc := range documents {
		items[i] = cluster.BulkItem{Action: "index", Index: s.TargetIndex, ID: ids[i], Source: doc}
	}

	result, err := m.gateway.Bulk(ctx, items, false)
	if err != nil {
		s.appendError(BatchError{BatchNumber: batchNumber, Phase: "bulk", Error: err.Error(), Timestamp: now})
		s.TotalBatches = batchNumber
		s.LastBatchAt = now
		return nil, err
	}

	successful, failed := 0, 0
	var batchErrors []BatchError
	for _, item := range result.Items {
		if (item.Status == 200 || item.Status == 201) && item.Error == nil {
			successful++
			continue
		}
		failed++
		be := BatchError{BatchNumber: batchNumber, DocumentRef: item.ID, Timestamp: now}
		if item.Error != nil {
			be.Error = fmt.Sprintf("%s: %s", item.Error.Type, item.Error.Reason)
		} else {
			be.Error = fmt.Sprintf("unexpected status %d", item.Status)
		}
		batchErrors = append(batchErrors, be)
	}

	s.TotalBatches = batchNumber
	s.ProcessedBatches++
	s.TotalDocuments += len(documents)
	s.ProcessedDocuments += successful
	s.FailedDocuments += failed
	for _, be := range batchErrors {
		s.appendError(be)
	}
	s.LastBatchAt = now

	var progress *float64
	if s.EstimatedTotal > 0 {
		p := 100 * float64(s.ProcessedDocuments) / float64(s.EstimatedTotal)
		progress = &p
	}

	return &BatchProcessResult{
		SessionID:      sessionID,
		BatchNumber:    batchNumber,
		Successful:     successful,
		Failed:         failed,
		Errors:         batchErrors,
		SessionStatus:  s.Status,
		TotalProcessed: s.ProcessedDocuments,
		TotalFailed:    s.FailedDocuments,
		Progress:       progress,
	}, nil
}

// Complete refreshes the target index, waits for it to become ready
// (using the cluster's own document count as a defensive floor if it
// disagrees with the session's own counters), validates it, and hands
// off to the Deployment Coordinator when the session's strategy is
// AUTO_SWAP.
func (m *Manager) Complete(ctx context.Context, sessionID string) (*deploy.State, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status != StatusActive {
		return nil, apierrors.Conflict("session %q is not active", sessionID)
	}

	if err := m.gateway.IndexRefresh(ctx, s.TargetIndex); err != nil {
		s.Status = StatusFailed
		s.appendError(BatchError{Phase: "completion", Error: err.Error(), Timestamp: m.now()})
		return nil, err
	}

	actualCount, err := m.gateway.Count(ctx, s.TargetIndex)
	if err != nil {
		s.Status = StatusFailed
		s.appendError(BatchError{Phase: "completion", Error: err.Error(), Timestamp: m.now()})
		return nil, err
	}
	if actualCount != int64(s.ProcessedDocuments) {
		log.Warn().Str("session", sessionID).Int64("actualCount", actualCount).
			Int("processedDocuments", s.ProcessedDocuments).
			Msg("actual index count disagrees with session counters; using actual as readiness floor")
	}

	if err := m.probe.WaitReady(ctx, s.TargetIndex, health.WaitOptions{
		Timeout:          5 * time.Minute,
		CheckInterval:    2 * time.Second,
		ExpectedDocCount: actualCount,
	}); err != nil {
		s.Status = StatusFailed
		s.appendError(BatchError{Phase: "completion", Error: err.Error(), Timestamp: m.now()})
		return nil, err
	}

	valid, err := m.probe.Validate(ctx, s.TargetIndex)
	if err != nil {
		s.Status = StatusFailed
		s.appendError(BatchError{Phase: "completion", Error: err.Error(), Timestamp: m.now()})
		return nil, err
	}
	if !valid {
		s.Status = StatusFailed
		failErr := apierrors.PreconditionFailedFatal("validation failed for index %q", s.TargetIndex)
		s.appendError(BatchError{Phase: "completion", Error: failErr.Error(), Timestamp: m.now()})
		return nil, failErr
	}

	s.Status = StatusCompleted

	current, err := m.coordinator.GetStatus(ctx, s.Alias)
	if err != nil {
		return nil, err
	}
	result := &deploy.State{
		Alias:          s.Alias,
		ActiveColor:    current.ActiveColor,
		ActiveIndex:    current.ActiveIndex,
		StagingColor:   s.TargetColor,
		StagingIndex:   s.TargetIndex,
		Status:         deploy.StatusReadyForSwap,
		LastDeployment: m.now(),
		Strategy:       s.Strategy,
	}

	if s.Strategy == deploy.StrategyAutoSwap {
		swapped, err := m.coordinator.SwapAlias(ctx, s.Alias, s.TargetColor)
		if err != nil {
			return nil, err
		}
		return swapped, nil
	}
	return result, nil
}

// Cancel deletes the session's target index and marks it failed. It
// never touches the alias.
func (m *Manager) Cancel(ctx context.Context, sessionID string) error {
	s, err := m.lookup(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := m.lifecycle.Delete(ctx, s.TargetIndex); err != nil {
		return err
	}
	s.Status = StatusFailed
	return nil
}

// GetSession returns a value snapshot of sessionID's current state.
func (m *Manager) GetSession(sessionID string) (Session, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return Session{}, err
	}
	return s.snapshot(), nil
}

// ListActive returns a snapshot of every session currently active.
func (m *Manager) ListActive() []Session {
	m.mapMu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mapMu.Unlock()

	active := make([]Session, 0, len(all))
	for _, s := range all {
		snap := s.snapshot()
		if snap.Status == StatusActive {
			active = append(active, snap)
		}
	}
	return active
}

// RunExpirySweep blocks, running the expiry sweep every sweepInterval
// until ctx is canceled. It is meant to be run as a background task
// alongside the HTTP server.
func (m *Manager) RunExpirySweep(ctx context.Context) error {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.SweepExpiredSessions()
		}
	}
}

// SweepExpiredSessions marks every non-terminal session whose last
// batch is older than SessionTimeout as expired and removes it from
// the active set. RunExpirySweep calls this on its own ticker; it is
// exported so callers (and tests) can trigger a sweep on demand.
func (m *Manager) SweepExpiredSessions() {
	now := m.now()

	m.mapMu.Lock()
	candidates := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		candidates = append(candidates, s)
	}
	m.mapMu.Unlock()

	var expired []string
	for _, s := range candidates {
		s.mu.Lock()
		if !s.isTerminal() && now.Sub(s.LastBatchAt) > SessionTimeout {
			s.Status = StatusExpired
			expired = append(expired, s.ID)
		}
		s.mu.Unlock()
	}

	if len(expired) == 0 {
		return
	}

	m.mapMu.Lock()
	for _, id := range expired {
		delete(m.sessions, id)
	}
	m.mapMu.Unlock()

	log.Info().Strs("sessionIds", expired).Msg("expired idle sessions")
}
