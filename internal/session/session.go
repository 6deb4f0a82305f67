package session

import (
	"sync"
	"time"

	"github.com/go-go-golems/bluedex/internal/deploy"
	"github.com/go-go-golems/bluedex/internal/lifecycle"
)

// Status is a session's position in its own small lifecycle, distinct
// from the deployment state machine it eventually hands off to.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
)

// BatchError is one recorded failure against a session, bounded in
// number by maxErrors to keep a long-running session's memory flat.
type BatchError struct {
	BatchNumber int
	Phase       string
	DocumentRef string
	Error       string
	Timestamp   time.Time
}

const maxErrors = 100

// Session is a streaming batch-ingest coordinator for one staging
// index, owned by the Manager from Start until a terminal status.
type Session struct {
	mu sync.Mutex

	ID            string
	Alias         string
	TargetIndex   string
	TargetColor   lifecycle.Color
	Strategy      deploy.Strategy
	EstimatedTotal int64 // 0 means unset

	TotalBatches      int
	ProcessedBatches  int
	TotalDocuments    int
	ProcessedDocuments int
	FailedDocuments   int

	Status     Status
	CreatedAt  time.Time
	LastBatchAt time.Time

	Errors []BatchError
}

// snapshot returns a value copy of the counters and metadata safe to
// hand to a caller, built field by field so the session's mutex is
// never copied.
func (s *Session) snapshot() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Session{
		ID:                 s.ID,
		Alias:              s.Alias,
		TargetIndex:        s.TargetIndex,
		TargetColor:        s.TargetColor,
		Strategy:           s.Strategy,
		EstimatedTotal:     s.EstimatedTotal,
		TotalBatches:       s.TotalBatches,
		ProcessedBatches:   s.ProcessedBatches,
		TotalDocuments:     s.TotalDocuments,
		ProcessedDocuments: s.ProcessedDocuments,
		FailedDocuments:    s.FailedDocuments,
		Status:             s.Status,
		CreatedAt:          s.CreatedAt,
		LastBatchAt:        s.LastBatchAt,
		Errors:             append([]BatchError(nil), s.Errors...),
	}
}

func (s *Session) appendError(e BatchError) {
	s.Errors = append(s.Errors, e)
	if len(s.Errors) > maxErrors {
		s.Errors = s.Errors[len(s.Errors)-maxErrors:]
	}
}

func (s *Session) isTerminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed || s.Status == StatusExpired
}
