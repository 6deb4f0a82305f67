package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-go-golems/bluedex/internal/apierrors"
	"github.com/go-go-golems/bluedex/internal/deploy"
)

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	alias := r.PathValue("alias")
	if alias == "" {
		writeError(w, apierrors.InvalidArgument("alias must not be blank"))
		return
	}

	strategy := deploy.StrategySafe
	switch r.URL.Query().Get("strategy") {
	case "", "safe":
		strategy = deploy.StrategySafe
	case "auto-swap":
		strategy = deploy.StrategyAutoSwap
	default:
		writeError(w, apierrors.InvalidArgument("unsupported strategy %q", r.URL.Query().Get("strategy")))
		return
	}

	var estimatedTotal int64
	if raw := r.URL.Query().Get("estimatedTotal"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, apierrors.InvalidArgument("estimatedTotal must be an integer"))
			return
		}
		estimatedTotal = v
	}

	ctx, cancel := contextWithTimeout(r, 30*time.Second)
	defer cancel()

	sess, err := s.sessions.Start(ctx, alias, strategy, estimatedTotal)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleProcessBatch(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionId")
	var documents []map[string]interface{}
	if err := decodeJSON(r, &documents); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := contextWithTimeout(r, 2*time.Minute)
	defer cancel()

	result, err := s.sessions.ProcessBatch(ctx, sessionID, documents)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionId")

	ctx, cancel := contextWithTimeout(r, 6*time.Minute)
	defer cancel()

	state, err := s.sessions.Complete(ctx, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionId")

	ctx, cancel := contextWithTimeout(r, 30*time.Second)
	defer cancel()

	if err := s.sessions.Cancel(ctx, sessionID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionId")
	sess, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleListActive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.ListActive())
}
