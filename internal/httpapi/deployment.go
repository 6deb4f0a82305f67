package httpapi

import (
	"net/http"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/go-go-golems/bluedex/internal/alias"
	"github.com/go-go-golems/bluedex/internal/apierrors"
	"github.com/go-go-golems/bluedex/internal/lifecycle"
)

func (s *Server) handlePromote(w http.ResponseWriter, r *http.Request) {
	aliasName := r.PathValue("alias")
	targetIndex := r.URL.Query().Get("targetIndex")
	if targetIndex == "" {
		writeError(w, apierrors.InvalidArgument("targetIndex query parameter is required"))
		return
	}

	ctx, cancel := contextWithTimeout(r, 30*time.Second)
	defer cancel()

	exists, err := s.gateway.IndexExists(ctx, targetIndex)
	if err != nil {
		writeError(w, err)
		return
	}
	if !exists {
		writeError(w, apierrors.NotFound("index %q does not exist", targetIndex))
		return
	}

	targetColor := lifecycle.ColorFromName(targetIndex)
	newState, err := s.coordinator.SwapAlias(ctx, aliasName, targetColor)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"alias":          aliasName,
		"newActiveIndex": newState.ActiveIndex,
		"message":        "alias promoted to " + newState.ActiveIndex,
	})
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	aliasName := r.PathValue("alias")

	ctx, cancel := contextWithTimeout(r, 30*time.Second)
	defer cancel()

	newState, err := s.coordinator.Rollback(ctx, aliasName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newState)
}

func (s *Server) handleAliasStatus(w http.ResponseWriter, r *http.Request) {
	aliasName := r.PathValue("alias")

	ctx, cancel := contextWithTimeout(r, 15*time.Second)
	defer cancel()

	state, err := s.coordinator.GetStatus(ctx, aliasName)
	if err != nil {
		writeError(w, err)
		return
	}

	indices, err := s.gateway.IndexGet(ctx, lifecycle.Pattern(aliasName), true)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alias":       aliasName,
		"exists":      state.ActiveIndex != "",
		"activeIndex": state.ActiveIndex,
		"activeColor": state.ActiveColor,
		"indices":     indices,
	})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	aliasName := r.PathValue("alias")

	ctx, cancel := contextWithTimeout(r, 15*time.Second)
	defer cancel()

	indices, err := s.gateway.IndexGet(ctx, lifecycle.Pattern(aliasName), true)
	if err != nil {
		writeError(w, err)
		return
	}

	// Mapping bytes are opaque to the control plane, but operators
	// reading this endpoint expect the most recently created index
	// first; an ordered map preserves that order through JSON encoding
	// instead of encoding/json's default alphabetical key sort.
	sortedIndices := append([]string(nil), indices...)
	alias.SortDescending(sortedIndices)

	ordered := orderedmap.New[string, interface{}]()
	for _, idx := range sortedIndices {
		ordered.Set(idx, nil)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alias":    aliasName,
		"indices":  sortedIndices,
		"mappings": ordered,
	})
}
