package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/calibright/internal/engine"
)

// handleGetConfig returns the published configuration snapshot.
func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	snap := s.engine.Store().Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"version":    snap.Version,
		"applied_at": snap.AppliedAt,
		"global":     snap.Global,
		"overrides":  snap.Overrides,
		"file":       s.configFile,
	})
}

// handleReloadConfig re-reads the display config file. An invalid file is
// rejected and the running configuration stays in place.
func (s *Server) handleReloadConfig(w http.ResponseWriter, _ *http.Request) {
	if s.configFile == "" {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "no display config file configured")
		return
	}

	changed, err := s.engine.ReloadFile(s.configFile, engine.ReloadAPI)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"changed": changed,
		"version": s.engine.Store().Current().Version,
	})
}

// handleListReloads returns the reload audit history, newest first.
//
// Query parameters:
//   - limit: maximum entries (default 50, capped at 500)
func (s *Server) handleListReloads(w http.ResponseWriter, r *http.Request) {
	if s.inventory == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "reload history requires the database")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	reloads, err := s.inventory.ListReloads(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing reloads", "error", err)
		writeInternalError(w, "failed to list reloads")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reloads": reloads, "count": len(reloads)})
}
