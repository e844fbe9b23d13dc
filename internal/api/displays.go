package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/calibright/internal/calibration"
	"github.com/nerrad567/calibright/internal/device"
	"github.com/nerrad567/calibright/internal/engine"
	"github.com/nerrad567/calibright/internal/inventory"
)

// operationTimeout bounds one hardware request made on behalf of an HTTP
// caller.
const operationTimeout = 15 * time.Second

// brightnessRequest is the body of PUT .../brightness.
type brightnessRequest struct {
	Brightness *float64 `json:"brightness"`
}

// adjustRequest is the body of POST .../adjust.
type adjustRequest struct {
	Delta *float64 `json:"delta"`
}

// displayResponse is returned by GET /displays/{id}.
type displayResponse struct {
	engine.DisplayInfo
	Brightness *float64           `json:"brightness,omitempty"`
	ReadError  string             `json:"read_error,omitempty"`
	Inventory  *inventory.Display `json:"inventory,omitempty"`
}

// handleListDisplays returns every registered display.
//
// Query parameters:
//   - device: regex filter on display id
func (s *Server) handleListDisplays(w http.ResponseWriter, r *http.Request) {
	re, ok := deviceFilter(w, r)
	if !ok {
		return
	}

	displays := make([]engine.DisplayInfo, 0)
	for _, id := range s.engine.Match(re) {
		info, err := s.engine.Describe(id)
		if err != nil {
			continue // removed since Match
		}
		displays = append(displays, info)
	}
	writeJSON(w, http.StatusOK, map[string]any{"displays": displays, "count": len(displays)})
}

// handleDiscover runs a discovery pass immediately.
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), operationTimeout)
	defer cancel()

	resp := map[string]any{}
	if err := s.engine.Rediscover(ctx); err != nil {
		resp["warning"] = err.Error()
	}
	ids := s.engine.ListDisplays()
	resp["displays"] = ids
	resp["count"] = len(ids)
	writeJSON(w, http.StatusOK, resp)
}

// handleGetDisplay returns a display's configuration, link statistics and
// current brightness. A failed read is reported in the body, not as an
// error status.
func (s *Server) handleGetDisplay(w http.ResponseWriter, r *http.Request) {
	id := device.ID(chi.URLParam(r, "id"))

	info, err := s.engine.Describe(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	resp := displayResponse{DisplayInfo: info}

	ctx, cancel := context.WithTimeout(r.Context(), operationTimeout)
	defer cancel()
	if v, err := s.engine.GetBrightness(ctx, id); err != nil {
		resp.ReadError = err.Error()
	} else {
		resp.Brightness = &v
	}

	if s.inventory != nil {
		inv, err := s.inventory.Get(r.Context(), id)
		switch {
		case err == nil:
			resp.Inventory = inv
		case !errors.Is(err, inventory.ErrDisplayNotFound):
			s.logger.Warn("inventory lookup failed", "id", id, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleGetBrightness reads one display.
func (s *Server) handleGetBrightness(w http.ResponseWriter, r *http.Request) {
	id := device.ID(chi.URLParam(r, "id"))

	ctx, cancel := context.WithTimeout(r.Context(), operationTimeout)
	defer cancel()
	v, err := s.engine.GetBrightness(ctx, id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "brightness": v})
}

// handleSetBrightness sets one display. Values outside [0, 100] are clamped.
func (s *Server) handleSetBrightness(w http.ResponseWriter, r *http.Request) {
	id := device.ID(chi.URLParam(r, "id"))

	var req brightnessRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Brightness == nil {
		writeBadRequest(w, "brightness is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), operationTimeout)
	defer cancel()
	if err := s.engine.SetBrightness(ctx, id, *req.Brightness); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "brightness": clamp(*req.Brightness)})
}

// handleAdjustDisplay moves one display by a relative amount.
func (s *Server) handleAdjustDisplay(w http.ResponseWriter, r *http.Request) {
	id := device.ID(chi.URLParam(r, "id"))
	s.adjust(w, r, []device.ID{id})
}

// handleGetAggregate returns the mean brightness over matched displays.
//
// Query parameters:
//   - device: regex filter on display id (default: all)
func (s *Server) handleGetAggregate(w http.ResponseWriter, r *http.Request) {
	ids, ok := s.matched(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), operationTimeout)
	defer cancel()
	v, err := s.engine.GetAverage(ctx, ids)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"displays": ids, "brightness": v})
}

// handleSetAggregate sets every matched display. It succeeds if at least
// one display accepted the value.
func (s *Server) handleSetAggregate(w http.ResponseWriter, r *http.Request) {
	ids, ok := s.matched(w, r)
	if !ok {
		return
	}
	var req brightnessRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Brightness == nil {
		writeBadRequest(w, "brightness is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), operationTimeout)
	defer cancel()
	if err := s.engine.SetAll(ctx, ids, *req.Brightness); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"displays": ids, "brightness": clamp(*req.Brightness)})
}

// handleAdjustAggregate moves the matched displays by a relative amount.
func (s *Server) handleAdjustAggregate(w http.ResponseWriter, r *http.Request) {
	ids, ok := s.matched(w, r)
	if !ok {
		return
	}
	s.adjust(w, r, ids)
}

func (s *Server) adjust(w http.ResponseWriter, r *http.Request, ids []device.ID) {
	var req adjustRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Delta == nil {
		writeBadRequest(w, "delta is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), operationTimeout)
	defer cancel()
	v, err := s.engine.Adjust(ctx, ids, *req.Delta)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"displays": ids, "brightness": v})
}

// matched resolves ?device= to display ids. It writes the error response
// itself when it returns false.
func (s *Server) matched(w http.ResponseWriter, r *http.Request) ([]device.ID, bool) {
	re, ok := deviceFilter(w, r)
	if !ok {
		return nil, false
	}
	ids := s.engine.Match(re)
	if len(ids) == 0 {
		writeEngineError(w, engine.ErrNoDisplays)
		return nil, false
	}
	return ids, true
}

func deviceFilter(w http.ResponseWriter, r *http.Request) (*regexp.Regexp, bool) {
	expr := r.URL.Query().Get("device")
	if expr == "" {
		return nil, true
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		writeBadRequest(w, "invalid device regex: "+err.Error())
		return nil, false
	}
	return re, true
}

// decodeBody decodes a JSON body, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return false
	}
	return true
}

func clamp(v float64) float64 {
	return math.Max(calibration.MinPercent, math.Min(calibration.MaxPercent, v))
}
