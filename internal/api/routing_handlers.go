package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/siprouted/siprouted/internal/metrics"
	"github.com/siprouted/siprouted/internal/routing"
)

// handleRouting answers a routing query from the signaling proxy. The
// response body is the bare rtjson document, not the enveloped admin format.
func (s *Server) handleRouting(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var ev routing.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		s.observeDecision(metrics.OutcomeError, start)
		writeRaw(w, http.StatusBadRequest, routing.NoMatchResponse())
		return
	}

	decision, err := s.matcher.Match(r.Context(), &ev)
	if err != nil {
		s.writeRoutingError(w, r, &ev, err, start)
		return
	}

	resp, err := routing.BuildResponse(decision, &ev)
	if err != nil {
		s.writeRoutingError(w, r, &ev, err, start)
		return
	}

	switch decision.Kind {
	case routing.DecisionDomain:
		s.observeDecision(metrics.OutcomeDomain, start)
	case routing.DecisionDID:
		s.observeDecision(metrics.OutcomeDID, start)
	}
	writeRaw(w, http.StatusOK, resp)
}

// writeRoutingError maps matcher and builder errors to proxy responses. A
// no-match is a normal outcome and answers 200 with success false; only
// genuine failures get error status codes.
func (s *Server) writeRoutingError(w http.ResponseWriter, r *http.Request, ev *routing.Event, err error, start time.Time) {
	switch {
	case errors.Is(err, routing.ErrNoMatch):
		s.observeDecision(metrics.OutcomeNoMatch, start)
		writeRaw(w, http.StatusOK, routing.NoMatchResponse())
	case errors.Is(err, routing.ErrMalformedInput):
		s.observeDecision(metrics.OutcomeError, start)
		writeRaw(w, http.StatusBadRequest, routing.NoMatchResponse())
	case errors.Is(err, routing.ErrStoreUnavailable):
		slog.Error("routing store unavailable", "call_id", ev.CallID, "error", err)
		s.observeDecision(metrics.OutcomeError, start)
		writeRaw(w, http.StatusServiceUnavailable, routing.NoMatchResponse())
	default:
		slog.Error("routing decision failed", "call_id", ev.CallID, "error", err)
		s.observeDecision(metrics.OutcomeError, start)
		writeRaw(w, http.StatusInternalServerError, routing.NoMatchResponse())
	}
}

func (s *Server) observeDecision(outcome string, start time.Time) {
	if s.rm == nil {
		return
	}
	s.rm.Decisions.WithLabelValues(outcome).Inc()
	s.rm.DecisionDuration.Observe(time.Since(start).Seconds())
}
