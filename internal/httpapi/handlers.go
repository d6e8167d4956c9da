package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/roach88/planq/internal/engine"
	"github.com/roach88/planq/internal/plan"
)

// PlanRequest is the body of /v1/query and /v1/validate.
type PlanRequest struct {
	Plan *plan.QueryPlan `json:"plan"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) schema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.exec.Registry().Describe())
}

func (s *Server) validate(w http.ResponseWriter, r *http.Request) {
	p, err := decodePlan(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	vr := s.exec.Validate(p)
	status := http.StatusOK
	if !vr.Valid {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, vr)
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	caller := strings.TrimSpace(r.Header.Get(CallerHeader))
	if caller == "" {
		writeError(w, http.StatusUnauthorized, fmt.Sprintf("missing %s header", CallerHeader))
		return
	}
	p, err := decodePlan(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res := s.exec.Execute(r.Context(), p, caller)
	writeJSON(w, StatusFor(res), res)
}

// StatusFor maps a result to its HTTP status.
func StatusFor(res *engine.QueryResult) int {
	if res.Success {
		return http.StatusOK
	}
	switch res.Code {
	case engine.CodeSchemaViolation:
		return http.StatusBadRequest
	case engine.CodeAggregationError:
		return http.StatusUnprocessableEntity
	case engine.CodeTimeout:
		return http.StatusGatewayTimeout
	case engine.CodeSubqueryFailed, engine.CodeExecutionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodePlan(w http.ResponseWriter, r *http.Request) (*plan.QueryPlan, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	var req PlanRequest
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	if req.Plan == nil {
		return nil, errors.New(`request body must contain a "plan" object`)
	}
	return req.Plan, nil
}
