// Package extract exposes the extraction pipeline over HTTP.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"finsheets/pkg/core/pipeline"
)

// Extractor runs one extraction. *pipeline.Orchestrator satisfies it.
type Extractor interface {
	Extract(ctx context.Context, identifier string, lookbackYears int, includeSegments bool) (*pipeline.Result, error)
}

// Saver optionally persists finished results. Nil disables persistence.
type Saver interface {
	Save(ctx context.Context, result *pipeline.Result) error
}

type Request struct {
	Identifier      string `json:"identifier"`
	LookbackYears   int    `json:"lookback_years,omitempty"`
	IncludeSegments bool   `json:"include_segments"`
}

// FailureResponse mirrors pipeline.ExtractionFailure for the wire.
type FailureResponse struct {
	Stage  pipeline.Stage `json:"stage"`
	Reason string         `json:"reason"`
}

// Handler holds dependencies for the extract endpoint.
type Handler struct {
	extractor Extractor
	saver     Saver
}

// NewHandler creates the extract handler; saver may be nil.
func NewHandler(extractor Extractor, saver Saver) *Handler {
	return &Handler{extractor: extractor, saver: saver}
}

// HandleExtract serves POST /api/extract.
func (h *Handler) HandleExtract(w http.ResponseWriter, r *http.Request) {
	// CORS headers for local dev
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Identifier == "" {
		http.Error(w, "identifier is required", http.StatusBadRequest)
		return
	}
	if req.LookbackYears < 0 {
		http.Error(w, "lookback_years must be positive", http.StatusBadRequest)
		return
	}

	result, err := h.extractor.Extract(r.Context(), req.Identifier, req.LookbackYears, req.IncludeSegments)
	if err != nil {
		var failure *pipeline.ExtractionFailure
		if errors.As(err, &failure) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(FailureResponse{Stage: failure.Stage, Reason: failure.Reason})
			return
		}
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	if h.saver != nil {
		if err := h.saver.Save(r.Context(), result); err != nil {
			// Persistence is best-effort; the caller still gets the result.
			fmt.Printf("[API] Warning: failed to persist result for %s: %v\n", result.Issuer.CIK, err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
