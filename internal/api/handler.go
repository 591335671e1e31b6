package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"docqa/internal/answer"
	"docqa/internal/index"
	"docqa/internal/ingest"
	"docqa/internal/openai"
)

const maxRequestBodySize = 1 << 20 // 1MB

// QuestionAnswerer answers a question over the indexed documents.
type QuestionAnswerer interface {
	Answer(ctx context.Context, question string, yearFilter *int) (answer.QueryResult, error)
}

// Reprocessor rebuilds the index from the docs directory.
type Reprocessor interface {
	Reprocess(ctx context.Context, clearExisting bool) (ingest.Result, error)
}

// IndexReader exposes the read-only index views the API serves.
type IndexReader interface {
	AvailableYears() []int
	Stats() index.Stats
}

// Deps carries everything the HTTP handlers need.
type Deps struct {
	Answerer    QuestionAnswerer
	Reprocessor Reprocessor
	Index       IndexReader
	// Token, when non-empty, protects POST /reprocess with bearer auth.
	Token string
	// APIConfigured reports whether an upstream model API key is set.
	APIConfigured bool
	Logger        *slog.Logger
}

// NewHandler returns the service's HTTP API.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Get("/health", handleHealth(deps))
	r.Post("/ask", handleAsk(deps))
	r.Get("/years", handleYears(deps))
	r.Get("/stats", handleStats(deps))

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}
		r.Post("/reprocess", handleReprocess(deps))
	})

	return r
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"status":         "ok",
			"api_configured": deps.APIConfigured,
		})
	}
}

// AskRequest is the JSON body for POST /ask.
type AskRequest struct {
	Question string `json:"question"`
	Year     *int   `json:"year,omitempty"`
}

func handleAsk(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req AskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		req.Question = strings.TrimSpace(req.Question)
		if req.Question == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question is required")
			return
		}

		result, err := deps.Answerer.Answer(r.Context(), req.Question, req.Year)
		if err != nil {
			deps.Logger.Error("answering question failed", "error", err)
			var statusErr *openai.StatusError
			if errors.As(err, &statusErr) {
				httpError(w, http.StatusBadGateway, "upstream_error", "failed to answer question: %v", err)
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "failed to answer question: %v", err)
			return
		}

		writeJSON(w, result)
	}
}

// ReprocessResponse is the JSON body returned by POST /reprocess.
type ReprocessResponse struct {
	Message string `json:"message"`
	ingest.Result
}

func handleReprocess(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clearExisting := true
		if raw := r.URL.Query().Get("clear_existing"); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid clear_existing value: %q", raw)
				return
			}
			clearExisting = v
		}

		res, err := deps.Reprocessor.Reprocess(r.Context(), clearExisting)
		if err != nil {
			deps.Logger.Error("reprocessing failed", "error", err)
			httpError(w, http.StatusInternalServerError, "api_error", "reprocessing failed: %v", err)
			return
		}

		writeJSON(w, ReprocessResponse{Message: "Documents reprocessed successfully", Result: res})
	}
}

func handleYears(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		years := deps.Index.AvailableYears()
		if years == nil {
			years = []int{}
		}
		writeJSON(w, map[string][]int{"available_years": years})
	}
}

// StatsResponse is the JSON body returned by GET /stats. MinYear and MaxYear
// hold ints when documents exist and the string "N/A" otherwise.
type StatsResponse struct {
	DocCount int `json:"doc_count"`
	MinYear  any `json:"min_year"`
	MaxYear  any `json:"max_year"`
}

func handleStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := deps.Index.Stats()

		resp := StatsResponse{DocCount: st.DocumentCount, MinYear: "N/A", MaxYear: "N/A"}
		if st.DocumentCount > 0 {
			resp.MinYear, resp.MaxYear = st.MinYear, st.MaxYear
		}
		writeJSON(w, resp)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
