package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"repobrief/internal/apperr"
	"repobrief/internal/logging"
	"repobrief/internal/types"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// Summarizer produces the public response for a repository URL.
type Summarizer interface {
	Summarize(ctx context.Context, githubURL string) (types.Response, error)
}

// Handler serves the summarize endpoints.
type Handler struct {
	summarizer Summarizer
}

func NewHandler(s Summarizer) *Handler {
	return &Handler{summarizer: s}
}

// SummarizeRequest is the body of POST /summarize.
type SummarizeRequest struct {
	GitHubURL *string `json:"github_url"`
}

// NewMux routes the API and wraps it with request logging and CORS.
func NewMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /summarize", h.HandleSummarize)
	mux.HandleFunc("GET /summarize/stream", h.HandleStream)
	mux.HandleFunc("GET /healthz", h.HandleHealth)
	return CORS(RequestLogger(logger)(mux))
}

func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) HandleSummarize(w http.ResponseWriter, r *http.Request) {
	url, err := decodeRequest(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	resp, err := h.summarizer.Summarize(r.Context(), url)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeRequest reads a SummarizeRequest. Bodies that are not JSON or lack a
// string github_url fail with INVALID_GITHUB_URL and status 422.
func decodeRequest(body io.Reader) (string, error) {
	var req SummarizeRequest
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		return "", malformedRequest(err.Error())
	}
	if req.GitHubURL == nil || strings.TrimSpace(*req.GitHubURL) == "" {
		return "", malformedRequest("github_url is required")
	}
	return *req.GitHubURL, nil
}

// statusError overrides the HTTP status of a coded error.
type statusError struct {
	err    *apperr.Error
	status int
}

func (e statusError) Error() string { return e.err.Error() }

func (e statusError) Unwrap() error { return e.err }

func malformedRequest(reason string) error {
	return statusError{
		err:    apperr.New(apperr.InvalidGitHubURL, "request body must be JSON with a github_url string").WithDetail("reason", reason),
		status: http.StatusUnprocessableEntity,
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	e := apperr.From(err)
	status := e.Status()
	var se statusError
	if errors.As(err, &se) {
		status = se.status
	}
	log := logging.From(ctx)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", slog.String("code", string(e.Code)), slog.Any("err", err))
	} else {
		log.Warn("request rejected", slog.String("code", string(e.Code)), slog.Any("err", err))
	}
	writeJSON(w, status, e.Envelope())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
