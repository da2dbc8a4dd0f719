// Package server exposes the syllable generation endpoint and the browser UI over HTTP.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/book-expert/hangul-tts/internal/batch"
	"github.com/book-expert/hangul-tts/internal/core"
	"github.com/book-expert/logger"
	"golang.org/x/text/unicode/norm"
)

// Actions accepted by the endpoint.
const (
	ActionGenerateAll    = "generate-all"
	ActionGenerateSingle = "generate-single"
	ActionGetProgress    = "get-progress"
)

// Routes.
const (
	routeAPI    = "/api/tts"
	routeHealth = "/health"
	routeAudio  = "/audio/"
)

const (
	headerContentType        = "Content-Type"
	headerContentLength      = "Content-Length"
	headerContentDisposition = "Content-Disposition"
	headerAllow              = "Allow"
	contentTypeJSON          = "application/json"
	contentTypeMPEG          = "audio/mpeg"
	maxRequestBytes          = 1 << 16
)

// Error messages returned to clients.
const (
	msgMethodNotAllowed = "Method not allowed"
	msgInvalidAction    = "Invalid action"
	msgInvalidRequest   = "Invalid request"
	msgSyllableRequired = "Syllable is required"
	msgTTSFailed        = "Failed to generate TTS"
	msgInternal         = "Internal server error"
)

//go:embed web
var webFiles embed.FS

// Orchestrator runs batches and reports progress.
type Orchestrator interface {
	Run(ctx context.Context, req batch.Request) (*batch.Result, error)
	Progress() (batch.Progress, error)
}

// apiRequest is the JSON body accepted by the endpoint.
type apiRequest struct {
	Action     string `json:"action"`
	StartIndex int    `json:"startIndex"`
	BatchSize  int    `json:"batchSize"`
	Syllable   string `json:"syllable"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

type progressResponse struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Remaining int `json:"remaining"`
	Progress  int `json:"progress"`
}

// Handler serves the API, the UI, and the generated audio files.
type Handler struct {
	orchestrator     Orchestrator
	synthesizer      core.Synthesizer
	defaultBatchSize int
	log              *logger.Logger
}

// NewHandler creates the API handler.
func NewHandler(
	orchestrator Orchestrator,
	synthesizer core.Synthesizer,
	defaultBatchSize int,
	log *logger.Logger,
) *Handler {
	return &Handler{
		orchestrator:     orchestrator,
		synthesizer:      synthesizer,
		defaultBatchSize: defaultBatchSize,
		log:              log,
	}
}

// Routes builds the mux: the API endpoint, health, audio files under audioDir, and the UI.
func (h *Handler) Routes(audioDir string) (http.Handler, error) {
	ui, err := fs.Sub(webFiles, "web")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded ui: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(routeAPI, h.recoverer(http.HandlerFunc(h.serveAPI)))
	mux.HandleFunc(routeHealth, h.serveHealth)
	mux.Handle(routeAudio, http.StripPrefix(routeAudio, http.FileServer(http.Dir(audioDir))))
	mux.Handle("/", http.FileServer(http.FS(ui)))

	return mux, nil
}

func (h *Handler) serveAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set(headerAllow, http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: msgMethodNotAllowed})

		return
	}

	var req apiRequest

	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgInvalidRequest, Details: err.Error()})

		return
	}

	switch req.Action {
	case ActionGenerateAll:
		h.generateAll(w, r, req)
	case ActionGenerateSingle:
		h.generateSingle(w, r, req)
	case ActionGetProgress:
		h.getProgress(w)
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgInvalidAction})
	}
}

func (h *Handler) generateAll(w http.ResponseWriter, r *http.Request, req apiRequest) {
	if req.BatchSize == 0 {
		req.BatchSize = h.defaultBatchSize
	}

	// A batch already running completes even if the client goes away.
	ctx := context.WithoutCancel(r.Context())

	result, err := h.orchestrator.Run(ctx, batch.Request{StartIndex: req.StartIndex, BatchSize: req.BatchSize})
	if errors.Is(err, batch.ErrInvalidRequest) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgInvalidRequest, Details: err.Error()})

		return
	}

	if err != nil {
		h.internalError(w, req.Action, err, debug.Stack())

		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) generateSingle(w http.ResponseWriter, r *http.Request, req apiRequest) {
	syllable := norm.NFC.String(strings.TrimSpace(req.Syllable))
	if syllable == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgSyllableRequired})

		return
	}

	h.log.Info("Single synthesis request for syllable: %s", syllable)

	audio, err := h.synthesizer.Synthesize(r.Context(), syllable)
	if err != nil {
		h.log.Error("Failed to generate TTS for %s: %v", syllable, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgTTSFailed, Details: err.Error()})

		return
	}

	w.Header().Set(headerContentType, contentTypeMPEG)
	w.Header().Set(headerContentLength, strconv.Itoa(len(audio)))
	w.Header().Set(headerContentDisposition, ContentDisposition(syllable))
	w.WriteHeader(http.StatusOK)

	_, err = w.Write(audio)
	if err != nil {
		h.log.Warn("Failed to write audio response for %s: %v", syllable, err)
	}
}

func (h *Handler) getProgress(w http.ResponseWriter) {
	progress, err := h.orchestrator.Progress()
	if err != nil {
		h.internalError(w, ActionGetProgress, err, debug.Stack())

		return
	}

	h.log.Info("Progress check: %d/%d completed", progress.Completed, progress.Total)

	writeJSON(w, http.StatusOK, progressResponse{
		Total:     progress.Total,
		Completed: progress.Completed,
		Remaining: progress.Remaining,
		Progress:  progress.Percentage,
	})
}

func (h *Handler) serveHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) internalError(w http.ResponseWriter, action string, err error, stack []byte) {
	h.log.Error("Action %s failed: %v", action, err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Error:   msgInternal,
		Details: err.Error(),
		Stack:   string(stack),
	})
}

// recoverer turns a panic in the API into the 500 error body.
func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}

			h.internalError(w, "panic", fmt.Errorf("%v", recovered), debug.Stack())
		}()

		next.ServeHTTP(w, r)
	})
}

// ContentDisposition builds the attachment header for a single-syllable download.
func ContentDisposition(syllable string) string {
	// RFC 5987 attr-char excludes most sub-delims, which PathEscape leaves as-is.
	return "attachment; filename*=UTF-8''" + strings.ReplaceAll(url.QueryEscape(syllable), "+", "%20") + "_test.mp3"
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set(headerContentType, contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
