package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/trunov/imagecache/internal/entities"
	"github.com/trunov/imagecache/internal/queue"
)

const cacheControl = "max-age=31536000"

type UseCase interface {
	GetImage(ctx context.Context, id entities.ImageIdentifier, req entities.TransformRequest) (entities.Variant, error)
}

// Pinger is a dependency that readiness depends on.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Enqueuer schedules a variant to be computed in the background.
type Enqueuer interface {
	EnqueueWarm(ctx context.Context, job queue.WarmJob) error
}

type Handler struct {
	useCase   UseCase
	checks    map[string]Pinger
	warmup    Enqueuer
	validator *validator.Validate
}

func New(useCase UseCase, checks map[string]Pinger) *Handler {
	return &Handler{
		useCase:   useCase,
		checks:    checks,
		validator: validator.New(),
	}
}

// WithWarmup enables the warm endpoint.
func (h *Handler) WithWarmup(e Enqueuer) *Handler {
	h.warmup = e
	return h
}

func (h *Handler) WarmupEnabled() bool {
	return h.warmup != nil
}

// GetImage serves GET and HEAD /images/{identifier}.
func (h *Handler) GetImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "identifier")
	if id == "" {
		writeJSONError(w, "image not found", http.StatusNotFound)
		return
	}

	req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	variant, err := h.useCase.GetImage(r.Context(), id, req)
	if err != nil {
		h.writeUseCaseError(w, r, id, err)
		return
	}

	w.Header().Set("Content-Type", variant.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(variant.Data)))
	w.Header().Set("Cache-Control", cacheControl)
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(variant.Data); err != nil {
		log.Ctx(r.Context()).Debug().Err(err).Str("identifier", id).Msg("client went away mid-response")
	}
}

// WarmImage queues the requested variant for precomputation and answers 202
// without waiting for it.
func (h *Handler) WarmImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "identifier")
	if id == "" || h.warmup == nil {
		writeJSONError(w, "not found", http.StatusNotFound)
		return
	}

	req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	job := queue.NewWarmJob(id, req)
	if err := h.warmup.EnqueueWarm(r.Context(), job); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("identifier", id).Msg("failed to enqueue warm job")
		writeJSONError(w, "could not schedule warmup", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, job)
}

// parseRequest validates the transform query parameters. On failure it has
// already written the 400 response.
func (h *Handler) parseRequest(w http.ResponseWriter, r *http.Request) (entities.TransformRequest, bool) {
	q := r.URL.Query()
	parseErrs := map[string]string{}
	params := GetImageParams{
		Width:   parseInt64Param(q, "width", parseErrs),
		Height:  parseInt64Param(q, "height", parseErrs),
		Quality: parseInt64Param(q, "quality", parseErrs),
		Format:  strings.ToLower(q.Get("format")),
	}
	if len(parseErrs) > 0 {
		writeJSON(w, http.StatusBadRequest, APIError{Error: "invalid query parameters", Fields: parseErrs})
		return entities.TransformRequest{}, false
	}

	if err := h.validator.Struct(params); err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Error: "invalid query parameters", Fields: validationErrorsToMap(err)})
		return entities.TransformRequest{}, false
	}

	req, err := params.toRequest()
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return entities.TransformRequest{}, false
	}
	return req, true
}

func (h *Handler) writeUseCaseError(w http.ResponseWriter, r *http.Request, id string, err error) {
	switch {
	case errors.Is(err, entities.ErrNotFound):
		writeJSONError(w, "image not found", http.StatusNotFound)
		return
	case errors.Is(err, entities.ErrInvalidParams):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, context.DeadlineExceeded):
		// Same status the timeout middleware would write.
		log.Ctx(r.Context()).Warn().Err(err).Str("identifier", id).Msg("timed out serving image")
		writeJSONError(w, "request timed out", http.StatusGatewayTimeout)
		return
	}

	log.Ctx(r.Context()).Error().Err(err).Str("identifier", id).Msg("failed to serve image")

	// Client disconnects are not worth an alert.
	if !errors.Is(err, context.Canceled) {
		if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
			hub.CaptureException(err)
		}
	}

	writeJSONError(w, "internal server error", http.StatusInternalServerError)
}

func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz pings every dependency and reports 503 if any is down.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{}
	code := http.StatusOK

	for name, check := range h.checks {
		if err := check.Ping(r.Context()); err != nil {
			log.Ctx(r.Context()).Warn().Err(err).Str("dependency", name).Msg("readiness check failed")
			status[name] = err.Error()
			code = http.StatusServiceUnavailable
			continue
		}
		status[name] = "ok"
	}

	writeJSON(w, code, status)
}
