package submission

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/formvault/formvault/libs/components/form"
	"github.com/formvault/formvault/libs/shared/httpx"
)

// Enqueuer schedules an asynchronous redelivery.
type Enqueuer interface {
	Enqueue(ctx context.Context, submissionID, requestedBy string) error
}

// Handler exposes the submission HTTP API.
type Handler struct {
	pipeline *Pipeline
	store    SubmissionStore
	schemas  SchemaRepository
	queue    Enqueuer
	logger   *slog.Logger
}

// NewHandler constructs a Handler. With a non-nil queue, retry requests are
// queued for the worker instead of running inline.
func NewHandler(pipeline *Pipeline, store SubmissionStore, schemas SchemaRepository, queue Enqueuer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{pipeline: pipeline, store: store, schemas: schemas, queue: queue, logger: logger}
}

// FormRoutes registers the per-form endpoints on a router already scoped to
// the forms base path.
func (h *Handler) FormRoutes(r chi.Router) {
	r.Post("/{id}/submissions", h.submit)
	r.Get("/{id}/submissions", h.listSubmissions)
	r.Get("/{id}/submissions/count", h.countSubmissions)
}

// Mount registers the submission routes on the provided router under the supplied base path.
func (h *Handler) Mount(router chi.Router, basePath string) {
	path := strings.TrimSpace(basePath)
	if path == "" {
		path = "/submissions"
	}

	router.Route(path, func(r chi.Router) {
		r.Get("/metrics", h.metrics)
		r.Get("/{id}", h.getSubmission)
		r.Post("/{id}/retry", h.retry)
		r.Post("/{id}/archive", h.archive)
	})
}

type submitRequest struct {
	Data map[string]string `json:"data"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	schema, ok := h.loadSchema(w, r)
	if !ok {
		return
	}

	var payload submitRequest
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.Data == nil {
		payload.Data = map[string]string{}
	}

	sub, err := h.pipeline.Process(r.Context(), schema, payload.Data, metadataFromRequest(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.Data(w, http.StatusCreated, sub.ToDTO())
}

func (h *Handler) listSubmissions(w http.ResponseWriter, r *http.Request) {
	schema, ok := h.loadSchema(w, r)
	if !ok {
		return
	}

	opts, err := parseListOptions(r)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	subs, err := h.store.FindBySchema(r.Context(), schema.ID, opts)
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	items := make([]map[string]any, 0, len(subs))
	for _, sub := range subs {
		items = append(items, sub.ToDTO())
	}
	httpx.Data(w, http.StatusOK, items)
}

func (h *Handler) countSubmissions(w http.ResponseWriter, r *http.Request) {
	schema, ok := h.loadSchema(w, r)
	if !ok {
		return
	}

	total, err := h.store.CountBySchema(r.Context(), schema.ID)
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.Data(w, http.StatusOK, map[string]any{"formSchemaId": schema.ID, "count": total})
}

func (h *Handler) getSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := h.store.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.Data(w, http.StatusOK, sub.ToDTO())
}

func (h *Handler) retry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if h.queue == nil {
		sub, err := h.pipeline.Redeliver(r.Context(), id)
		if err != nil {
			h.writeError(w, err)
			return
		}
		httpx.Data(w, http.StatusOK, sub.ToDTO())
		return
	}

	sub, err := h.store.FindByID(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !CanTransition(sub.Status(), StatusProcessing) {
		h.writeError(w, &TransitionError{From: sub.Status(), To: StatusProcessing})
		return
	}
	if err := h.queue.Enqueue(r.Context(), sub.ID, "api"); err != nil {
		h.logger.Error("submission: enqueue redelivery failed", "submission_id", sub.ID, "error", err)
		httpx.Error(w, http.StatusServiceUnavailable, "redelivery could not be queued")
		return
	}
	httpx.Data(w, http.StatusAccepted, map[string]any{"submissionId": sub.ID, "queued": true})
}

func (h *Handler) archive(w http.ResponseWriter, r *http.Request) {
	sub, err := h.pipeline.Archive(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.Data(w, http.StatusOK, sub.ToDTO())
}

func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	counts, err := h.store.StatusCounts(r.Context())
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.Data(w, http.StatusOK, counts)
}

func (h *Handler) loadSchema(w http.ResponseWriter, r *http.Request) (*form.Schema, bool) {
	schema, err := h.schemas.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if form.IsNotFound(err) {
			httpx.Error(w, http.StatusNotFound, "form not found")
			return nil, false
		}
		httpx.Error(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return schema, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var verr *form.ValidationError
	switch {
	case errors.As(err, &verr):
		httpx.ErrorWithDetails(w, http.StatusUnprocessableEntity, "validation failed", verr.Errors)
	case errors.Is(err, ErrEncryptionFailed):
		httpx.Error(w, http.StatusUnprocessableEntity, "submission could not be encrypted for this form")
	case errors.Is(err, ErrSubmissionNotFound):
		httpx.Error(w, http.StatusNotFound, "submission not found")
	case form.IsNotFound(err):
		httpx.Error(w, http.StatusNotFound, "form not found")
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrNoWebhook):
		httpx.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrPersistenceFailed):
		httpx.Error(w, http.StatusInternalServerError, "submission could not be stored")
	default:
		httpx.Error(w, http.StatusInternalServerError, err.Error())
	}
}

func metadataFromRequest(r *http.Request) Metadata {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return Metadata{
		IPAddress: ip,
		UserAgent: r.UserAgent(),
		Referrer:  r.Referer(),
		Country:   strings.ToUpper(strings.TrimSpace(r.Header.Get("CF-IPCountry"))),
	}
}

func parseListOptions(r *http.Request) (ListOptions, error) {
	query := r.URL.Query()
	opts := ListOptions{}

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return opts, errors.New("limit must be a non-negative integer")
		}
		opts.Limit = limit
	}
	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return opts, errors.New("offset must be a non-negative integer")
		}
		opts.Offset = offset
	}
	if raw := query.Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return opts, errors.New("from must be an RFC 3339 timestamp")
		}
		opts.From = &from
	}
	if raw := query.Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return opts, errors.New("to must be an RFC 3339 timestamp")
		}
		opts.To = &to
	}
	if opts.From != nil && opts.To != nil && opts.To.Before(*opts.From) {
		return opts, errors.New("to must not be before from")
	}
	return opts, nil
}
