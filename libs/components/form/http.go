package form

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/formvault/formvault/libs/components/envelope"
	"github.com/formvault/formvault/libs/shared/httpx"
)

// DeveloperKeys resolves a developer's registered public key.
type DeveloperKeys interface {
	PublicKey(ctx context.Context, developerID string) (string, error)
}

// Handler exposes HTTP endpoints for schema management.
type Handler struct {
	repo       Repository
	developers DeveloperKeys
}

// NewHandler constructs a Handler. developers may be nil, in which case
// every create request must carry a public key.
func NewHandler(repo Repository, developers DeveloperKeys) *Handler {
	return &Handler{repo: repo, developers: developers}
}

// Mount registers the schema routes on the provided router under the supplied base path.
func (h *Handler) Mount(router chi.Router, basePath string) {
	path := strings.TrimSpace(basePath)
	if path == "" {
		path = "/forms"
	}
	router.Route(path, h.Routes)
}

// Routes registers the schema routes on r. Routes are flat so other
// components can add /{id}/... endpoints to the same router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.listSchemas)
	r.Post("/", h.createSchema)
	r.Post("/presets/{preset}", h.createFromPreset)
	r.Get("/{id}", h.getSchema)
	r.Delete("/{id}", h.deleteSchema)
	r.Post("/{id}/fields", h.addField)
	r.Put("/{id}/fields", h.replaceFields)
	r.Put("/{id}/webhook", h.updateWebhook)
}

type createSchemaRequest struct {
	Name        string            `json:"name"`
	DeveloperID string            `json:"developerId"`
	PublicKey   string            `json:"publicKey"`
	Fields      []FieldDefinition `json:"fields"`
	WebhookURL  *string           `json:"webhookUrl"`
}

type presetRequest struct {
	DeveloperID string  `json:"developerId"`
	PublicKey   string  `json:"publicKey"`
	WebhookURL  *string `json:"webhookUrl"`
}

type fieldsRequest struct {
	Fields []FieldDefinition `json:"fields"`
}

type webhookRequest struct {
	WebhookURL *string `json:"webhookUrl"`
}

func (h *Handler) listSchemas(w http.ResponseWriter, r *http.Request) {
	developerID := strings.TrimSpace(r.URL.Query().Get("developerId"))
	schemas, err := h.repo.List(r.Context(), developerID)
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	items := make([]map[string]any, 0, len(schemas))
	for _, entity := range schemas {
		items = append(items, entity.ToDTO())
	}
	httpx.Data(w, http.StatusOK, items)
}

func (h *Handler) createSchema(w http.ResponseWriter, r *http.Request) {
	var payload createSchemaRequest
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	schema := NewSchema(payload.Name, payload.DeveloperID, payload.PublicKey, payload.Fields)
	h.create(w, r, schema, payload.WebhookURL)
}

func (h *Handler) createFromPreset(w http.ResponseWriter, r *http.Request) {
	preset, err := LookupPreset(chi.URLParam(r, "preset"))
	if err != nil {
		httpx.Error(w, http.StatusNotFound, err.Error())
		return
	}

	var payload presetRequest
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	schema := preset(strings.TrimSpace(payload.DeveloperID), strings.TrimSpace(payload.PublicKey))
	h.create(w, r, schema, payload.WebhookURL)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request, schema *Schema, webhookURL *string) {
	if schema.DeveloperID == "" {
		httpx.Error(w, http.StatusBadRequest, "developerId is required")
		return
	}
	if schema.PublicKey == "" && h.developers != nil {
		key, err := h.developers.PublicKey(r.Context(), schema.DeveloperID)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, "developer public key could not be resolved")
			return
		}
		schema.PublicKey = key
	}
	if schema.PublicKey == "" {
		httpx.Error(w, http.StatusBadRequest, "publicKey is required")
		return
	}
	if err := envelope.ValidatePublicKey(schema.PublicKey); err != nil {
		httpx.Error(w, http.StatusBadRequest, "publicKey is not a valid age recipient")
		return
	}

	normalized, err := normalizeWebhook(webhookURL)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	schema.WebhookURL = normalized

	if err := h.repo.Create(r.Context(), schema); err != nil {
		writeRepoError(w, err)
		return
	}
	httpx.Data(w, http.StatusCreated, schema.ToDTO())
}

func (h *Handler) getSchema(w http.ResponseWriter, r *http.Request) {
	entity, err := h.repo.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeRepoError(w, err)
		return
	}
	httpx.Data(w, http.StatusOK, entity.ToDTO())
}

func (h *Handler) addField(w http.ResponseWriter, r *http.Request) {
	var field FieldDefinition
	if err := httpx.DecodeJSON(r, &field); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	entity, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	if err := entity.AddField(field); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.repo.UpdateFields(r.Context(), id, entity.Fields)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	httpx.Data(w, http.StatusOK, updated.ToDTO())
}

func (h *Handler) replaceFields(w http.ResponseWriter, r *http.Request) {
	var payload fieldsRequest
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.Fields == nil {
		payload.Fields = []FieldDefinition{}
	}

	entity, err := h.repo.UpdateFields(r.Context(), chi.URLParam(r, "id"), payload.Fields)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	httpx.Data(w, http.StatusOK, entity.ToDTO())
}

func (h *Handler) updateWebhook(w http.ResponseWriter, r *http.Request) {
	var payload webhookRequest
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	normalized, err := normalizeWebhook(payload.WebhookURL)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	entity, err := h.repo.UpdateWebhook(r.Context(), chi.URLParam(r, "id"), normalized)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	httpx.Data(w, http.StatusOK, entity.ToDTO())
}

func (h *Handler) deleteSchema(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeRepoError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeRepoError(w http.ResponseWriter, err error) {
	var invalid *InvalidSchemaError
	switch {
	case IsNotFound(err):
		httpx.Error(w, http.StatusNotFound, "form not found")
	case errors.As(err, &invalid):
		httpx.Error(w, http.StatusBadRequest, invalid.Error())
	default:
		httpx.Error(w, http.StatusInternalServerError, err.Error())
	}
}

// normalizeWebhook trims the URL and maps "" to nil. Only absolute http(s)
// URLs are accepted.
func normalizeWebhook(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, errors.New("webhookUrl must be an absolute http or https URL")
	}
	return &trimmed, nil
}
