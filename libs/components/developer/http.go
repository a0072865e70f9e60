package developer

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/formvault/formvault/libs/components/envelope"
	"github.com/formvault/formvault/libs/shared/httpx"
)

// Handler exposes HTTP handlers for developer registration.
type Handler struct {
	repo Repository
}

// NewHandler creates a new developer Handler.
func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// Mount registers developer routes on the provided router under the supplied base path.
func (h *Handler) Mount(router chi.Router, basePath string) {
	path := strings.TrimSpace(basePath)
	if path == "" {
		path = "/developers"
	}

	router.Route(path, func(r chi.Router) {
		r.Get("/", h.listDevelopers)
		r.Post("/", h.createDeveloper)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getDeveloper)
			r.Patch("/", h.updateDeveloper)
			r.Delete("/", h.deleteDeveloper)
		})
	})
}

type createDeveloperRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	PublicKey string `json:"publicKey"`
}

type updateDeveloperRequest struct {
	Name      *string `json:"name"`
	Email     *string `json:"email"`
	PublicKey *string `json:"publicKey"`
	Active    *bool   `json:"active"`
}

func (h *Handler) listDevelopers(w http.ResponseWriter, r *http.Request) {
	search := strings.TrimSpace(r.URL.Query().Get("search"))
	developers, err := h.repo.List(r.Context(), search)
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	items := make([]map[string]any, 0, len(developers))
	for _, entity := range developers {
		items = append(items, entity.ToDTO())
	}
	httpx.Data(w, http.StatusOK, items)
}

func (h *Handler) createDeveloper(w http.ResponseWriter, r *http.Request) {
	var payload createDeveloperRequest
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	name := strings.TrimSpace(payload.Name)
	email := strings.ToLower(strings.TrimSpace(payload.Email))
	publicKey := strings.TrimSpace(payload.PublicKey)

	if name == "" {
		httpx.Error(w, http.StatusBadRequest, "name is required")
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		httpx.Error(w, http.StatusBadRequest, "email is invalid")
		return
	}
	if err := envelope.ValidatePublicKey(publicKey); err != nil {
		httpx.Error(w, http.StatusBadRequest, "publicKey is not a valid age recipient")
		return
	}

	entity := &Developer{
		Name:      name,
		Email:     email,
		PublicKey: publicKey,
		Active:    true,
	}
	if err := h.repo.Create(r.Context(), entity); err != nil {
		writeError(w, err)
		return
	}
	httpx.Data(w, http.StatusCreated, entity.ToDTO())
}

func (h *Handler) getDeveloper(w http.ResponseWriter, r *http.Request) {
	entity, err := h.repo.Find(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.Data(w, http.StatusOK, entity.ToDTO())
}

func (h *Handler) updateDeveloper(w http.ResponseWriter, r *http.Request) {
	var payload updateDeveloperRequest
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	updates := make(map[string]any)
	if payload.Name != nil {
		name := strings.TrimSpace(*payload.Name)
		if name == "" {
			httpx.Error(w, http.StatusBadRequest, "name cannot be empty")
			return
		}
		updates["name"] = name
	}
	if payload.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*payload.Email))
		if _, err := mail.ParseAddress(email); err != nil {
			httpx.Error(w, http.StatusBadRequest, "email is invalid")
			return
		}
		updates["email"] = email
	}
	if payload.PublicKey != nil {
		publicKey := strings.TrimSpace(*payload.PublicKey)
		if err := envelope.ValidatePublicKey(publicKey); err != nil {
			httpx.Error(w, http.StatusBadRequest, "publicKey is not a valid age recipient")
			return
		}
		updates["public_key"] = publicKey
	}
	if payload.Active != nil {
		updates["active"] = *payload.Active
	}
	if len(updates) == 0 {
		httpx.Error(w, http.StatusBadRequest, "no updates provided")
		return
	}

	entity, err := h.repo.Update(r.Context(), chi.URLParam(r, "id"), updates)
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.Data(w, http.StatusOK, entity.ToDTO())
}

func (h *Handler) deleteDeveloper(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Error(w, http.StatusNotFound, "developer not found")
	case errors.Is(err, ErrEmailTaken):
		httpx.Error(w, http.StatusConflict, "email already registered")
	default:
		httpx.Error(w, http.StatusInternalServerError, err.Error())
	}
}
