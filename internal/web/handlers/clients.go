package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-signin/internal/facematch"
	"github.com/kozaktomas/face-signin/internal/photostore"
	"github.com/kozaktomas/face-signin/internal/registry"
	"github.com/kozaktomas/face-signin/internal/web/middleware"
)

// ClientRemover deletes a client together with its face data and photo.
type ClientRemover interface {
	DeleteClient(ctx context.Context, id facematch.Identity) error
}

// ClientsHandler serves the client directory.
type ClientsHandler struct {
	directory registry.Directory
	remover   ClientRemover
	photos    photostore.Store
	log       logrus.FieldLogger
}

// NewClientsHandler creates the directory handler.
func NewClientsHandler(directory registry.Directory, remover ClientRemover, photos photostore.Store, log logrus.FieldLogger) *ClientsHandler {
	return &ClientsHandler{directory: directory, remover: remover, photos: photos, log: log}
}

// List returns all clients, or those whose name matches ?q=.
func (h *ClientsHandler) List(w http.ResponseWriter, r *http.Request) {
	var clients []registry.Client
	var err error
	if q := r.URL.Query().Get("q"); q != "" {
		clients, err = h.directory.SearchClients(r.Context(), q)
	} else {
		clients, err = h.directory.ListClients(r.Context())
	}
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	if clients == nil {
		clients = []registry.Client{}
	}
	respondJSON(w, http.StatusOK, clients)
}

// Get returns one client.
func (h *ClientsHandler) Get(w http.ResponseWriter, r *http.Request) {
	client, err := h.directory.GetClient(r.Context(), clientID(r))
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, client)
}

// Me returns the client the bearer token was issued to.
func (h *ClientsHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, codeUnauthorized, "missing token claims")
		return
	}
	client, err := h.directory.GetClient(r.Context(), facematch.Identity(claims.ClientID))
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, client)
}

// Delete removes the client, its face data, tasks and photo.
func (h *ClientsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.remover.DeleteClient(r.Context(), clientID(r)); err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateStatus merges the JSON object of flags into the client's status.
func (h *ClientsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var status map[string]bool
	if err := json.NewDecoder(r.Body).Decode(&status); err != nil || len(status) == 0 {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "expected a JSON object of status flags")
		return
	}

	id := clientID(r)
	if err := h.directory.UpdateStatus(r.Context(), id, status); err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	client, err := h.directory.GetClient(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, client)
}

// Photo streams the stored profile photo.
func (h *ClientsHandler) Photo(w http.ResponseWriter, r *http.Request) {
	photo, err := h.photos.Get(r.Context(), clientID(r))
	if errors.Is(err, photostore.ErrNotFound) {
		respondError(w, http.StatusNotFound, codeNotFound, "photo not found")
		return
	}
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(photo))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write(photo)
}

func clientID(r *http.Request) facematch.Identity {
	return facematch.Identity(chi.URLParam(r, "id"))
}
