package handlers

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-signin/internal/registry"
	"github.com/kozaktomas/face-signin/internal/signin"
)

// SignInService is the part of signin.Service the handlers use.
type SignInService interface {
	SignIn(ctx context.Context, image []byte) (*signin.SignInResult, error)
	Register(ctx context.Context, req signin.NewClient, image []byte) (*registry.Client, error)
}

// SignInHandler serves the kiosk endpoints.
type SignInHandler struct {
	service  SignInService
	maxBytes int64
	log      logrus.FieldLogger
}

// NewSignInHandler creates the kiosk handler.
func NewSignInHandler(service SignInService, maxUploadBytes int64, log logrus.FieldLogger) *SignInHandler {
	return &SignInHandler{service: service, maxBytes: maxUploadBytes, log: log}
}

// SignIn matches the uploaded photo. Unknown faces get 401 with the best score.
func (h *SignInHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	photo, err := readPhoto(w, r, h.maxBytes)
	if err != nil {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}

	result, err := h.service.SignIn(r.Context(), photo)
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	if !result.Granted {
		score := result.Score
		respondJSON(w, http.StatusUnauthorized, errorResponse{
			Error: "access denied",
			Code:  codeAccessDenied,
			Score: &score,
		})
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Register enrolls a client from the photo and form fields.
func (h *SignInHandler) Register(w http.ResponseWriter, r *http.Request) {
	photo, err := readPhoto(w, r, h.maxBytes)
	if err != nil {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}

	req := signin.NewClient{
		FirstName:    r.FormValue("first_name"),
		LastName:     r.FormValue("last_name"),
		Email:        r.FormValue("email"),
		Role:         r.FormValue("role"),
		UnitNumber:   r.FormValue("unit_number"),
		BuildingName: r.FormValue("building_name"),
	}
	client, err := h.service.Register(r.Context(), req, photo)
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, client)
}
