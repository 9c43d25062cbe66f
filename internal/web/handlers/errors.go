package handlers

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-signin/internal/capture"
	"github.com/kozaktomas/face-signin/internal/facematch"
	"github.com/kozaktomas/face-signin/internal/registry"
	"github.com/kozaktomas/face-signin/internal/signin"
)

// respondServiceError maps service errors to status codes. Unexpected errors are logged.
func respondServiceError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	switch {
	case errors.Is(err, signin.ErrRetryCapture), errors.Is(err, capture.ErrFrameUnchanged):
		respondError(w, http.StatusUnprocessableEntity, codeRetryCapture, signin.ErrRetryCapture.Error())
	case errors.Is(err, capture.ErrThrottled):
		respondError(w, http.StatusTooManyRequests, codeThrottled, capture.ErrThrottled.Error())
	case errors.Is(err, facematch.ErrShapeMismatch):
		log.WithError(err).Error("stored encodings do not fit the active encoder")
		respondError(w, http.StatusInternalServerError, codeGalleryInconsistent,
			"stored face data does not match the active encoder, re-encode the gallery")
	case errors.Is(err, signin.ErrDetector):
		log.WithError(err).Warn("face detector unavailable")
		respondError(w, http.StatusBadGateway, codeDetectorUnavailable, "face detector unavailable")
	case errors.Is(err, signin.ErrAlreadyRegistered):
		respondError(w, http.StatusConflict, codeAlreadyRegistered, "this face is already registered")
	case errors.Is(err, registry.ErrEmailTaken):
		respondError(w, http.StatusConflict, codeEmailTaken, err.Error())
	case errors.Is(err, signin.ErrInvalidClient), errors.Is(err, registry.ErrInvalidTask),
		errors.Is(err, registry.ErrUnknownStatus):
		respondError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
	case errors.Is(err, registry.ErrClientNotFound):
		respondError(w, http.StatusNotFound, codeNotFound, "client not found")
	case errors.Is(err, registry.ErrTaskNotFound):
		respondError(w, http.StatusNotFound, codeNotFound, "task not found")
	default:
		log.WithError(err).Error("request failed")
		respondError(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}
