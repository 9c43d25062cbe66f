package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Error codes returned to API clients.
const (
	codeRetryCapture        = "retry_capture"
	codeAccessDenied        = "access_denied"
	codeGalleryInconsistent = "gallery_inconsistent"
	codeThrottled           = "throttled"
	codeDetectorUnavailable = "detector_unavailable"
	codeAlreadyRegistered   = "already_registered"
	codeEmailTaken          = "email_taken"
	codeInvalidRequest      = "invalid_request"
	codeNotFound            = "not_found"
	codeUnauthorized        = "unauthorized"
	codeInternal            = "internal"
)

const (
	// photoField is the multipart field carrying the captured image.
	photoField    = "photo"
	healthTimeout = 2 * time.Second
)

// errorResponse is the body of every non-2xx answer.
type errorResponse struct {
	Error string   `json:"error"`
	Code  string   `json:"code"`
	Score *float64 `json:"score,omitempty"`
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response with a machine-readable code.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// Pinger checks that a backing service is reachable.
type Pinger func(ctx context.Context) error

// HealthCheck answers 200 while ping succeeds and 503 otherwise. A nil ping always reports ok.
func HealthCheck(ping Pinger, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := ping(ctx); err != nil {
				log.WithError(err).Warn("health check failed")
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unavailable",
				})
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	}
}

// readPhoto pulls the photo part out of a multipart request, capped at maxBytes.
func readPhoto(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return nil, fmt.Errorf("parsing multipart form: %w", err)
	}

	file, _, err := r.FormFile(photoField)
	if err != nil {
		return nil, fmt.Errorf("missing %q file: %w", photoField, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("reading photo: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("photo is empty")
	}
	return data, nil
}
