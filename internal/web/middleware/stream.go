package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-signin/internal/capture"
)

// KioskHeader names the capture stream a kiosk uploads from.
const KioskHeader = "X-Kiosk-ID"

const maxKioskIDLen = 64

// CaptureStream tags each request with its capture stream so kiosks are throttled independently.
// Requests without a KioskHeader are keyed by client address; run it after chi's RealIP.
func CaptureStream() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := capture.WithStream(r.Context(), streamKey(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func streamKey(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(KioskHeader)); id != "" {
		if len(id) > maxKioskIDLen {
			id = id[:maxKioskIDLen]
		}
		return "kiosk:" + id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}
