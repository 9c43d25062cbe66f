package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kozaktomas/face-signin/internal/auth"
	"github.com/kozaktomas/face-signin/internal/capture"
	"github.com/kozaktomas/face-signin/internal/config"
	"github.com/kozaktomas/face-signin/internal/detector"
	"github.com/kozaktomas/face-signin/internal/facematch"
	"github.com/kozaktomas/face-signin/internal/logging"
	"github.com/kozaktomas/face-signin/internal/photostore"
	"github.com/kozaktomas/face-signin/internal/registry"
	"github.com/kozaktomas/face-signin/internal/registry/memory"
	"github.com/kozaktomas/face-signin/internal/signin"
	"github.com/kozaktomas/face-signin/internal/web/handlers"
	"github.com/kozaktomas/face-signin/internal/web/middleware"
)

// faces maps upload bodies to the vector the fake detector reports.
var faces = map[string][]float64{
	"ada.jpg":       {1, 0, 0},
	"ada-again.jpg": {0.98, 0.15, 0},
	"stranger.jpg":  {0, 0, 1},
}

type testServer struct {
	handler http.Handler
	store   *memory.Store
	photos  *photostore.Memory
}

type serverOptions struct {
	throttle time.Duration // wraps the detector in a capture.Throttle when set
	ping     handlers.Pinger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, serverOptions{})
}

func newTestServerWith(t *testing.T, opts serverOptions) *testServer {
	t.Helper()

	var det detector.Detector = detector.Func(func(_ context.Context, image []byte) facematch.DetectorOutput {
		vec, ok := faces[string(image)]
		if !ok {
			return facematch.DetectorOutput{}
		}
		return facematch.DetectorOutput{Faces: []facematch.DetectedFace{{Vector: vec, Score: 0.95}}}
	})
	if opts.throttle > 0 {
		det = capture.NewThrottle(det, capture.Options{MinInterval: opts.throttle})
	}

	tokens, err := auth.NewManager("server-test-secret", 0)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	store := memory.New()
	photos := photostore.NewMemory()
	reg := prometheus.NewRegistry()
	service, err := signin.NewService(signin.Options{
		Detector: det,
		Store:    store,
		Photos:   photos,
		Tokens:   tokens,
		Calibration: config.Calibration{
			Mode:               facematch.ModeVector,
			Metric:             facematch.MetricCosine,
			Threshold:          0.9,
			DuplicateThreshold: 0.95,
		},
		Index:   registry.NewNearestIndex(),
		Metrics: signin.NewMetrics(reg),
		Logger:  logging.Discard(),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	srv := NewServer(config.WebConfig{Host: "127.0.0.1", Port: 0}, Deps{
		Service:   service,
		Directory: store,
		Tasks:     store,
		Photos:    photos,
		Tokens:    tokens,
		Ping:      opts.ping,
		Gatherer:  reg,
		Logger:    logging.Discard(),
	})
	return &testServer{handler: srv.Router(), store: store, photos: photos}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func photoRequest(t *testing.T, path, photo string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		w.WriteField(k, v)
	}
	part, err := w.CreateFormFile("photo", "capture.jpg")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	part.Write([]byte(photo))
	w.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func (ts *testServer) register(t *testing.T, photo, first, last string) registry.Client {
	t.Helper()
	rec := ts.do(photoRequest(t, "/api/v1/register", photo, map[string]string{
		"first_name": first,
		"last_name":  last,
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d, body %s", photo, rec.Code, rec.Body.String())
	}
	var client registry.Client
	if err := json.Unmarshal(rec.Body.Bytes(), &client); err != nil {
		t.Fatalf("decode client: %v", err)
	}
	return client
}

func (ts *testServer) signIn(t *testing.T, photo string) string {
	t.Helper()
	rec := ts.do(photoRequest(t, "/api/v1/signin", photo, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("signin %s: status %d, body %s", photo, rec.Code, rec.Body.String())
	}
	var result signin.SignInResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return result.Token
}

func authed(method, path, token string, body []byte) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return resp.Code
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers on every response")
	}

	ts.register(t, "ada.jpg", "Ada", "Lovelace")
	rec = ts.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "face_signin_registrations_total") {
		t.Errorf("metrics output missing registration counter:\n%s", rec.Body.String())
	}
}

func TestSignInFlow(t *testing.T) {
	ts := newTestServer(t)
	ada := ts.register(t, "ada.jpg", "Ada", "Lovelace")

	if _, err := ts.photos.Get(context.Background(), ada.ID); err != nil {
		t.Errorf("expected profile photo stored for %s: %v", ada.ID, err)
	}

	token := ts.signIn(t, "ada-again.jpg")
	if token == "" {
		t.Fatal("expected a token for a granted sign-in")
	}

	rec := ts.do(photoRequest(t, "/api/v1/signin", "stranger.jpg", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("stranger status = %d, want 401", rec.Code)
	}
	if code := errorCode(t, rec); code != "access_denied" {
		t.Errorf("stranger code = %q", code)
	}

	rec = ts.do(photoRequest(t, "/api/v1/signin", "blank-wall.jpg", nil))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("no-face status = %d, want 422", rec.Code)
	}
	if code := errorCode(t, rec); code != "retry_capture" {
		t.Errorf("no-face code = %q", code)
	}
}

func TestRegister_DuplicateFace(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "ada.jpg", "Ada", "Lovelace")

	rec := ts.do(photoRequest(t, "/api/v1/register", "ada.jpg", map[string]string{
		"first_name": "Ada",
		"last_name":  "Again",
	}))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if code := errorCode(t, rec); code != "already_registered" {
		t.Errorf("code = %q", code)
	}
}

func TestRegister_MissingName(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(photoRequest(t, "/api/v1/register", "ada.jpg", map[string]string{"last_name": "Lovelace"}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestClients_RequireToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/clients", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", rec.Code)
	}

	rec = ts.do(authed(http.MethodGet, "/api/v1/clients", "not-a-jwt", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token status = %d, want 401", rec.Code)
	}
}

func TestClients_Directory(t *testing.T) {
	ts := newTestServer(t)
	ada := ts.register(t, "ada.jpg", "Adéla", "Nováková")
	ts.register(t, "stranger.jpg", "Alan", "Turing")
	token := ts.signIn(t, "ada-again.jpg")

	rec := ts.do(authed(http.MethodGet, "/api/v1/clients", token, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var all []registry.Client
	json.Unmarshal(rec.Body.Bytes(), &all)
	if len(all) != 2 {
		t.Errorf("expected 2 clients, got %d", len(all))
	}

	rec = ts.do(authed(http.MethodGet, "/api/v1/clients?q=adela", token, nil))
	var found []registry.Client
	json.Unmarshal(rec.Body.Bytes(), &found)
	if len(found) != 1 || found[0].ID != ada.ID {
		t.Errorf("search for 'adela' returned %+v", found)
	}

	rec = ts.do(authed(http.MethodGet, "/api/v1/clients/"+string(ada.ID), token, nil))
	if rec.Code != http.StatusOK {
		t.Errorf("get status = %d", rec.Code)
	}

	rec = ts.do(authed(http.MethodGet, "/api/v1/clients/missing", token, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("get missing status = %d, want 404", rec.Code)
	}

	rec = ts.do(authed(http.MethodPut, "/api/v1/clients/"+string(ada.ID)+"/status", token, []byte(`{"completed":true}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status update = %d, body %s", rec.Code, rec.Body.String())
	}
	var updated registry.Client
	json.Unmarshal(rec.Body.Bytes(), &updated)
	if !updated.Status[registry.StatusCompleted] || updated.Status[registry.StatusPending] || len(updated.Status) != 4 {
		t.Errorf("status not merged: %v", updated.Status)
	}

	rec = ts.do(authed(http.MethodPut, "/api/v1/clients/"+string(ada.ID)+"/status", token, []byte(`{"banned":true}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown status flag = %d, want 400", rec.Code)
	}

	rec = ts.do(authed(http.MethodPut, "/api/v1/clients/"+string(ada.ID)+"/status", token, []byte(`[]`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad status body = %d, want 400", rec.Code)
	}

	rec = ts.do(authed(http.MethodGet, "/api/v1/clients/"+string(ada.ID)+"/photo", token, nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ada.jpg" {
		t.Errorf("photo status = %d, body %q", rec.Code, rec.Body.String())
	}

	rec = ts.do(authed(http.MethodGet, "/api/v1/clients/missing/photo", token, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing photo status = %d, want 404", rec.Code)
	}
}

func TestHealth_DatabaseDown(t *testing.T) {
	ts := newTestServerWith(t, serverOptions{ping: func(context.Context) error {
		return errors.New("connection refused")
	}})

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("health status = %d, want 503", rec.Code)
	}
}

func TestSignIn_ThrottledPerKiosk(t *testing.T) {
	ts := newTestServerWith(t, serverOptions{throttle: time.Hour})
	ts.register(t, "ada.jpg", "Ada", "Lovelace")

	fromKiosk := func(kiosk string) *httptest.ResponseRecorder {
		req := photoRequest(t, "/api/v1/signin", "ada-again.jpg", nil)
		req.Header.Set(middleware.KioskHeader, kiosk)
		return ts.do(req)
	}

	if rec := fromKiosk("lobby"); rec.Code != http.StatusOK {
		t.Fatalf("lobby status = %d, body %s", rec.Code, rec.Body.String())
	}
	rec := fromKiosk("lobby")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second lobby status = %d, want 429", rec.Code)
	}
	if rec := fromKiosk("garden"); rec.Code != http.StatusOK {
		t.Errorf("garden status = %d, want 200 while lobby is throttled", rec.Code)
	}
}

func TestMe(t *testing.T) {
	ts := newTestServer(t)
	ada := ts.register(t, "ada.jpg", "Ada", "Lovelace")
	token := ts.signIn(t, "ada-again.jpg")

	rec := ts.do(authed(http.MethodGet, "/api/v1/me", token, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d, body %s", rec.Code, rec.Body.String())
	}
	var me registry.Client
	json.Unmarshal(rec.Body.Bytes(), &me)
	if me.ID != ada.ID {
		t.Errorf("me = %s, want %s", me.ID, ada.ID)
	}

	if err := ts.store.DeleteClient(context.Background(), ada.ID); err != nil {
		t.Fatalf("DeleteClient: %v", err)
	}
	rec = ts.do(authed(http.MethodGet, "/api/v1/me", token, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("me after delete = %d, want 404", rec.Code)
	}
}

func TestClients_Delete(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "ada.jpg", "Ada", "Lovelace")
	alan := ts.register(t, "stranger.jpg", "Alan", "Turing")
	token := ts.signIn(t, "ada-again.jpg")

	rec := ts.do(authed(http.MethodDelete, "/api/v1/clients/"+string(alan.ID), token, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, body %s", rec.Code, rec.Body.String())
	}
	if _, err := ts.photos.Get(context.Background(), alan.ID); !errors.Is(err, photostore.ErrNotFound) {
		t.Errorf("photo still stored after delete: %v", err)
	}

	rec = ts.do(photoRequest(t, "/api/v1/signin", "stranger.jpg", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("deleted client sign-in status = %d, want 401", rec.Code)
	}

	rec = ts.do(authed(http.MethodDelete, "/api/v1/clients/"+string(alan.ID), token, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestTasks(t *testing.T) {
	ts := newTestServer(t)
	ada := ts.register(t, "ada.jpg", "Ada", "Lovelace")
	token := ts.signIn(t, "ada-again.jpg")
	base := "/api/v1/clients/" + string(ada.ID) + "/tasks"

	rec := ts.do(authed(http.MethodGet, base, token, nil))
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("empty list = %d %q", rec.Code, rec.Body.String())
	}

	rec = ts.do(authed(http.MethodPost, base, token, []byte(`{
		"type": "Med Reminders",
		"description": "evening pills",
		"date": "2026-03-02T20:00:00Z",
		"repeat_days": ["Sat", "Mon"]
	}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created registry.Task
	json.Unmarshal(rec.Body.Bytes(), &created)
	if created.ID == "" || created.ClientID != ada.ID || len(created.RepeatDays) != 2 || created.RepeatDays[0] != "Mon" {
		t.Errorf("unexpected task %+v", created)
	}

	rec = ts.do(authed(http.MethodPost, base, token, []byte(`{"type":"Gardening","description":"weeds","date":"2026-03-02T08:00:00Z"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown type status = %d, want 400", rec.Code)
	}
	rec = ts.do(authed(http.MethodPost, base, token, []byte(`{"date":"yesterday"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad date status = %d, want 400", rec.Code)
	}
	rec = ts.do(authed(http.MethodPost, "/api/v1/clients/missing/tasks", token, []byte(`{"type":"Exercise","description":"walk","date":"2026-03-02T08:00:00Z"}`)))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing client status = %d, want 404", rec.Code)
	}

	rec = ts.do(authed(http.MethodGet, base, token, nil))
	var tasks []registry.Task
	json.Unmarshal(rec.Body.Bytes(), &tasks)
	if len(tasks) != 1 || tasks[0].ID != created.ID {
		t.Errorf("list = %+v", tasks)
	}

	rec = ts.do(authed(http.MethodDelete, base+"/"+created.ID, token, nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
	rec = ts.do(authed(http.MethodDelete, base+"/"+created.ID, token, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}

	rec = ts.do(httptest.NewRequest(http.MethodGet, base, nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("tasks without token = %d, want 401", rec.Code)
	}
}
