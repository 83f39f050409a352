package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/FanyNavas/Sentara.Api/internal/attendance"
	"github.com/FanyNavas/Sentara.Api/internal/auth"
	"github.com/FanyNavas/Sentara.Api/internal/model"
	"github.com/FanyNavas/Sentara.Api/internal/notify"
	"github.com/FanyNavas/Sentara.Api/internal/snapshot"
)

const signingKey = "test-key"

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return n.err
}

type brokenStore struct{}

func (brokenStore) InsertAttendance(context.Context, model.AttendanceRecord) (model.AttendanceRecord, error) {
	return model.AttendanceRecord{}, errors.New("disk I/O error")
}

func (brokenStore) InsertManualReview(context.Context, model.ManualReviewRequest) (model.ManualReviewRequest, error) {
	return model.ManualReviewRequest{}, errors.New("disk I/O error")
}

type staticPinger bool

func (p staticPinger) Healthy(context.Context) bool { return bool(p) }

type testEnv struct {
	router   *gin.Engine
	store    *attendance.MemoryStore
	notifier *recordingNotifier
	codec    *snapshot.Codec
}

func newTestEnv(t *testing.T, st attendance.Store, policy attendance.Policy) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		store:    attendance.NewMemoryStore(),
		notifier: &recordingNotifier{},
		codec:    snapshot.New(t.TempDir()),
	}
	if st == nil {
		st = env.store
	}
	logger := log.New(io.Discard, "", 0)
	svc := attendance.NewService(st, env.codec, env.notifier, logger, policy)
	env.router = New(svc, env.codec, Options{
		CORSOrigins:    []string{"http://localhost:5500"},
		MaxBodyBytes:   1 << 20,
		LinkSigningKey: signingKey,
		LinkIssuer:     "sentara",
		Checks:         map[string]Pinger{"db": staticPinger(true)},
		Logger:         logger,
	}).Router()
	return env
}

func (e *testEnv) do(t *testing.T, method, target string, body any) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, rdr)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var resp apiResponse
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response %q: %v", w.Body.String(), err)
		}
	}
	return w, resp
}

func TestSubmit_StoresRecordAndImage(t *testing.T) {
	env := newTestEnv(t, nil, attendance.Policy{})

	w, resp := env.do(t, http.MethodPost, "/api/submit", map[string]string{
		"teacher":         "t@x.com",
		"student":         "Jane",
		"className":       "Bio101",
		"status":          "yes",
		"snapshotDataUrl": "data:image/png;base64,iVBORw0KGgo=",
	})
	if w.Code != http.StatusOK || !resp.OK {
		t.Fatalf("expected 200 ok, got %d %s", w.Code, w.Body.String())
	}
	if w.Body.String() != `{"ok":true}` {
		t.Errorf("unexpected body %s", w.Body.String())
	}

	recs := env.store.Attendance()
	if len(recs) != 1 || recs[0].SnapshotFileName == nil {
		t.Fatalf("expected one record with snapshot, got %+v", recs)
	}
	entries, _ := os.ReadDir(env.codec.Dir)
	if len(entries) != 1 {
		t.Fatalf("expected one stored image, got %d", len(entries))
	}
	got, _ := os.ReadFile(env.codec.Path(entries[0].Name()))
	want, _ := base64.StdEncoding.DecodeString("iVBORw0KGgo=")
	if !bytes.Equal(got, want) {
		t.Errorf("image content mismatch")
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestSubmit_MissingFields(t *testing.T) {
	env := newTestEnv(t, nil, attendance.Policy{})

	w, resp := env.do(t, http.MethodPost, "/api/submit", map[string]string{
		"teacher": "", "student": "Jane", "className": "Bio101", "status": "yes",
	})
	if w.Code != http.StatusBadRequest || resp.OK || resp.Error != "Missing required fields." {
		t.Fatalf("expected 400 missing fields, got %d %s", w.Code, w.Body.String())
	}
	if n := len(env.store.Attendance()); n != 0 {
		t.Errorf("expected no record, got %d", n)
	}
}

func TestSubmit_MalformedJSON(t *testing.T) {
	env := newTestEnv(t, nil, attendance.Policy{})

	for _, body := range []string{"{not json", ""} {
		w, resp := env.do(t, http.MethodPost, "/api/submit", body)
		if w.Code != http.StatusBadRequest || resp.Error != "Invalid payload." {
			t.Errorf("body %q: expected 400 invalid payload, got %d %s", body, w.Code, w.Body.String())
		}
	}
}

func TestSubmit_OversizeBody(t *testing.T) {
	env := newTestEnv(t, nil, attendance.Policy{})
	big := `{"teacher":"t@x.com","student":"Jane","className":"Bio101","status":"yes","snapshotDataUrl":"` +
		strings.Repeat("A", 2<<20) + `"}`

	w, resp := env.do(t, http.MethodPost, "/api/submit", big)
	if w.Code != http.StatusBadRequest || resp.Error != "Invalid payload." {
		t.Fatalf("expected 400 invalid payload, got %d", w.Code)
	}
}

func TestSubmit_StoreFailure(t *testing.T) {
	env := newTestEnv(t, brokenStore{}, attendance.Policy{})

	w, resp := env.do(t, http.MethodPost, "/api/submit", map[string]string{
		"teacher": "t@x.com", "student": "Jane", "className": "Bio101", "status": "yes",
	})
	if w.Code != http.StatusInternalServerError || !strings.HasPrefix(resp.Error, "Server error: ") {
		t.Fatalf("expected 500 server error, got %d %s", w.Code, w.Body.String())
	}
	if !strings.Contains(resp.Error, "disk I/O error") {
		t.Errorf("expected cause in message, got %q", resp.Error)
	}
	if len(env.notifier.msgs) != 0 {
		t.Error("no email expected after store failure")
	}
}

func TestSubmit_NotifierFailureStillOK(t *testing.T) {
	env := newTestEnv(t, nil, attendance.Policy{})
	env.notifier.err = errors.New("smtp down")

	w, _ := env.do(t, http.MethodPost, "/api/submit", map[string]string{
		"teacher": "t@x.com", "student": "Jane", "className": "Bio101", "status": "yes",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
	if n := len(env.store.Attendance()); n != 1 {
		t.Errorf("expected record, got %d", n)
	}
}

func manualReviewBody() map[string]string {
	return map[string]string{
		"teacher":      "t@x.com",
		"claimedName":  "Jane",
		"className":    "Bio101",
		"reason":       "camera broken",
		"photoDataUrl": "data:image/png;base64,iVBORw0KGgo=",
		"liveDataUrl":  "not base64!",
	}
}

func TestManualReview(t *testing.T) {
	env := newTestEnv(t, nil, attendance.Policy{})

	w, resp := env.do(t, http.MethodPost, "/api/manual-review", manualReviewBody())
	if w.Code != http.StatusOK || !resp.OK {
		t.Fatalf("expected 200 ok, got %d %s", w.Code, w.Body.String())
	}
	reqs := env.store.ManualReviews()
	if len(reqs) != 1 {
		t.Fatalf("expected one request, got %d", len(reqs))
	}
	if reqs[0].UploadedPhotoFileName == nil || reqs[0].LiveSnapshotFileName != nil {
		t.Errorf("expected only the uploaded photo to be stored, got %+v", reqs[0])
	}
}

func TestManualReview_StrictNotificationFailure(t *testing.T) {
	env := newTestEnv(t, nil, attendance.Policy{StrictManualReview: true})
	env.notifier.err = errors.New("535 authentication failed for user with password hunter2")

	w, resp := env.do(t, http.MethodPost, "/api/manual-review", manualReviewBody())
	if w.Code != http.StatusInternalServerError || resp.Error != "Email send failed. Check SMTP settings." {
		t.Fatalf("expected 500 email failure, got %d %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "hunter2") {
		t.Error("response leaks notifier error")
	}
	if n := len(env.store.ManualReviews()); n != 1 {
		t.Errorf("record must be kept, got %d", n)
	}
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, nil, attendance.Policy{})

	w, resp := env.do(t, http.MethodGet, "/api/health", nil)
	if w.Code != http.StatusOK || !resp.OK {
		t.Fatalf("health: %d %s", w.Code, w.Body.String())
	}

	w, _ = env.do(t, http.MethodGet, "/api/ready", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"db":true`) {
		t.Fatalf("ready: %d %s", w.Code, w.Body.String())
	}
}

func TestReady_Unhealthy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	codec := snapshot.New(t.TempDir())
	svc := attendance.NewService(attendance.NewMemoryStore(), codec, &recordingNotifier{}, log.New(io.Discard, "", 0), attendance.Policy{})
	r := New(svc, codec, Options{
		Checks: map[string]Pinger{"db": staticPinger(true), "redis": staticPinger(false)},
		Logger: log.New(io.Discard, "", 0),
	}).Router()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ready", nil))
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), `"redis":false`) {
		t.Fatalf("expected 503 with redis false, got %d %s", w.Code, w.Body.String())
	}
}

func TestSnapshotLink(t *testing.T) {
	env := newTestEnv(t, nil, attendance.Policy{})
	name, err := env.codec.Decode("iVBORw0KGgo=", snapshot.PurposeManualUpload)
	if err != nil || name == nil {
		t.Fatalf("Decode: %v", err)
	}
	signer, err := auth.NewSigner(signingKey, "sentara", "", time.Hour)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	token, _, err := signer.Issue(*name)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	w, _ := env.do(t, http.MethodGet, "/api/snapshots/"+*name+"?token="+token, nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("expected png, got %d %q", w.Code, w.Header().Get("Content-Type"))
	}

	w, _ = env.do(t, http.MethodGet, "/api/snapshots/"+*name, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}

	gone := "manual-upload_" + strings.Repeat("a", 32) + ".png"
	goneToken, _, _ := signer.Issue(gone)
	w, _ = env.do(t, http.MethodGet, "/api/snapshots/"+gone+"?token="+goneToken, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for missing file, got %d", w.Code)
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	env := newTestEnv(t, nil, attendance.Policy{})
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil, attendance.Policy{})
	req := httptest.NewRequest(http.MethodOptions, "/api/submit", nil)
	req.Header.Set("Origin", "http://localhost:5500")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight status %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5500" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestRecoveryShapesPanics(t *testing.T) {
	env := newTestEnv(t, nil, attendance.Policy{})
	env.router.GET("/panic", func(*gin.Context) { panic("kaboom") })

	w, resp := env.do(t, http.MethodGet, "/panic", nil)
	if w.Code != http.StatusInternalServerError || resp.OK || resp.Error != "Server error: kaboom" {
		t.Fatalf("unexpected panic response %d %s", w.Code, w.Body.String())
	}
}
