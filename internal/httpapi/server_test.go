package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"novasight/internal/domain"
	"novasight/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var _ Controller = (*usecase.Engine)(nil)

type fakeController struct {
	mu          sync.Mutex
	status      domain.Status
	focused     []domain.DetectionMode
	blurs       int
	pressErr    error
	result      domain.VoiceCommandResult
	releaseErr  error
	profiles    []domain.FaceProfile
	submitErr   error
	cancelErr   error
	permissions [][2]bool
}

func (f *fakeController) Focus(mode domain.DetectionMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.focused = append(f.focused, mode)
	f.status.Mode = mode
	f.status.Focused = true
	return nil
}

func (f *fakeController) Blur() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blurs++
	f.status.Focused = false
}

func (f *fakeController) PressIn(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pressErr
}

func (f *fakeController) PressOut(context.Context) (domain.VoiceCommandResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.releaseErr
}

func (f *fakeController) SubmitFaceProfile(_ context.Context, profile domain.FaceProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles = append(f.profiles, profile)
	return f.submitErr
}

func (f *fakeController) CancelFaceProfile() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelErr
}

func (f *fakeController) SetPermissions(camera, microphone bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.permissions = append(f.permissions, [2]bool{camera, microphone})
}

func (f *fakeController) Status() domain.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// with runs fn under the fake's lock so tests can read and change it while
// the server is live.
func (f *fakeController) with(fn func(f *fakeController)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func newTestServer(t *testing.T, engine Controller, events *EventLog) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := httptest.NewServer(NewServer(engine, events, logger).Handler())
	t.Cleanup(server.Close)
	return server
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do failed: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func TestFocusAndStatus(t *testing.T) {
	t.Parallel()

	engine := &fakeController{}
	server := newTestServer(t, engine, nil)

	resp, body := do(t, http.MethodPost, server.URL+"/api/focus", `{"mode":"currency"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, body)
	}
	var status domain.Status
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if status.Mode != domain.ModeCurrency || !status.Focused {
		t.Fatalf("unexpected status: %+v", status)
	}

	resp, _ = do(t, http.MethodPost, server.URL+"/api/blur", "")
	engine.with(func(f *fakeController) {
		if resp.StatusCode != http.StatusOK || f.blurs != 1 {
			t.Fatalf("blur failed: status=%d blurs=%d", resp.StatusCode, f.blurs)
		}
	})

	resp, body = do(t, http.MethodGet, server.URL+"/api/status", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"focused":false`) {
		t.Fatalf("unexpected status response %d: %s", resp.StatusCode, body)
	}
}

func TestFocusRejectsUnknownMode(t *testing.T) {
	t.Parallel()

	engine := &fakeController{}
	server := newTestServer(t, engine, nil)

	for _, body := range []string{`{"mode":"radar"}`, `{}`, `not json`} {
		resp, _ := do(t, http.MethodPost, server.URL+"/api/focus", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, resp.StatusCode)
		}
	}
	engine.with(func(f *fakeController) {
		if len(f.focused) != 0 {
			t.Fatalf("engine must not be focused on invalid input")
		}
	})
}

func TestPressMapsEngineErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{usecase.ErrPermissionDenied, http.StatusForbidden},
		{usecase.ErrListeningBusy, http.StatusConflict},
		{errors.New("ffmpeg exited"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		server := newTestServer(t, &fakeController{pressErr: tc.err}, nil)
		resp, body := do(t, http.MethodPost, server.URL+"/api/press", "")
		if resp.StatusCode != tc.want {
			t.Fatalf("err %v: expected %d, got %d (%s)", tc.err, tc.want, resp.StatusCode, body)
		}
	}
}

func TestReleaseReturnsCommandResult(t *testing.T) {
	t.Parallel()

	engine := &fakeController{result: domain.VoiceCommandResult{
		Transcript:  "nhận diện tiền",
		Intent:      "money",
		Destination: domain.ModeCurrency,
	}}
	server := newTestServer(t, engine, nil)

	resp, body := do(t, http.MethodPost, server.URL+"/api/release", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, body)
	}
	var result domain.VoiceCommandResult
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if result.Destination != domain.ModeCurrency || result.Intent != "money" {
		t.Fatalf("unexpected result: %+v", result)
	}

	engine.with(func(f *fakeController) { f.releaseErr = usecase.ErrNoActiveRecording })
	resp, _ = do(t, http.MethodPost, server.URL+"/api/release", "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 without recording, got %d", resp.StatusCode)
	}
}

func TestFaceProfileSubmitAndCancel(t *testing.T) {
	t.Parallel()

	engine := &fakeController{}
	server := newTestServer(t, engine, nil)

	resp, body := do(t, http.MethodPost, server.URL+"/api/face",
		`{"name":"Lan","hometown":"Huế","relationship":"bạn","date_of_birth":"2001-02-03"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, body)
	}
	want := domain.FaceProfile{Name: "Lan", Hometown: "Huế", Relationship: "bạn", DateOfBirth: "2001-02-03"}
	engine.with(func(f *fakeController) {
		if len(f.profiles) != 1 || f.profiles[0] != want {
			t.Fatalf("unexpected profiles: %+v", f.profiles)
		}
		f.submitErr = usecase.ErrIncompleteProfile
	})
	if resp, _ := do(t, http.MethodPost, server.URL+"/api/face", `{"name":""}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for incomplete profile, got %d", resp.StatusCode)
	}

	engine.with(func(f *fakeController) { f.cancelErr = usecase.ErrNoPendingCapture })
	if resp, _ := do(t, http.MethodDelete, server.URL+"/api/face", ""); resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 without pending capture, got %d", resp.StatusCode)
	}
}

func TestPermissionsRequiresBothFlags(t *testing.T) {
	t.Parallel()

	engine := &fakeController{}
	server := newTestServer(t, engine, nil)

	if resp, _ := do(t, http.MethodPost, server.URL+"/api/permissions", `{"camera":false}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp, _ := do(t, http.MethodPost, server.URL+"/api/permissions", `{"camera":false,"microphone":true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	engine.with(func(f *fakeController) {
		if len(f.permissions) != 1 || f.permissions[0] != [2]bool{false, true} {
			t.Fatalf("unexpected permissions: %v", f.permissions)
		}
	})
}

func TestEventsEndpoint(t *testing.T) {
	t.Parallel()

	events := NewEventLog(2, slog.New(slog.NewTextHandler(io.Discard, nil)))
	server := newTestServer(t, &fakeController{}, events)

	events.ModeChanged(domain.ModeCurrency, "/money")
	events.Spoken("Tiền mặt có mệnh giá là: 50000 VND")
	events.SessionError(domain.ErrorCodeCamera, "device busy")

	resp, body := do(t, http.MethodGet, server.URL+"/api/events?after=0", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	var got []Event
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if len(got) != 2 || got[0].Kind != "spoken" || got[1].Fields["code"] != "camera" {
		t.Fatalf("expected the two newest events, got %+v", got)
	}

	resp, body = do(t, http.MethodGet, server.URL+"/api/events?after=3", "")
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != "[]" {
		t.Fatalf("expected no newer events, got %d %s", resp.StatusCode, body)
	}

	if resp, _ := do(t, http.MethodGet, server.URL+"/api/events?after=-1", ""); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad cursor, got %d", resp.StatusCode)
	}
}
