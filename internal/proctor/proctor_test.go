package proctor

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http/httptest"
	"testing"
)

type fakeStream struct{ stops int }

func (s *fakeStream) Stop() { s.stops++ }

type fakeRecorder struct {
	active bool
	size   int
}

func (r *fakeRecorder) Start() error { r.active = true; return nil }

func (r *fakeRecorder) Stop(context.Context) (int, error) {
	r.active = false
	return r.size, nil
}

func (r *fakeRecorder) Active() bool { return r.active }

type fakeCaps struct {
	videoErr   error
	displayErr error
	video      *fakeStream
	display    *fakeStream
	recorder   *fakeRecorder
	size       int
}

func (f *fakeCaps) AcquireVideoStream(context.Context) (Stream, error) {
	if f.videoErr != nil {
		return nil, f.videoErr
	}
	f.video = &fakeStream{}
	return f.video, nil
}

func (f *fakeCaps) AcquireDisplayStream(context.Context) (Stream, error) {
	if f.displayErr != nil {
		return nil, f.displayErr
	}
	f.display = &fakeStream{}
	return f.display, nil
}

func (f *fakeCaps) NewRecorder(Stream) (Recorder, error) {
	f.recorder = &fakeRecorder{size: f.size}
	return f.recorder, nil
}

func TestCameraLifecycle(t *testing.T) {
	caps := &fakeCaps{}
	a := NewAdapter(caps, true)

	if err := a.ActivateCamera(context.Background()); err != nil {
		t.Fatalf("ActivateCamera: %v", err)
	}
	if a.Status().Camera != CameraActive {
		t.Fatal("camera should be active")
	}
	first := caps.video
	if err := a.ActivateCamera(context.Background()); err != nil {
		t.Fatalf("second ActivateCamera: %v", err)
	}
	if caps.video != first {
		t.Error("active camera should not be reacquired")
	}

	a.StopAll()
	a.StopAll()
	if first.stops != 1 {
		t.Errorf("stream stopped %d times, want 1", first.stops)
	}
	if a.Status().Camera != CameraOff {
		t.Error("camera should be off")
	}
}

func TestCameraFailureLeavesState(t *testing.T) {
	a := NewAdapter(&fakeCaps{videoErr: ErrDenied}, true)
	err := a.ActivateCamera(context.Background())
	if !errors.Is(err, ErrDenied) {
		t.Fatalf("expected ErrDenied, got %v", err)
	}
	if a.Status().Camera != CameraOff {
		t.Error("failed activation must not change state")
	}
}

func TestInsecureOrigin(t *testing.T) {
	a := NewAdapter(&fakeCaps{}, false)
	if err := a.ActivateCamera(context.Background()); !errors.Is(err, ErrInsecureOrigin) {
		t.Errorf("camera: expected ErrInsecureOrigin, got %v", err)
	}
	if _, err := a.ToggleRecording(context.Background()); !errors.Is(err, ErrInsecureOrigin) {
		t.Errorf("recording: expected ErrInsecureOrigin, got %v", err)
	}
}

func TestRecordingToggle(t *testing.T) {
	caps := &fakeCaps{size: 6}
	a := NewAdapter(caps, true)
	ctx := context.Background()

	state, err := a.ToggleRecording(ctx)
	if err != nil || state != RecordingActive {
		t.Fatalf("start: state %q err %v", state, err)
	}
	if !caps.recorder.Active() {
		t.Fatal("recorder should be running")
	}
	if got := a.Status().RecordedBytes; got != 0 {
		t.Errorf("RecordedBytes while running = %d", got)
	}

	state, err = a.ToggleRecording(ctx)
	if err != nil || state != RecordingReady {
		t.Fatalf("stop: state %q err %v", state, err)
	}
	if got := a.Status().RecordedBytes; got != 6 {
		t.Errorf("RecordedBytes = %d, want 6", got)
	}
	if caps.display.stops != 1 {
		t.Errorf("display stopped %d times", caps.display.stops)
	}
	if caps.recorder.Active() {
		t.Error("recorder still running after stop")
	}
	if _, err := a.ToggleRecording(ctx); !errors.Is(err, ErrRecordingDone) {
		t.Errorf("expected ErrRecordingDone, got %v", err)
	}
}

func TestRecordingFailureStaysIdle(t *testing.T) {
	a := NewAdapter(&fakeCaps{displayErr: ErrUnsupported}, true)
	state, err := a.ToggleRecording(context.Background())
	if !errors.Is(err, ErrUnsupported) || state != RecordingIdle {
		t.Errorf("state %q err %v", state, err)
	}
}

func TestStopAllIdempotent(t *testing.T) {
	a := NewAdapter(&fakeCaps{}, true)
	a.StopAll()
	before := a.Status()
	a.StopAll()
	if a.Status() != before {
		t.Errorf("StopAll on idle adapter changed state: %+v -> %+v", before, a.Status())
	}

	caps := &fakeCaps{}
	a = NewAdapter(caps, true)
	_ = a.ActivateCamera(context.Background())
	_, _ = a.ToggleRecording(context.Background())
	a.StopAll()
	a.StopAll()
	if caps.video.stops != 1 || caps.display.stops != 1 {
		t.Errorf("streams stopped video=%d display=%d", caps.video.stops, caps.display.stops)
	}
	if st := a.Status(); st.Camera != CameraOff || st.Recording != RecordingReady {
		t.Errorf("after StopAll: %+v", st)
	}
}

func TestResetDiscardsRecording(t *testing.T) {
	a := NewAdapter(&fakeCaps{size: 4}, true)
	if _, err := a.ToggleRecording(context.Background()); err != nil {
		t.Fatal(err)
	}
	a.StopAll()
	if got := a.Status().RecordedBytes; got != 4 {
		t.Fatalf("recorded = %d bytes, want 4", got)
	}
	a.Reset()
	if st := a.Status(); st.Recording != RecordingIdle || st.RecordedBytes != 0 {
		t.Errorf("after Reset: %+v", st)
	}
	if _, err := a.ToggleRecording(context.Background()); err != nil {
		t.Errorf("recording should be startable after Reset: %v", err)
	}
}

func TestRelayGrant(t *testing.T) {
	var r Relay
	if _, err := r.AcquireVideoStream(context.Background()); !errors.Is(err, ErrUnsupported) {
		t.Errorf("no grant: %v", err)
	}
	ctx := WithGrant(context.Background(), Grant{Reason: "NotAllowedError"})
	if _, err := r.AcquireDisplayStream(ctx); !errors.Is(err, ErrDenied) {
		t.Errorf("denied grant: %v", err)
	}
	ctx = WithGrant(context.Background(), Grant{Granted: true})
	s, err := r.AcquireDisplayStream(ctx)
	if err != nil {
		t.Fatalf("granted: %v", err)
	}
	rec, _ := r.NewRecorder(s)
	if rec.Active() {
		t.Error("recorder active before Start")
	}
	_ = rec.Start()
	if !rec.Active() {
		t.Error("recorder inactive after Start")
	}
	n, err := rec.Stop(WithGrant(context.Background(), Grant{Granted: true, Bytes: 2048}))
	if err != nil || n != 2048 {
		t.Errorf("Stop = %d, %v; want 2048", n, err)
	}
	if n, _ := rec.Stop(context.Background()); n != 0 {
		t.Errorf("Stop without a size report = %d, want 0", n)
	}
}

func TestIsSecureOrigin(t *testing.T) {
	tests := []struct {
		host  string
		proto string
		tls   bool
		want  bool
	}{
		{"localhost:8080", "", false, true},
		{"127.0.0.1", "", false, true},
		{"[::1]:8080", "", false, true},
		{"exam.example.com", "", false, false},
		{"exam.example.com", "https", false, true},
		{"exam.example.com", "", true, true},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/", nil)
		r.Host = tt.host
		if tt.proto != "" {
			r.Header.Set("X-Forwarded-Proto", tt.proto)
		}
		if tt.tls {
			r.TLS = &tls.ConnectionState{}
		}
		if got := IsSecureOrigin(r); got != tt.want {
			t.Errorf("IsSecureOrigin(%q, proto=%q, tls=%v) = %v, want %v", tt.host, tt.proto, tt.tls, got, tt.want)
		}
	}
}
