// Package proctor manages the optional camera preview and screen recording of an exam.
// Capture itself is an injected capability; the adapter only tracks lifecycles.
package proctor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	// ErrInsecureOrigin is returned when capture is requested outside a secure context.
	ErrInsecureOrigin = errors.New("capture requires a secure origin")
	// ErrUnsupported is returned when the client cannot capture the requested media.
	ErrUnsupported = errors.New("capture not supported")
	// ErrDenied is returned when the user refused a capture permission.
	ErrDenied = errors.New("capture permission denied")
	// ErrRecordingDone is returned when recording is toggled after it already finished.
	ErrRecordingDone = errors.New("recording already finished")
)

// Stream is an acquired capture stream.
type Stream interface {
	Stop()
}

// Recorder turns a stream into chunked binary output kept in the capturing client's memory.
type Recorder interface {
	Start() error
	// Stop ends recording and reports how many bytes the client retained.
	Stop(ctx context.Context) (int, error)
	Active() bool
}

// Capabilities are the platform capture primitives.
type Capabilities interface {
	AcquireVideoStream(ctx context.Context) (Stream, error)
	AcquireDisplayStream(ctx context.Context) (Stream, error)
	NewRecorder(s Stream) (Recorder, error)
}

// CameraState is the camera control state.
type CameraState string

const (
	CameraOff    CameraState = "off"
	CameraActive CameraState = "active"
)

// RecordingState is the recording control state.
type RecordingState string

const (
	RecordingIdle   RecordingState = "idle"
	RecordingActive RecordingState = "recording"
	RecordingReady  RecordingState = "ready"
)

// Status is a snapshot of both controls.
type Status struct {
	Secure        bool           `json:"secure"`
	Camera        CameraState    `json:"camera"`
	Recording     RecordingState `json:"recording"`
	RecordedBytes int            `json:"recorded_bytes"`
}

// Adapter owns the camera and recording lifecycles of one exam client.
type Adapter struct {
	mu     sync.Mutex
	caps   Capabilities
	secure bool

	camera   Stream
	display  Stream
	rec      Recorder
	state    RecordingState
	recorded int
}

// NewAdapter creates an adapter; secure reports whether the client runs in a trusted origin.
func NewAdapter(caps Capabilities, secure bool) *Adapter {
	return &Adapter{caps: caps, secure: secure, state: RecordingIdle}
}

// SetSecure updates the trust of the client origin.
func (a *Adapter) SetSecure(secure bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.secure = secure
}

// ActivateCamera acquires a video-only stream. Once active the camera stays on until
// StopAll, and further activation requests are no-ops.
func (a *Adapter) ActivateCamera(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.secure {
		return ErrInsecureOrigin
	}
	if a.camera != nil {
		return nil
	}
	s, err := a.caps.AcquireVideoStream(ctx)
	if err != nil {
		slog.Warn("camera activation failed", "error", err)
		return fmt.Errorf("acquire camera: %w", err)
	}
	a.camera = s
	return nil
}

func (a *Adapter) stopCameraLocked() {
	if a.camera == nil {
		return
	}
	a.camera.Stop()
	a.camera = nil
}

// ToggleRecording starts recording when idle and stops it when running.
func (a *Adapter) ToggleRecording(ctx context.Context) (RecordingState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.secure {
		return a.state, ErrInsecureOrigin
	}
	switch a.state {
	case RecordingActive:
		a.stopRecordingLocked(ctx)
		return a.state, nil
	case RecordingReady:
		return a.state, ErrRecordingDone
	}

	display, err := a.caps.AcquireDisplayStream(ctx)
	if err != nil {
		slog.Warn("screen capture failed", "error", err)
		return a.state, fmt.Errorf("acquire display: %w", err)
	}
	rec, err := a.caps.NewRecorder(display)
	if err != nil {
		display.Stop()
		return a.state, fmt.Errorf("create recorder: %w", err)
	}
	if err := rec.Start(); err != nil {
		display.Stop()
		return a.state, fmt.Errorf("start recorder: %w", err)
	}
	a.display = display
	a.rec = rec
	a.state = RecordingActive
	return a.state, nil
}

func (a *Adapter) stopRecordingLocked(ctx context.Context) {
	if a.rec == nil {
		return
	}
	if a.rec.Active() {
		n, err := a.rec.Stop(ctx)
		if err != nil {
			slog.Warn("stop recorder", "error", err)
		}
		a.recorded = n
	}
	a.rec = nil
	if a.display != nil {
		a.display.Stop()
		a.display = nil
	}
	a.state = RecordingReady
}

// StopAll tears down every capture. It is safe to call repeatedly.
func (a *Adapter) StopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopRecordingLocked(context.Background())
	a.stopCameraLocked()
}

// Reset tears down every capture and forgets the finished recording.
func (a *Adapter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopRecordingLocked(context.Background())
	a.stopCameraLocked()
	a.state = RecordingIdle
	a.recorded = 0
}

// Status reports the current control states.
func (a *Adapter) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := Status{Secure: a.secure, Camera: CameraOff, Recording: a.state, RecordedBytes: a.recorded}
	if a.camera != nil {
		st.Camera = CameraActive
	}
	return st
}
