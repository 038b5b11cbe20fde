package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pavelanni/timedexam/internal/proctor"
)

type proctorResponse struct {
	proctor.Status
	Error string `json:"error,omitempty"`
}

// grantFrom reads the browser's capture outcome from the form. bytes is the size
// of the recording the browser keeps when it stops recording.
func grantFrom(r *http.Request) proctor.Grant {
	n, _ := strconv.Atoi(r.FormValue("bytes"))
	return proctor.Grant{
		Granted: r.FormValue("granted") == "true",
		Reason:  r.FormValue("reason"),
		Bytes:   n,
	}
}

func proctorStatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, proctor.ErrInsecureOrigin):
		return http.StatusForbidden
	case errors.Is(err, proctor.ErrDenied), errors.Is(err, proctor.ErrUnsupported):
		return http.StatusUnprocessableEntity
	case errors.Is(err, proctor.ErrRecordingDone):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeProctor(w http.ResponseWriter, p *proctor.Adapter, err error) {
	resp := proctorResponse{Status: p.Status()}
	if err != nil {
		resp.Error = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(proctorStatusCode(err))
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("encode proctor status", "error", err)
	}
}

func (h *Handler) handleProctorStatus(w http.ResponseWriter, r *http.Request) {
	writeProctor(w, controllerFrom(r).Proctor(), nil)
}

func (h *Handler) handleCameraOn(w http.ResponseWriter, r *http.Request) {
	p := h.claim(w, r).Proctor()
	err := p.ActivateCamera(proctor.WithGrant(r.Context(), grantFrom(r)))
	writeProctor(w, p, err)
}

func (h *Handler) handleRecordingToggle(w http.ResponseWriter, r *http.Request) {
	p := h.claim(w, r).Proctor()
	_, err := p.ToggleRecording(proctor.WithGrant(r.Context(), grantFrom(r)))
	writeProctor(w, p, err)
}
