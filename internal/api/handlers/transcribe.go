package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/castiq-transcriber/internal/stt"
	"github.com/nikhilbhutani/castiq-transcriber/internal/transcribe"
)

const (
	msgNoAudio         = "No audio file in request"
	msgTranscribeError = "Error during transcription"
)

type Transcriber interface {
	Transcribe(ctx context.Context, r io.Reader, filename string) (*stt.Result, error)
}

type TranscribeHandler struct {
	svc      Transcriber
	field    string
	maxBytes int64
}

func NewTranscribeHandler(svc Transcriber, field string, maxBytes int64) *TranscribeHandler {
	return &TranscribeHandler{svc: svc, field: field, maxBytes: maxBytes}
}

type transcribeResponse struct {
	Transcript string `json:"transcript"`
}

// Transcribe accepts a multipart upload and responds with its transcript.
func (h *TranscribeHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	log := slog.With("request_id", middleware.GetReqID(r.Context()))

	if h.maxBytes > 0 {
		// Headroom for the multipart framing around the file.
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+(1<<20))
	}

	file, header, err := r.FormFile(h.field)
	if err != nil {
		log.Info("rejected request without audio", "error", err)
		http.Error(w, msgNoAudio, http.StatusBadRequest)
		return
	}
	defer file.Close()
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	res, err := h.svc.Transcribe(r.Context(), file, header.Filename)
	if errors.Is(err, transcribe.ErrUpload) {
		log.Info("rejected unreadable audio upload", "error", err)
		http.Error(w, msgNoAudio, http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Error("error during transcription", "error", err)
		http.Error(w, msgTranscribeError, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, transcribeResponse{Transcript: res.Text})
}
