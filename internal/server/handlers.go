package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/RyanBlaney/sonido-score/logging"
	"github.com/RyanBlaney/sonido-score/transcode"
	"github.com/RyanBlaney/sonido-score/transcription"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleTranscribe accepts a WAV body. The title and artist query parameters
// override the file metadata; filename names the upload when neither is set.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "upload too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "could not read body"})
		return
	}

	audio, err := s.decoder.DecodeBytes(data)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	// uploads have no path; the optional filename stands in for one
	audio.Metadata.Source = r.URL.Query().Get("filename")

	result, err := s.transcriber.TranscribeAudio(r.Context(), audio, nil)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, transcode.ErrDecode):
			status = http.StatusBadRequest
		case errors.Is(err, transcription.ErrAnalysis):
			status = http.StatusUnprocessableEntity
		}
		s.logger.Error(err, "Transcription request failed", logging.Fields{
			"bytes":  len(data),
			"status": status,
		})
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	if title := r.URL.Query().Get("title"); title != "" {
		result.Title = title
	}
	if artist := r.URL.Query().Get("artist"); artist != "" {
		result.Artist = artist
	}

	writeJSON(w, http.StatusOK, result)
}
