package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"scrubthumbs/internal/media"
	"scrubthumbs/internal/session"
)

// CreateSessionRequest is the body of POST /api/sessions.
type CreateSessionRequest struct {
	Path string `json:"path"`
}

// CreateSession starts thumbnail generation for a video, or attaches to
// the session already running for it. A cache hit is usually complete by
// the time the response is written.
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	fullPath, err := h.resolvePath(req.Path)
	if err != nil {
		log.Warn("Rejected session path %q: %v", req.Path, err)
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !media.IsVideoFile(fullPath) {
		writeJSONError(w, "unsupported file type", http.StatusBadRequest)
		return
	}

	s, err := h.sessions.Start(r.Context(), fullPath, nil)
	if err != nil {
		if errors.Is(err, session.ErrManagerClosed) {
			writeJSONError(w, "shutting down", http.StatusServiceUnavailable)
			return
		}
		log.Error("Failed to start session for %s: %v", fullPath, err)
		writeJSONError(w, "failed to start session", http.StatusInternalServerError)
		return
	}

	status := http.StatusAccepted
	switch {
	case session.IsSourceUnavailable(s.Err()):
		status = http.StatusNotFound
	case s.State() == session.Failed:
		status = http.StatusUnprocessableEntity
	case s.State().Ready():
		status = http.StatusOK
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Location", "/api/sessions/"+s.ID())
	w.WriteHeader(status)
	writeJSON(w, s.Info())
}

// GetSession reports the state and progress of a session.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, s.Info())
}

// GetThumbnail serves the thumbnail to display at playback position t
// (seconds). Thumbnails are available while the session is still
// generating.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	t, err := strconv.ParseFloat(r.URL.Query().Get("t"), 64)
	if err != nil {
		writeJSONError(w, "query parameter t must be a number of seconds", http.StatusBadRequest)
		return
	}

	rec, found := s.Lookup(t)
	if !found {
		writeJSONError(w, "no thumbnails available yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(rec.Image)))
	w.Header().Set("X-Thumbnail-Timestamp", strconv.FormatFloat(rec.Timestamp, 'f', 3, 64))
	if s.State().Ready() {
		w.Header().Set("Cache-Control", "private, max-age=3600")
	} else {
		w.Header().Set("Cache-Control", "no-cache")
	}
	if _, err := w.Write(rec.Image); err != nil {
		log.Debug("Failed to write thumbnail: %v", err)
	}
}

// DeleteSession cancels a session and forgets it.
func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !h.sessions.Release(id) {
		writeJSONError(w, "session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := mux.Vars(r)["id"]
	s, ok := h.sessions.Get(id)
	if !ok {
		writeJSONError(w, "session not found", http.StatusNotFound)
		return nil, false
	}
	return s, true
}

// resolvePath maps a request path into the media directory and rejects
// anything that escapes it.
func (h *Handlers) resolvePath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", errors.New("path is required")
	}
	if h.mediaDir == "" {
		if !filepath.IsAbs(p) {
			return "", errors.New("path must be absolute")
		}
		return filepath.Clean(p), nil
	}

	root, err := filepath.Abs(h.mediaDir)
	if err != nil {
		return "", errors.New("invalid media directory")
	}
	full := filepath.Join(root, strings.TrimPrefix(filepath.ToSlash(p), "/"))
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.New("path outside media directory")
	}
	return full, nil
}
