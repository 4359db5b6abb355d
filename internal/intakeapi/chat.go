package intakeapi

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/linnemanlabs/intake/internal/chat"
)

// streamWriter commits the streaming headers on the first delta, so failures that
// happen before any text is produced can still be answered with a JSON error.
type streamWriter struct {
	w              http.ResponseWriter
	rc             *http.ResponseController
	conversationID string
	started        bool
}

func (s *streamWriter) begin() {
	if s.started {
		return
	}
	h := s.w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Accel-Buffering", "no")
	h.Set(ConversationHeader, s.conversationID)
	s.w.WriteHeader(http.StatusOK)
	s.started = true
}

func (s *streamWriter) write(delta string) error {
	s.begin()
	if _, err := io.WriteString(s.w, delta); err != nil {
		return err
	}
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

func (a *API) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	req.ConversationID = r.Header.Get(ConversationHeader)
	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}

	sw := &streamWriter{
		w:              w,
		rc:             http.NewResponseController(w),
		conversationID: req.ConversationID,
	}

	_, err := a.chat.Stream(r.Context(), &req, sw.write)
	switch {
	case err == nil:
		// an empty reply still gets the streaming headers
		sw.begin()
	case errors.Is(err, context.Canceled):
		// client went away, nobody to answer
	case !sw.started:
		a.writeError(w, r, err)
	default:
		// headers are gone, the only signal left is in-band
		_, _ = io.WriteString(w, "\n[Stream error]\n")
		_ = sw.rc.Flush()
	}
}
