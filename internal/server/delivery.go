package server

import (
	"errors"
	"mime"
	"net/http"

	"picdrop/internal/assets"
)

// handleDelivery streams a stored asset. Range and conditional requests are
// handled by http.ServeContent.
func (s *Server) handleDelivery(w http.ResponseWriter, r *http.Request) {
	rid := RequestIDFromContext(r.Context())
	id := r.PathValue("id")

	blob, err := s.cfg.Store.Open(r.Context(), id)
	switch {
	case errors.Is(err, assets.ErrNotFound), errors.Is(err, assets.ErrPathTraversal):
		s.metrics.RecordDeliveryMiss()
		writeMessage(w, http.StatusNotFound, "File not found")
		return
	case err != nil:
		s.metrics.RecordDeliveryError()
		s.log.Errorf("rid=%s msg=\"open asset failed\" id=%s err=%v", rid, id, err)
		writeMessage(w, http.StatusInternalServerError, "Error reading file")
		return
	}
	defer blob.Body.Close()

	contentType := blob.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(assets.Extension(id))
	}
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	deliveryHeaders(w.Header())

	s.metrics.RecordDelivery(blob.Size)
	http.ServeContent(w, r, id, blob.ModTime, blob.Body)
}
