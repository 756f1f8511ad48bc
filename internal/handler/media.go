package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// Media handles GET /uploads/{name}.
// Only media of the caller's own unlocked capsules is served.
func (h *CapsuleHandler) Media(w http.ResponseWriter, r *http.Request) {
	obj, err := h.svc.OpenMedia(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	defer obj.Body.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if obj.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.Header().Set("Content-Disposition", "inline")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, obj.Body); err != nil {
		h.logger.Warn("media stream interrupted", "error", err)
	}
}
