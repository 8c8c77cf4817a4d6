package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"schooldir/internal/apperr"
	"schooldir/internal/store"
	"schooldir/pkg/utils"
)

// GetImage streams the stored bytes of one photo.
// GET /api/images/{id}
func (h *Handler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := utils.ParseID(r.PathValue("id"))
	if !ok {
		h.writeErr(w, r, apperr.Validation(apperr.CodeInvalidInput, "Valid image ID is required"))
		return
	}

	img, err := h.store.GetImage(r.Context(), id)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	serveWithETag(w, r, img)
}

// serveWithETag writes image bytes with caching headers. Returns 304 Not
// Modified if the client's copy is current.
func serveWithETag(w http.ResponseWriter, r *http.Request, img store.Image) {
	hash := sha256.Sum256(img.Data)
	etag := `"` + hex.EncodeToString(hash[:16]) + `"`

	mimeType := img.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	header := w.Header()
	header.Set("Content-Type", mimeType)
	header.Set("Content-Disposition", contentDisposition(img.Filename))
	header.Set("X-Content-Type-Options", "nosniff")
	// stored images never change under the same id
	header.Set("Cache-Control", "public, max-age=86400, immutable")
	header.Set("ETag", etag)

	if match := r.Header.Get("If-None-Match"); match != "" && etagMatches(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	header.Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write(img.Data)
	}
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}

func contentDisposition(filename string) string {
	if filename == "" {
		return "inline"
	}
	if v := mime.FormatMediaType("inline", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "inline"
}
