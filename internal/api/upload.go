package api

import (
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/reclaim-app/reclaim/internal/imaging"
	"github.com/reclaim-app/reclaim/internal/media"
)

// MaxUploadSize caps proof photos and item pictures at 5 MiB.
const MaxUploadSize = 5 << 20

// UploadHandler accepts image uploads and serves them back.
type UploadHandler struct {
	Media *media.Store
}

type uploadResponse struct {
	URL string `json:"url"`
}

// Upload handles POST /upload: a multipart "image" field is normalized and
// stored, and its serving URL returned. "file" is accepted as an alias.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		jsonError(w, http.StatusRequestEntityTooLarge, "file too large (max 5 MB)")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		file, _, err = r.FormFile("file")
	}
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image field required")
		return
	}
	defer file.Close()

	data, err := imaging.Normalize(file)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	name, err := h.Media.Save(data)
	if err != nil {
		slog.Error("storing upload", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	slog.Info("file uploaded", "name", name, "user_id", GetClaims(r.Context()).UserID)
	jsonResponse(w, http.StatusCreated, uploadResponse{URL: "/uploads/" + name})
}

// Serve handles GET /uploads/{name}.
func (h *UploadHandler) Serve(w http.ResponseWriter, r *http.Request) {
	f, err := h.Media.Open(r.PathValue("name"))
	if err != nil {
		if os.IsNotExist(err) {
			jsonError(w, http.StatusNotFound, "file not found")
			return
		}
		jsonError(w, http.StatusBadRequest, "invalid file name")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := io.Copy(w, f); err != nil {
		slog.Warn("serving upload", "error", err)
	}
}
