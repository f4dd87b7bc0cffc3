package web

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/vbonduro/nutriai/internal/domain"
)

const maxPhotoSize = 20 << 20 // 20 MiB

// allowedImageTypes is the set of MIME types accepted for uploaded photos.
// net/http.DetectContentType handles JPEG, PNG, and GIF via magic-byte
// sniffing. WebP is detected separately because the WHATWG sniffing algorithm (and
// therefore the stdlib) does not include a WebP signature.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// isWebP reports whether data is a WebP image (RIFF container with "WEBP" at
// offset 8).
func isWebP(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WEBP"
}

// allowedImageMIME returns the detected MIME type and true if the data is an
// accepted image format, or ("", false) otherwise.
func allowedImageMIME(data []byte) (string, bool) {
	if isWebP(data) {
		return "image/webp", true
	}
	mime := http.DetectContentType(data)
	if allowedImageTypes[mime] {
		return mime, true
	}
	return "", false
}

// handleCaloriesPhoto accepts a multipart form with an "image" file and
// optional "note" and "provider" fields.
func (s *Server) handleCaloriesPhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoSize)
	if err := r.ParseMultipartForm(maxPhotoSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, &domain.ValidationError{Field: "image", Reason: "exceeds 20 MiB"})
			return
		}
		s.writeError(w, &domain.ValidationError{Field: "body", Reason: "failed to parse form"})
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		s.writeError(w, &domain.ValidationError{Field: "image", Reason: "image file required"})
		return
	}
	defer closeWithLog(file, "upload file", s.logger)

	imageData, ok := s.readImage(w, file)
	if !ok {
		return
	}

	estimate, err := s.gateway.EstimateCaloriesFromPhoto(r.Context(), imageData, r.FormValue("note"), s.provider(r.FormValue("provider")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, estimate, s.logger)
}

// readImage reads an uploaded image and checks its format, writing the error
// response itself when either step fails.
func (s *Server) readImage(w http.ResponseWriter, r io.Reader) ([]byte, bool) {
	data, err := io.ReadAll(r)
	if err != nil {
		s.writeError(w, fmt.Errorf("failed to read upload: %w", err))
		return nil, false
	}
	if _, ok := allowedImageMIME(data); !ok {
		s.writeError(w, &domain.ValidationError{Field: "image", Reason: "unsupported image format"})
		return nil, false
	}
	return data, true
}

// closeWithLog closes c and logs any error, using label to identify the resource.
func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}
