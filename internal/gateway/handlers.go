package gateway

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"blobgate/internal/keygen"
	"blobgate/internal/storage"
	"blobgate/internal/ui"
)

// multipartMemory is how much of a multipart body is kept in memory before
// parts spill to temporary files.
const multipartMemory = 32 << 20

// handleUpload implements POST /_upload.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.ContentLength > s.Config.MaxUploadSize {
		writeText(w, http.StatusRequestEntityTooLarge, "File too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.Config.MaxUploadSize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeText(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeText(w, http.StatusBadRequest, "Missing file")
		return
	}
	defer r.MultipartForm.RemoveAll()

	// FormFile fails both when the part is absent and when it was sent as
	// a plain text field.
	file, header, err := r.FormFile("file")
	if err != nil {
		writeText(w, http.StatusBadRequest, "Missing file")
		return
	}
	defer file.Close()

	var name string
	if values := r.MultipartForm.Value["name"]; len(values) > 0 {
		name = values[0]
	}

	key, err := s.keys.Resolve(ctx, name, keygen.Extension(header.Filename))
	if errors.Is(err, keygen.ErrKeysExhausted) {
		slog.Error("Key generation exhausted", "attempts", keygen.MaxAttempts)
		writeText(w, http.StatusInternalServerError, "Failed to generate a unique file name")
		return
	}
	if err != nil {
		slog.Error("Resolve object key", "err", err)
		writeInternalError(w)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		slog.Error("Read uploaded file", "key", key, "err", err)
		writeInternalError(w)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if err := s.Config.Store.Put(ctx, key, data, contentType); err != nil {
		slog.Error("Store object", "key", key, "err", err)
		writeInternalError(w)
		return
	}

	escaped := "/" + url.PathEscape(key)
	s.invalidate(ctx, r, escaped)

	slog.Info("Stored object", "key", key, "size", len(data), "content_type", contentType)
	writeText(w, http.StatusOK, s.origin(r)+escaped)
}

// handleGetObject implements GET /{key}.
func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request, key string) {
	obj, err := s.Config.Store.Get(r.Context(), key)
	if errors.Is(err, storage.ErrNotFound) {
		writeText(w, http.StatusNotFound, "404 Not Found")
		return
	}
	if err != nil {
		slog.Error("Fetch object", "key", key, "err", err)
		writeInternalError(w)
		return
	}

	contentType := obj.ContentType
	// Some clients upload video as a generic byte stream.
	if contentType == "application/octet-stream" && strings.HasSuffix(key, ".mp4") {
		contentType = "video/mp4"
	}

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	} else {
		// An explicit nil stops net/http from sniffing a type.
		w.Header()["Content-Type"] = nil
	}
	w.Header().Set("Cache-Control", CacheControl)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(obj.Data); err != nil {
		slog.Error("Stream object", "key", key, "err", err)
	}
}

// handleDeleteObject implements DELETE /{key}. Missing keys are not an
// error.
func (s *Server) handleDeleteObject(w http.ResponseWriter, r *http.Request, key string) {
	ctx := r.Context()

	if err := s.Config.Store.Delete(ctx, key); err != nil {
		slog.Error("Delete object", "key", key, "err", err)
		writeInternalError(w)
		return
	}

	s.invalidate(ctx, r, r.URL.EscapedPath())

	slog.Info("Deleted object", "key", key)
	writeText(w, http.StatusOK, "OK")
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := ui.UploadPage(s.Config.Title, UploadPath).Render(r.Context(), w); err != nil {
		slog.Error("Render upload page", "err", err)
	}
}

// handleUploadMethod keeps the upload path from being read or deleted as a
// key.
func (s *Server) handleUploadMethod(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", http.MethodPost)
	writeText(w, http.StatusMethodNotAllowed, "Method Not Allowed")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	writeText(w, http.StatusOK, "OK")
}
