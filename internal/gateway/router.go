package gateway

import (
	"net/http"

	"blobgate/internal/cache"
)

// Handler returns an http.Handler implementing the gateway API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /_health", s.handleHealth)

	mux.Handle("POST "+UploadPath, RequireAuthentication(s.Config.Authenticator, http.HandlerFunc(s.handleUpload)))
	mux.HandleFunc("GET "+UploadPath, s.handleUploadMethod)
	mux.HandleFunc("DELETE "+UploadPath, s.handleUploadMethod)

	// Object-level operations
	mux.HandleFunc("GET /{key}", func(w http.ResponseWriter, r *http.Request) {
		key := r.PathValue("key")
		s.handleGetObject(w, r, key)
	})
	mux.Handle("DELETE /{key}", RequireAuthentication(s.Config.Authenticator, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.PathValue("key")
		s.handleDeleteObject(w, r, key)
	})))

	// Add middleware
	handler := cache.Middleware(s.Config.Cache, s.Config.CacheTTL)(mux)
	handler = LogRequest(handler)
	handler = Recoverer(handler)
	return handler
}
