package receipt

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
)

// LocalUser is the single user when authentication is not configured
const LocalUser = "local"

// Auth holds basic authentication users and the admin set
type Auth struct {
	Users  map[string]string // username to password
	Admins map[string]bool
}

// ParseUsers reads "alice:secret,bob:hunter2" into a username to password map
func ParseUsers(s string) (map[string]string, error) {
	users := make(map[string]string)
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, password, ok := strings.Cut(entry, ":")
		if !ok || name == "" || password == "" {
			return nil, fmt.Errorf("invalid user entry %q, expected name:password", entry)
		}
		users[name] = password
	}
	return users, nil
}

// ParseAdmins reads a comma separated list of usernames
func ParseAdmins(s string) map[string]bool {
	admins := make(map[string]bool)
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			admins[name] = true
		}
	}
	return admins
}

// Server handles HTTP requests for receipts
type Server struct {
	service *Service
	auth    Auth
	mux     *http.ServeMux
}

// NewServer creates a new Server with default mux
func NewServer(service *Service, auth Auth) *Server {
	return NewServerWithMux(service, auth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, auth Auth, mux *http.ServeMux) *Server {
	s := &Server{
		service: service,
		auth:    auth,
		mux:     mux,
	}
	s.registerRoutes()
	return s
}

type actorKey struct{}

// actorFrom returns the authenticated actor of a request
func actorFrom(r *http.Request) Actor {
	actor, _ := r.Context().Value(actorKey{}).(Actor)
	return actor
}

// authenticate checks basic auth credentials. Without configured users every
// request is the local user, who is also an admin.
func (s *Server) authenticate(r *http.Request) (Actor, bool) {
	if len(s.auth.Users) == 0 {
		return Actor{ID: LocalUser, Admin: true}, true
	}

	username, password, ok := r.BasicAuth()
	if !ok {
		return Actor{}, false
	}
	expected, known := s.auth.Users[username]
	if !known || subtle.ConstantTimeCompare([]byte(password), []byte(expected)) != 1 {
		return Actor{}, false
	}

	return Actor{ID: username, Admin: s.auth.Admins[username]}, true
}

// corsMiddleware adds CORS headers to responses
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := s.authenticate(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="Expense Tracker"`)
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	}
}

// requireAdmin middleware, applied inside requireAuth
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		if !actorFrom(r).Admin {
			writeError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next(w, r)
	})
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("POST /api/ocr", s.requireAuth(s.handleOCR))

	// receipts
	s.mux.HandleFunc("POST /api/receipts/batch", s.requireAuth(s.handleUploadBatch))
	s.mux.HandleFunc("GET /api/receipts/cleanup", s.requireAdmin(s.handleCleanupPreview))
	s.mux.HandleFunc("POST /api/receipts/cleanup", s.requireAdmin(s.handleCleanup))
	s.mux.HandleFunc("GET /api/receipts/{id}/file", s.requireAuth(s.handleGetReceiptFile))
	s.mux.HandleFunc("POST /api/receipts/{id}/review", s.requireAdmin(s.handleReviewReceipt))
	s.mux.HandleFunc("POST /api/receipts/{id}/archive", s.requireAuth(s.handleArchiveReceipt))
	s.mux.HandleFunc("POST /api/receipts/{id}/restore", s.requireAuth(s.handleRestoreReceipt))
	s.mux.HandleFunc("GET /api/receipts/{id}", s.requireAuth(s.handleGetReceipt))
	s.mux.HandleFunc("PUT /api/receipts/{id}", s.requireAuth(s.handleUpdateReceipt))
	s.mux.HandleFunc("DELETE /api/receipts/{id}", s.requireAuth(s.handleDeleteReceipt))
	s.mux.HandleFunc("GET /api/receipts", s.requireAuth(s.handleListReceipts))
	s.mux.HandleFunc("POST /api/receipts", s.requireAuth(s.handleUploadReceipt))

	// expense reports
	s.mux.HandleFunc("POST /api/reports/{id}/status", s.requireAuth(s.handleUpdateReportStatus))
	s.mux.HandleFunc("GET /api/reports/{id}", s.requireAuth(s.handleGetReport))
	s.mux.HandleFunc("GET /api/reports", s.requireAuth(s.handleListReports))
	s.mux.HandleFunc("POST /api/reports", s.requireAuth(s.handleCreateReport))

	s.mux.HandleFunc("GET /api/dashboard/stats", s.requireAuth(s.handleStats))
}

// Mount registers an extra handler, such as the metrics endpoint
func (s *Server) Mount(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

// ServeHTTP implements http.Handler with CORS applied to every route
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.corsMiddleware(s.mux).ServeHTTP(w, r)
}
