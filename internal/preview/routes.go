package preview

import "net/http"

// registerRoutes sets up all HTTP handlers of the preview.
func (s *Server) registerRoutes() {
	s.router.Use(s.withRequestID, s.logRequests)

	s.router.HandleFunc("/frame.jpg", s.handleFrame).Methods(http.MethodGet)
	s.router.HandleFunc("/stream", s.handleStream).Methods(http.MethodGet)
	s.router.HandleFunc("/api/telemetry", s.handleTelemetry).Methods(http.MethodGet)
	s.router.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
}
