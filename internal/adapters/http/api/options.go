package api

import (
	"github.com/okian/facequiz/pkg/logger"
)

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithLogger sets the logger used by handlers and middleware.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCORSOrigins sets the allowed CORS origins. "*" allows any origin.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.corsOrigins = origins
		}
	}
}

// WithVisitSkipPaths replaces the paths excluded from visit recording.
func WithVisitSkipPaths(paths ...string) Option {
	return func(s *Server) {
		s.visitSkip = paths
	}
}
