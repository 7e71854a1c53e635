package api

import (
	"log"
	"net/http"
	"time"
)

// loggingMiddleware logs each request with method, path, and duration
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// recoveryMiddleware converts handler panics into 500 responses
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("Panic in handler %s %s: %v", r.Method, r.URL.Path, err)
				WriteInternalErrorResponse(w, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
