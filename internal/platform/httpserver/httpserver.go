// Package httpserver centralizes http.Server construction so cmd/server and
// any future entrypoint share the same timeouts.
package httpserver

import (
	"net/http"
	"time"
)

// New builds the server that fronts the workflow API. ReadHeaderTimeout
// bounds slow-header clients; handler-level deadlines cover the rest.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
