package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server for the API. The generous write timeout covers
// CSV exports of large trials; everything else finishes well within it.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
