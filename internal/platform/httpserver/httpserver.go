// Package httpserver centralizes http.Server construction so every entry
// point gets the same timeouts.
package httpserver

import (
	"net/http"
	"time"
)

// Report downloads stream a workbook and can outlive a plain API call, so
// the write timeout is generous relative to the read side.
const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 15 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 2 * time.Minute
)

// New builds the server serving the casework API.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}
