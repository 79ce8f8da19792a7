package web

import (
	"time"

	"github.com/psgc-shape/internal/web/middleware"
)

// Config represents the web server configuration
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORS         middleware.CORSConfig
}

// DefaultConfig returns a default configuration listening on addr
func DefaultConfig(addr string) *Config {
	return &Config{
		Addr:         addr,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
