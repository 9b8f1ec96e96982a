package server

import (
	"net/http"
	"time"
)

// EnvConfig defines fields used for parsing from environment variables
type EnvConfig struct {
	Host        string        `env:"HOST" envDefault:"0.0.0.0"`
	Port        uint16        `env:"PORT" envDefault:"9000"`
	TokenSecret string        `env:"TOKEN_SECRET,required"`
	TokenTTL    time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	CacheTTL    time.Duration `env:"AUTH_CACHE_TTL" envDefault:"5m"`
}

// Option alters the http.Server built during NewServer
type Option interface {
	apply(*http.Server)
}

type optionFunc func(s *http.Server)

func (f optionFunc) apply(s *http.Server) { f(s) }

// ReadTimeout sets read timeout for http.Server
func ReadTimeout(d time.Duration) Option {
	return optionFunc(func(s *http.Server) {
		s.ReadTimeout = d
	})
}

// WriteTimeout sets write timeout for http.Server.
// It must stay zero when the socket endpoint is served, long-lived upgraded
// connections inherit the deadline otherwise.
func WriteTimeout(d time.Duration) Option {
	return optionFunc(func(s *http.Server) {
		s.WriteTimeout = d
	})
}
