package internal

import (
	"io"

	"github.com/starford/larder/internal/store"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	store  store.Store
	logOut io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithStore replaces the store the config would open. The caller keeps ownership.
func WithStore(st store.Store) Option {
	return func(a *application) {
		a.store = st
	}
}

// WithLogOutput redirects the JSON log (stdout by default).
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOut = w
	}
}
