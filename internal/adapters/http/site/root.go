// Package site serves the questionnaire front-end from a directory.
package site

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/gorilla/mux"
)

// Error constants
var (
	ErrStaticDir = errors.New("static directory unusable")
)

// Register serves the files under dir at the root path. It must be called
// after every other route, since it matches all remaining GET paths. An
// empty dir registers nothing.
func Register(r *mux.Router, dir string) error {
	if r == nil {
		panic("router is nil")
	}
	if dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStaticDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrStaticDir, dir)
	}

	r.PathPrefix("/").Handler(http.FileServer(http.Dir(dir))).Methods(http.MethodGet, http.MethodHead)
	return nil
}
