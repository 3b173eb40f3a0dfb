// Package credentials locates the service-account key used by remote ledgers.
package credentials

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"glossync/internal/config"
)

// ErrCredentialMissing is returned when no configured source yields a
// usable credential. Callers skip the sync step rather than fail.
var ErrCredentialMissing = errors.New("no credentials available")

// Source is one place a credential may be found.
type Source interface {
	Name() string
	Load() ([]byte, error)
}

// File reads a JSON key from a path on disk.
type File string

func (f File) Name() string { return "file " + string(f) }

func (f File) Load() ([]byte, error) {
	data, err := os.ReadFile(string(f))
	if err != nil {
		return nil, err
	}
	return checkJSON(data)
}

// Env reads a JSON key from an environment variable. The value may be the
// raw JSON document or its base64 encoding.
type Env string

func (e Env) Name() string { return "env " + string(e) }

func (e Env) Load() ([]byte, error) {
	v := strings.TrimSpace(os.Getenv(string(e)))
	if v == "" {
		return nil, fmt.Errorf("%s is not set", string(e))
	}
	if decoded, err := base64.StdEncoding.DecodeString(v); err == nil {
		if trimmed := bytes.TrimSpace(decoded); len(trimmed) > 0 && trimmed[0] == '{' {
			return checkJSON(trimmed)
		}
	}
	return checkJSON([]byte(v))
}

func checkJSON(data []byte) ([]byte, error) {
	if !json.Valid(data) {
		return nil, errors.New("not a JSON document")
	}
	return data, nil
}

// FromConfig builds the lookup order: each configured file in turn, then
// the environment variable.
func FromConfig(cfg config.CredentialsConfig) []Source {
	sources := make([]Source, 0, len(cfg.Files)+1)
	for _, f := range cfg.Files {
		if f != "" {
			sources = append(sources, File(expandHome(f)))
		}
	}
	if cfg.Env != "" {
		sources = append(sources, Env(cfg.Env))
	}
	return sources
}

// expandHome resolves a leading "~/" against the user's home directory.
func expandHome(path string) string {
	rest, ok := strings.CutPrefix(path, "~/")
	if !ok {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, rest)
}

// Resolve tries each source in order and returns the first credential that
// loads. If none does, the error wraps ErrCredentialMissing.
func Resolve(sources ...Source) ([]byte, error) {
	for _, s := range sources {
		data, err := s.Load()
		if err != nil {
			log.Printf("[credentials] %s: %v", s.Name(), err)
			continue
		}
		log.Printf("[credentials] using %s", s.Name())
		return data, nil
	}
	return nil, fmt.Errorf("%w: tried %d sources", ErrCredentialMissing, len(sources))
}
