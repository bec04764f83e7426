// Package credman resolves the shared secret that authenticates RPC clients
// to the batchdl daemon.
package credman

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/warpdl/batchdl/pkg/credman/keyring"
	"github.com/warpdl/batchdl/pkg/logger"
)

// ErrNoSecret is returned by Lookup when no source holds a secret.
var ErrNoSecret = errors.New("no rpc secret configured")

// Source names where a secret came from.
type Source string

const (
	SourceEnv       Source = "env"
	SourceGenerated Source = "generated"
)

const secretBytes = 32

var randRead = rand.Read

// SecretManager resolves the RPC secret from an environment variable, then
// from each store in order.
type SecretManager struct {
	envVar string
	stores []keyring.Store
	l      logger.Logger
}

// NewSecretManager checks envVar, the OS keyring and finally the secret file
// in configDir.
func NewSecretManager(envVar, configDir string, l logger.Logger) *SecretManager {
	return NewSecretManagerWithStores(envVar, l,
		keyring.NewKeyring(),
		keyring.NewFileStore(afero.NewOsFs(), configDir),
	)
}

func NewSecretManagerWithStores(envVar string, l logger.Logger, stores ...keyring.Store) *SecretManager {
	return &SecretManager{envVar: envVar, stores: stores, l: logger.OrNop(l)}
}

// Lookup returns an existing secret without creating one.
func (m *SecretManager) Lookup() (string, Source, error) {
	if m.envVar != "" {
		if s := strings.TrimSpace(os.Getenv(m.envVar)); s != "" {
			return s, SourceEnv, nil
		}
	}
	for _, st := range m.stores {
		s, err := st.Get()
		switch {
		case err == nil:
			return s, Source(st.Name()), nil
		case errors.Is(err, keyring.ErrNotFound):
		default:
			m.l.Warning("secret store %s unavailable: %v", st.Name(), err)
		}
	}
	return "", "", ErrNoSecret
}

// Secret returns the existing secret or generates and saves a new one in the
// first store that accepts it.
func (m *SecretManager) Secret() (string, Source, error) {
	s, src, err := m.Lookup()
	if !errors.Is(err, ErrNoSecret) {
		return s, src, err
	}
	s, err = m.Rotate()
	if err != nil {
		return "", "", err
	}
	return s, SourceGenerated, nil
}

// Rotate generates a new secret and saves it, replacing any stored one.
func (m *SecretManager) Rotate() (string, error) {
	s, err := generate()
	if err != nil {
		return "", err
	}
	var errs []error
	for _, st := range m.stores {
		if err := st.Set(s); err != nil {
			m.l.Warning("cannot save secret to %s: %v", st.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", st.Name(), err))
			continue
		}
		m.l.Info("rpc secret saved to %s", st.Name())
		return s, nil
	}
	return "", fmt.Errorf("save rpc secret: %w", errors.Join(errs...))
}

// Reset removes the secret from every store.
func (m *SecretManager) Reset() error {
	var errs []error
	for _, st := range m.stores {
		if err := st.Delete(); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			errs = append(errs, fmt.Errorf("%s: %w", st.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func generate() (string, error) {
	b := make([]byte, secretBytes)
	if _, err := randRead(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
