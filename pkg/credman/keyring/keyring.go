// Package keyring stores the daemon's RPC secret in the operating system
// keyring, with a file under the config directory as fallback.
package keyring

import (
	"errors"
	"strings"

	gokeyring "github.com/zalando/go-keyring"
)

// ErrNotFound is returned by every Store when no secret has been saved.
var ErrNotFound = errors.New("secret not found")

// Store persists a single secret string.
type Store interface {
	Name() string
	Get() (string, error)
	Set(secret string) error
	Delete() error
}

const (
	DefaultService = "batchdl"
	DefaultUser    = "rpc-secret"
)

var (
	keyringSet    = gokeyring.Set
	keyringGet    = gokeyring.Get
	keyringDelete = gokeyring.Delete
)

// Keyring is a Store backed by the OS keyring (Secret Service, Keychain or
// Windows Credential Manager).
type Keyring struct {
	Service string
	User    string
}

func NewKeyring() *Keyring {
	return &Keyring{Service: DefaultService, User: DefaultUser}
}

func (k *Keyring) Name() string { return "keyring" }

func (k *Keyring) Get() (string, error) {
	s, err := keyringGet(k.Service, k.User)
	if errors.Is(err, gokeyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrNotFound
	}
	return s, nil
}

func (k *Keyring) Set(secret string) error {
	return keyringSet(k.Service, k.User, secret)
}

func (k *Keyring) Delete() error {
	err := keyringDelete(k.Service, k.User)
	if errors.Is(err, gokeyring.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
