package keyring

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

const (
	secretFileName = "rpc.secret"
	secretFileMode = 0600
)

// FileStore keeps the secret in <dir>/rpc.secret, readable by the owner
// only. It is used where no OS keyring is reachable, e.g. headless servers.
type FileStore struct {
	fs  afero.Fs
	dir string
}

func NewFileStore(fsys afero.Fs, dir string) *FileStore {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &FileStore{fs: fsys, dir: dir}
}

func (f *FileStore) Name() string { return "file" }

func (f *FileStore) Path() string {
	return filepath.Join(f.dir, secretFileName)
}

func (f *FileStore) Get() (string, error) {
	data, err := afero.ReadFile(f.fs, f.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	s := strings.TrimSpace(string(data))
	if s == "" {
		return "", ErrNotFound
	}
	return s, nil
}

// Set writes secret through a temp file and a rename so a crash never leaves
// a truncated secret behind.
func (f *FileStore) Set(secret string) error {
	if err := f.fs.MkdirAll(f.dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp, err := afero.TempFile(f.fs, f.dir, ".rpc.secret.tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(secret); err != nil {
		tmp.Close()
		f.fs.Remove(tmpPath)
		return fmt.Errorf("write secret: %w", err)
	}
	if err := tmp.Close(); err != nil {
		f.fs.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := f.fs.Chmod(tmpPath, secretFileMode); err != nil {
		f.fs.Remove(tmpPath)
		return fmt.Errorf("set permissions: %w", err)
	}
	if err := f.fs.Rename(tmpPath, f.Path()); err != nil {
		f.fs.Remove(tmpPath)
		return fmt.Errorf("rename secret file: %w", err)
	}
	return nil
}

func (f *FileStore) Delete() error {
	err := f.fs.Remove(f.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return err
}
