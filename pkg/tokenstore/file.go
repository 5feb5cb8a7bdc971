package tokenstore

import (
	"context"
	"os"
	"path/filepath"

	"github.com/animalet/passwork-go/pkg/passwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// FileConfig stores the pair as JSON in a local file (mode 0600).
type FileConfig struct {
	Path string `yaml:"path"`
}

func (f FileConfig) Validate() error {
	if f.Path == "" {
		return errors.New("token file path is required")
	}
	if info, err := os.Stat(f.Path); err == nil && info.IsDir() {
		return errors.Errorf("token file %q is a directory", f.Path)
	}
	return nil
}

type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load returns nil when the file does not exist yet.
func (f *FileStore) Load(_ context.Context) (*passwork.Tokens, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read token file %q", f.path)
	}
	return decode(data)
}

// Save replaces the file atomically.
func (f *FileStore) Save(_ context.Context, tokens passwork.Tokens) error {
	data, err := encode(tokens)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrapf(err, "failed to create %q", dir)
	}
	tmp, err := os.CreateTemp(dir, ".tokens-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary token file")
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "failed to write token file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to write token file")
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return errors.Wrapf(err, "failed to replace token file %q", f.path)
	}
	log.Debug().Str("path", f.path).Msg("Stored Passwork tokens")
	return nil
}

func (f *FileStore) Close() error {
	return nil
}
