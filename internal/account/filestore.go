// Package account persists the long-term account state produced when a
// registration completes.
package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/roach88/registrar/internal/service"
)

// FileName is the export file inside the account directory.
const FileName = "account.json"

// ErrNoAccount is returned by Load when nothing has been exported.
var ErrNoAccount = errors.New("account: no exported account")

// FileStore writes the exported account as a single JSON file. Writes are
// atomic: readers see the previous export or the new one, never a mix.
type FileStore struct {
	fs  afero.Fs
	dir string
}

// NewFileStore creates a store rooted at dir on fs.
func NewFileStore(fs afero.Fs, dir string) *FileStore {
	return &FileStore{fs: fs, dir: dir}
}

// Path returns the export file path.
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, FileName)
}

// Export implements service.AccountExporter.
func (s *FileStore) Export(ctx context.Context, account service.ExportedAccount) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(account, "", "  ")
	if err != nil {
		return fmt.Errorf("encode account: %w", err)
	}
	return writeFileAtomic(s.fs, s.Path(), append(data, '\n'))
}

// Load reads the last export.
func (s *FileStore) Load(ctx context.Context) (service.ExportedAccount, error) {
	var account service.ExportedAccount
	data, err := afero.ReadFile(s.fs, s.Path())
	if errors.Is(err, os.ErrNotExist) {
		return account, ErrNoAccount
	}
	if err != nil {
		return account, fmt.Errorf("read account: %w", err)
	}
	if err := json.Unmarshal(data, &account); err != nil {
		return account, fmt.Errorf("decode account %s: %w", s.Path(), err)
	}
	return account, nil
}

// Remove deletes the export. Removing a missing export is not an error.
func (s *FileStore) Remove(ctx context.Context) error {
	err := s.fs.Remove(s.Path())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove account: %w", err)
	}
	return nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place.
func writeFileAtomic(fs afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(fs, dir, ".account-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer fs.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := fs.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}
	return nil
}

var _ service.AccountExporter = (*FileStore)(nil)
