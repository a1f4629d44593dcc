// Package mediafs manages the per-session storage areas on the local
// filesystem: one directory per band holding the recording artifacts and
// the optional session logo.
package mediafs

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"

	"github.com/rumba-live/rumba/pkg/session"
)

// Verify interface compliance.
var _ session.DirectoryService = (*Service)(nil)

// ErrNoLogo is returned by LogoURL when no logo has been stored.
var ErrNoLogo = errors.New("no logo stored")

// logoBasename is the name logo files are stored under, whatever their
// original extension.
const logoBasename = "logo"

// dirPerm is the mode for created session directories.
const dirPerm = 0o755

// unsafeChars matches characters stripped from band names when deriving
// directory names.
var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Service allocates session directories under a single root.
type Service struct {
	fs   afero.Fs
	root string
	log  *slog.Logger
}

// New creates a Service rooted at dir on the given filesystem.
func New(fs afero.Fs, root string, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{fs: fs, root: root, log: log}
}

// CreateSessionDirectory creates the storage directory for a band and
// returns its path.
func (s *Service) CreateSessionDirectory(band string) (string, error) {
	dir := s.sessionDir(band)
	if err := s.fs.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("creating session directory: %w", err)
	}
	s.log.Debug("session directory created", "band", band, "dir", dir)
	return dir, nil
}

// DeleteSessionDirectory removes the storage directory for a band and all
// its contents. Deleting a directory that does not exist is not an error.
func (s *Service) DeleteSessionDirectory(band string) error {
	dir := s.sessionDir(band)
	if err := s.fs.RemoveAll(dir); err != nil {
		return fmt.Errorf("deleting session directory: %w", err)
	}
	s.log.Debug("session directory deleted", "band", band, "dir", dir)
	return nil
}

// SaveLogo stores the logo image inside the band's directory, replacing any
// previously stored logo.
func (s *Service) SaveLogo(band string, logo io.Reader, filename string) error {
	dir := s.sessionDir(band)
	if err := s.fs.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}
	if err := s.removeLogos(dir); err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	path := filepath.Join(dir, logoBasename+ext)
	file, err := s.fs.Create(path)
	if err != nil {
		return fmt.Errorf("creating logo file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := io.Copy(file, logo); err != nil {
		return fmt.Errorf("writing logo file: %w", err)
	}
	s.log.Debug("session logo stored", "band", band, "path", path)
	return nil
}

// LogoURL returns the path of the stored logo, or ErrNoLogo when the band
// has none.
func (s *Service) LogoURL(band string) (string, error) {
	matches, err := s.findLogos(s.sessionDir(band))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", ErrNoLogo
	}
	return matches[0], nil
}

// sessionDir derives the directory path for a band.
func (s *Service) sessionDir(band string) string {
	name := unsafeChars.ReplaceAllString(strings.TrimSpace(band), "_")
	return filepath.Join(s.root, name)
}

// findLogos lists stored logo files inside dir.
func (s *Service) findLogos(dir string) ([]string, error) {
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		if errors.Is(err, afero.ErrFileNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading session directory: %w", err)
	}

	var matches []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.TrimSuffix(name, filepath.Ext(name)) == logoBasename {
			matches = append(matches, filepath.Join(dir, name))
		}
	}
	return matches, nil
}

// removeLogos deletes any stored logo files inside dir.
func (s *Service) removeLogos(dir string) error {
	matches, err := s.findLogos(dir)
	if err != nil {
		return err
	}
	for _, path := range matches {
		if err := s.fs.Remove(path); err != nil {
			return fmt.Errorf("removing old logo: %w", err)
		}
	}
	return nil
}
