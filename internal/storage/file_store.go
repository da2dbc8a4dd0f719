// Package storage persists syllable audio under per-initial directories and
// scans them to report completed work.
//
// Files are written to a temporary name and renamed into place so a final
// file is never observed half-written. The temporary name is derived from the
// target, so two overlapping batches writing the same syllable at the same
// time can still clobber each other's temp file; the batch client is serial
// and this is not guarded.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/book-expert/hangul-tts/internal/core"
	"github.com/book-expert/hangul-tts/internal/hangul"
	"github.com/book-expert/logger"
)

const (
	filePermissions = 0o644
	dirPermissions  = 0o755

	// TempSuffix marks in-progress writes.
	TempSuffix = ".tmp"
	// AudioExtension is the extension of completed audio files.
	AudioExtension = ".mp3"

	publicPrefix = "/audio"
)

// Operations reported in PersistenceError.
const (
	OpMkdir  = "mkdir"
	OpWrite  = "write"
	OpVerify = "verify"
	OpRemove = "remove"
	OpRename = "rename"
)

var (
	// ErrRootEmpty indicates that no output directory was configured.
	ErrRootEmpty = errors.New("audio root cannot be empty")
	// ErrEmptyTempFile indicates that the temp file was empty after writing.
	ErrEmptyTempFile = errors.New("temporary audio file is empty after writing")
)

// PersistenceError reports a failed step while writing one audio file.
type PersistenceError struct {
	Path string
	Op   string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// FileStore writes audio files to <root>/<initial>/<filename>.
type FileStore struct {
	root string
	log  *logger.Logger
}

// NewFileStore creates a store rooted at dir. The directory is created lazily on first save.
func NewFileStore(root string, log *logger.Logger) (*FileStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, ErrRootEmpty
	}

	return &FileStore{root: root, log: log}, nil
}

// Root returns the output root directory.
func (s *FileStore) Root() string {
	return s.root
}

// PathFor returns the final on-disk path for a syllable.
func (s *FileStore) PathFor(syllable hangul.Syllable) string {
	return filepath.Join(s.root, syllable.Initial, syllable.Filename)
}

// PublicPath returns the URL path under which a stored file is served.
func PublicPath(initial, filename string) string {
	return path.Join(publicPrefix, initial, filename)
}

// Exists reports whether the final audio file for the syllable is present.
func (s *FileStore) Exists(syllable hangul.Syllable) (bool, error) {
	_, err := os.Stat(s.PathFor(syllable))
	if err == nil {
		return true, nil
	}

	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	return false, fmt.Errorf("failed to stat %s: %w", s.PathFor(syllable), err)
}

// Save writes data for the syllable using write-temp-then-rename.
func (s *FileStore) Save(data []byte, syllable hangul.Syllable) (core.SavedFile, error) {
	initialDir := filepath.Join(s.root, syllable.Initial)
	finalPath := filepath.Join(initialDir, syllable.Filename)
	tempPath := finalPath + TempSuffix

	err := os.MkdirAll(initialDir, dirPermissions)
	if err != nil {
		return core.SavedFile{}, &PersistenceError{Path: initialDir, Op: OpMkdir, Err: err}
	}

	err = s.writeAndReplace(data, tempPath, finalPath)
	if err != nil {
		s.cleanupTemp(tempPath)

		return core.SavedFile{}, err
	}

	return core.SavedFile{
		Path:       finalPath,
		PublicPath: PublicPath(syllable.Initial, syllable.Filename),
		Syllable:   syllable.String(),
		Components: syllable.Components,
	}, nil
}

func (s *FileStore) writeAndReplace(data []byte, tempPath, finalPath string) error {
	err := os.WriteFile(tempPath, data, filePermissions)
	if err != nil {
		return &PersistenceError{Path: tempPath, Op: OpWrite, Err: err}
	}

	info, err := os.Stat(tempPath)
	if err != nil {
		return &PersistenceError{Path: tempPath, Op: OpVerify, Err: err}
	}

	if !info.Mode().IsRegular() || info.Size() == 0 {
		return &PersistenceError{Path: tempPath, Op: OpVerify, Err: ErrEmptyTempFile}
	}

	// Rename does not replace on every platform.
	err = os.Remove(finalPath)
	if err == nil {
		s.log.Warn("Replacing existing audio file: %s", finalPath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return &PersistenceError{Path: finalPath, Op: OpRemove, Err: err}
	}

	err = os.Rename(tempPath, finalPath)
	if err != nil {
		return &PersistenceError{Path: finalPath, Op: OpRename, Err: err}
	}

	return nil
}

func (s *FileStore) cleanupTemp(tempPath string) {
	removeErr := os.Remove(tempPath)
	if removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
		s.log.Error("Failed to remove temp file '%s': %v", tempPath, removeErr)
	}
}

// IsCompletedAudio reports whether a directory entry name is a finished audio file.
func IsCompletedAudio(name string) bool {
	return strings.HasSuffix(name, AudioExtension) && !strings.HasSuffix(name, TempSuffix)
}

// ListCompleted returns the completed audio file names grouped by initial consonant,
// in enumeration order of the initials. Missing directories are skipped.
func (s *FileStore) ListCompleted() (map[string][]string, error) {
	out := make(map[string][]string)

	for _, initial := range hangul.Initials() {
		dir := filepath.Join(s.root, initial)

		entries, err := os.ReadDir(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
		}

		for _, entry := range entries {
			if entry.IsDir() || !IsCompletedAudio(entry.Name()) {
				continue
			}

			out[initial] = append(out[initial], entry.Name())
		}
	}

	return out, nil
}

// CountCompleted counts completed audio files across all initial directories.
func (s *FileStore) CountCompleted() (int, error) {
	files, err := s.ListCompleted()
	if err != nil {
		return 0, err
	}

	total := 0
	for _, names := range files {
		total += len(names)
	}

	return total, nil
}
