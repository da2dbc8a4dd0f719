// Package index rebuilds the syllable lookup document from the audio files on disk.
package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-expert/hangul-tts/internal/hangul"
	"github.com/book-expert/hangul-tts/internal/storage"
	"github.com/book-expert/logger"
)

const (
	// FileName is the index document name inside the audio root.
	FileName = "index.json"

	filePermissions = 0o644
	dirPermissions  = 0o755
	partCount       = 3
	partSeparator   = "_"
)

// ErrUnknownSyllable indicates a well-formed filename whose components name no syllable.
var ErrUnknownSyllable = errors.New("filename does not match any syllable")

// ParseError reports an audio filename that cannot be mapped back to its components.
type ParseError struct {
	Filename string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse syllable components from %q: %v", e.Filename, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var errWrongPartCount = errors.New("expected initial_medial_final")

// Entry is the lookup record for one syllable keyed by the syllable itself.
type Entry struct {
	PublicPath string            `json:"publicPath"`
	Components hangul.Components `json:"components"`
}

// GroupEntry is one element of a grouped listing.
type GroupEntry struct {
	Syllable   string            `json:"syllable"`
	PublicPath string            `json:"publicPath"`
	Components hangul.Components `json:"components"`
}

// Document is the full lookup index.
type Document struct {
	TotalFiles  int                     `json:"totalFiles"`
	GeneratedAt time.Time               `json:"generatedAt"`
	Syllables   map[string]Entry        `json:"syllables"`
	ByInitial   map[string][]GroupEntry `json:"byInitial"`
	ByMedial    map[string][]GroupEntry `json:"byMedial"`
}

// Lister reports completed audio file names per initial consonant.
type Lister interface {
	ListCompleted() (map[string][]string, error)
}

// Builder scans the audio root and writes the index document.
type Builder struct {
	files Lister
	root  string
	log   *logger.Logger
	now   func() time.Time
}

// NewBuilder creates a builder writing <root>/index.json from the files reported by files.
func NewBuilder(files Lister, root string, log *logger.Logger) *Builder {
	return &Builder{
		files: files,
		root:  root,
		log:   log,
		now:   time.Now,
	}
}

// ParseFilename maps "initial_medial_final.mp3" back to its components.
func ParseFilename(name string) (hangul.Components, error) {
	parts := strings.Split(strings.TrimSuffix(name, storage.AudioExtension), partSeparator)
	if len(parts) != partCount {
		return hangul.Components{}, &ParseError{Filename: name, Err: errWrongPartCount}
	}

	return hangul.Components{Initial: parts[0], Medial: parts[1], Final: parts[2]}, nil
}

// Collect assembles the document from the current directory contents.
func (b *Builder) Collect() (*Document, error) {
	listed, err := b.files.ListCompleted()
	if err != nil {
		return nil, fmt.Errorf("failed to scan audio files: %w", err)
	}

	doc := &Document{
		GeneratedAt: b.now().UTC(),
		Syllables:   make(map[string]Entry),
		ByInitial:   make(map[string][]GroupEntry),
		ByMedial:    make(map[string][]GroupEntry),
	}

	for _, initial := range hangul.Initials() {
		for _, name := range listed[initial] {
			b.addFile(doc, initial, name)
		}
	}

	doc.TotalFiles = len(doc.Syllables)

	return doc, nil
}

func (b *Builder) addFile(doc *Document, initial, name string) {
	components, err := ParseFilename(name)
	if err != nil {
		b.log.Warn("Skipping audio file: %v", err)

		return
	}

	syllable, ok := hangul.Lookup(components)
	if !ok {
		b.log.Warn("Skipping audio file: %v", &ParseError{Filename: name, Err: ErrUnknownSyllable})

		return
	}

	publicPath := storage.PublicPath(initial, name)
	key := syllable.String()

	doc.Syllables[key] = Entry{PublicPath: publicPath, Components: syllable.Components}

	group := GroupEntry{Syllable: key, PublicPath: publicPath, Components: syllable.Components}
	doc.ByInitial[syllable.Initial] = append(doc.ByInitial[syllable.Initial], group)
	doc.ByMedial[syllable.Medial] = append(doc.ByMedial[syllable.Medial], group)
}

// Build rescans the audio root and overwrites the index document, returning its path.
func (b *Builder) Build() (string, error) {
	doc, err := b.Collect()
	if err != nil {
		return "", err
	}

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal index: %w", err)
	}

	err = os.MkdirAll(b.root, dirPermissions)
	if err != nil {
		return "", fmt.Errorf("failed to create audio root: %w", err)
	}

	indexPath := filepath.Join(b.root, FileName)
	tempPath := indexPath + storage.TempSuffix

	err = os.WriteFile(tempPath, payload, filePermissions)
	if err != nil {
		return "", fmt.Errorf("failed to write index: %w", err)
	}

	err = os.Rename(tempPath, indexPath)
	if err != nil {
		removeErr := os.Remove(tempPath)
		if removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			b.log.Error("Failed to remove temp index '%s': %v", tempPath, removeErr)
		}

		return "", fmt.Errorf("failed to replace index: %w", err)
	}

	b.log.Info("Index generated with %d files at %s", doc.TotalFiles, indexPath)

	return indexPath, nil
}
