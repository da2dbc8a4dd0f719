// Package core defines the interfaces shared by the syllable audio pipeline.
package core

import (
	"context"
	"errors"

	"github.com/book-expert/hangul-tts/internal/hangul"
)

// ErrObjectNotFound is returned by ObjectStore.Download when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// Synthesizer turns a single syllable into encoded audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, syllable string) ([]byte, error)
}

// SavedFile describes an audio file that was persisted for a syllable.
type SavedFile struct {
	Path       string            `json:"path"`
	PublicPath string            `json:"publicPath"`
	Syllable   string            `json:"syllable"`
	Components hangul.Components `json:"components"`
}

// AudioStore persists syllable audio and reports what is already on disk.
type AudioStore interface {
	Exists(syllable hangul.Syllable) (bool, error)
	Save(data []byte, syllable hangul.Syllable) (SavedFile, error)
	CountCompleted() (int, error)
}

// IndexBuilder regenerates the lookup index from the files on disk.
type IndexBuilder interface {
	Build() (string, error)
}

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// Notifier announces saved audio files to interested consumers.
type Notifier interface {
	AudioSaved(ctx context.Context, batchID string, file SavedFile, index, total int) error
}
