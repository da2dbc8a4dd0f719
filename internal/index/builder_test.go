package index_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/hangul-tts/internal/hangul"
	"github.com/book-expert/hangul-tts/internal/index"
	"github.com/book-expert/hangul-tts/internal/storage"
	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*storage.FileStore, *index.Builder, string) {
	t.Helper()

	root := t.TempDir()

	log, err := logger.New(t.TempDir(), "index-test.log")
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	store, err := storage.NewFileStore(root, log)
	require.NoError(t, err)

	return store, index.NewBuilder(store, root, log), root
}

func TestParseFilename(t *testing.T) {
	t.Parallel()

	components, err := index.ParseFilename("ㄱ_ㅏ_none.mp3")
	require.NoError(t, err)
	assert.Equal(t, hangul.Components{Initial: "ㄱ", Medial: "ㅏ", Final: "none"}, components)

	_, err = index.ParseFilename("ㄱ_ㅏ.mp3")

	var parseErr *index.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "ㄱ_ㅏ.mp3", parseErr.Filename)

	_, err = index.ParseFilename("a_b_c_d.mp3")
	require.ErrorAs(t, err, &parseErr)
}

func TestBuilder_BuildWritesDocument(t *testing.T) {
	t.Parallel()

	store, builder, root := setup(t)

	// 가, 간, 개
	for _, idx := range []int{0, 4, 28} {
		_, err := store.Save([]byte("x"), hangul.All()[idx])
		require.NoError(t, err)
	}

	// A malformed and an unknown name are skipped.
	require.NoError(t, os.WriteFile(filepath.Join(root, "ㄱ", "broken.mp3"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "ㄱ", "ㄱ_x_none.mp3"), []byte("x"), 0o644))

	indexPath, err := builder.Build()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, index.FileName), indexPath)

	data, err := os.ReadFile(indexPath)
	require.NoError(t, err)

	var doc index.Document
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, 3, doc.TotalFiles)
	assert.False(t, doc.GeneratedAt.IsZero())
	require.Contains(t, doc.Syllables, "간")
	assert.Equal(t, "/audio/ㄱ/ㄱ_ㅏ_ㄴ.mp3", doc.Syllables["간"].PublicPath)
	assert.Equal(t, "ㄴ", doc.Syllables["간"].Components.Final)

	assert.Len(t, doc.ByInitial["ㄱ"], 3)
	assert.Len(t, doc.ByMedial["ㅏ"], 2)
	assert.Len(t, doc.ByMedial["ㅐ"], 1)
	assert.Equal(t, "개", doc.ByMedial["ㅐ"][0].Syllable)

	_, err = os.Stat(indexPath + storage.TempSuffix)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuilder_BuildOverwritesPreviousIndex(t *testing.T) {
	t.Parallel()

	store, builder, _ := setup(t)

	_, err := store.Save([]byte("x"), hangul.All()[0])
	require.NoError(t, err)

	indexPath, err := builder.Build()
	require.NoError(t, err)

	require.NoError(t, os.Remove(store.PathFor(hangul.All()[0])))

	_, err = builder.Build()
	require.NoError(t, err)

	data, err := os.ReadFile(indexPath)
	require.NoError(t, err)

	var doc index.Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Zero(t, doc.TotalFiles)
	assert.Empty(t, doc.Syllables)
}

func TestBuilder_BuildFailedReplaceLeavesNoTempFile(t *testing.T) {
	t.Parallel()

	_, builder, root := setup(t)

	// A directory in place of the index makes the final rename fail.
	blocker := filepath.Join(root, index.FileName)
	require.NoError(t, os.MkdirAll(filepath.Join(blocker, "keep"), 0o755))

	_, err := builder.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to replace index")

	_, err = os.Stat(blocker + storage.TempSuffix)
	assert.ErrorIs(t, err, os.ErrNotExist)

	info, err := os.Stat(blocker)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
