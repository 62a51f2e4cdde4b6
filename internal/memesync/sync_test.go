package memesync

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/SlpAus/meme-arena-backend/internal/meme"
	"github.com/SlpAus/meme-arena-backend/internal/platform/metadata"
	"github.com/SlpAus/meme-arena-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestSyncer_Run(t *testing.T) {
	db := testutil.NewTestDB(t, &meme.Meme{}, &metadata.Metadata{})
	root := t.TempDir()
	ctx := context.Background()

	writeFile(t, filepath.Join(root, "memes", "grumpy-cat.md"), grumpyCat)
	writeFile(t, filepath.Join(root, "memes", "dogs", "doge.md"), "# Doge\n## Cover\n![d](https://example.com/doge.png)\n")
	writeFile(t, filepath.Join(root, "memes", "broken.md"), "# Broken\n")
	writeFile(t, filepath.Join(root, "memes", "notes.txt"), "# ignored")

	s := NewSyncer(db, root)
	res, err := s.Run(ctx, filepath.Join(root, "memes"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Success)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "memes/broken")

	repo := meme.NewRepository(db)
	grumpy, err := repo.GetByUID(ctx, "memes/grumpy-cat")
	require.NoError(t, err)
	assert.Equal(t, "Grumpy Cat", grumpy.Name)
	assert.Equal(t, 1500, grumpy.EloScore)

	_, err = repo.GetByUID(ctx, "memes/dogs/doge")
	require.NoError(t, err)

	count, err := metadata.GetInt(db, metadata.LastSyncCountKey)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	syncedAt, err := metadata.GetTime(db, metadata.LastSyncAtKey)
	require.NoError(t, err)
	assert.False(t, syncedAt.IsZero())
}

func TestSyncer_ResyncKeepsRating(t *testing.T) {
	db := testutil.NewTestDB(t, &meme.Meme{}, &metadata.Metadata{})
	root := t.TempDir()
	ctx := context.Background()
	file := filepath.Join(root, "doge.md")

	writeFile(t, file, "# Doge\n## Cover\n![d](https://example.com/1.png)\n")
	s := NewSyncer(db, root)
	_, created, err := s.SyncFile(ctx, file)
	require.NoError(t, err)
	assert.True(t, created)

	repo := meme.NewRepository(db)
	m, err := repo.GetByUID(ctx, "doge")
	require.NoError(t, err)
	require.NoError(t, repo.ApplyResult(ctx, m, 1516, true))

	writeFile(t, file, "# Doge v2\n## Cover\n![d](https://example.com/2.png)\n")
	res, err := s.Run(ctx, file)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Success)
	assert.Zero(t, res.Created)

	updated, err := repo.GetByUID(ctx, "doge")
	require.NoError(t, err)
	assert.Equal(t, "Doge v2", updated.Name)
	assert.Equal(t, "https://example.com/2.png", updated.Cover)
	assert.Equal(t, 1516, updated.EloScore)
	assert.Equal(t, 1, updated.Wins)
}

func TestCollectFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.md"), "")
	writeFile(t, filepath.Join(root, "sub", "b.md"), "")
	writeFile(t, filepath.Join(root, "sub", "c.txt"), "")

	files, err := CollectFiles(root)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(root, "a.md"), filepath.Join(root, "sub", "b.md")}, files)

	files, err = CollectFiles(filepath.Join(root, "sub", "c.txt"))
	require.NoError(t, err)
	assert.Empty(t, files)

	_, err = CollectFiles(filepath.Join(root, "missing"))
	assert.Error(t, err)
}

func TestSyncer_UIDOutsideRoot(t *testing.T) {
	db := testutil.NewTestDB(t, &meme.Meme{}, &metadata.Metadata{})
	other := t.TempDir()
	file := filepath.Join(other, "lonely-meme.md")
	writeFile(t, file, "## Cover\n![d](https://example.com/l.png)\n")

	doc, _, err := NewSyncer(db, t.TempDir()).SyncFile(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, "lonely-meme", doc.UID)
	assert.Equal(t, "lonely meme", doc.Name)
}
