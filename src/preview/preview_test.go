package preview

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.SetGray(x, x%h, color.Gray{Y: 200})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestStore(t *testing.T) *Store {
	store, err := NewStore(filepath.Join(t.TempDir(), "previews"), 1<<20)
	require.NoError(t, err)
	return store
}

func TestCreateStoresUploadAndThumbnail(t *testing.T) {
	store := newTestStore(t)
	data := pngBytes(t, 640, 480)

	p, err := store.Create("../scans/brain.png", "image/png", bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "brain.png", p.Name)
	assert.Equal(t, int64(len(data)), p.Size)
	assert.Equal(t, 640, p.Width)
	assert.Equal(t, 480, p.Height)

	stored, err := store.ReadAll(p.Id)
	require.NoError(t, err)
	assert.Equal(t, data, stored)

	thumbPath, err := store.ThumbnailPath(p.Id)
	require.NoError(t, err)
	f, err := os.Open(thumbPath)
	require.NoError(t, err)
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.LessOrEqual(t, cfg.Width, ThumbnailWidth)
	assert.LessOrEqual(t, cfg.Height, ThumbnailHeight)
}

func TestCreateRejectsNonImages(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Create("notes.txt", "text/plain", strings.NewReader("hello"))
	assert.Equal(t, ErrNotAnImage, err)

	_, err = store.Create("fake.png", "image/png", strings.NewReader("not really a png"))
	assert.Equal(t, ErrNotAnImage, err)

	entries, err := ioutil.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCreateRejectsOversizedUploads(t *testing.T) {
	store, err := NewStore(t.TempDir(), 16)
	require.NoError(t, err)

	_, err = store.Create("big.png", "image/png", bytes.NewReader(pngBytes(t, 64, 64)))
	assert.Equal(t, ErrTooLarge, err)
}

func TestReleaseRemovesFiles(t *testing.T) {
	store := newTestStore(t)
	p, err := store.Create("brain.png", "image/png", bytes.NewReader(pngBytes(t, 32, 32)))
	require.NoError(t, err)

	require.NoError(t, store.Release(p.Id))

	_, err = store.Open(p.Id)
	assert.Equal(t, ErrNotFound, err)
	_, err = store.ThumbnailPath(p.Id)
	assert.Equal(t, ErrNotFound, err)

	// releasing twice is fine
	assert.NoError(t, store.Release(p.Id))
}

func TestOpenRejectsPathsOutsideTheStore(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Open("../../etc/passwd")
	assert.Equal(t, ErrNotFound, err)
	assert.NoError(t, store.Release("../../etc/passwd"))
}

func TestSweepRemovesOnlyStalePreviews(t *testing.T) {
	store := newTestStore(t)
	stale, err := store.Create("old.png", "image/png", bytes.NewReader(pngBytes(t, 32, 32)))
	require.NoError(t, err)
	fresh, err := store.Create("new.png", "image/png", bytes.NewReader(pngBytes(t, 32, 32)))
	require.NoError(t, err)

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(store.Dir(), stale.Id), old, old))

	removed, err := store.Sweep(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.Open(stale.Id)
	assert.Equal(t, ErrNotFound, err)
	_, err = store.Open(fresh.Id)
	assert.NoError(t, err)
}
