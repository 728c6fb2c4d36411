package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"snapgrid/internal/config"
	"snapgrid/internal/models"
	"snapgrid/internal/storage"
	"snapgrid/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestImageService(t *testing.T, maxMB int) (*ImageService, *testutil.ImageRepoStub, string) {
	t.Helper()
	root := t.TempDir()
	repo := testutil.NewImageRepoStub()
	svc := NewImageService(repo, storage.NewLocalStore(root, "/uploads"), &config.Config{ImageMaxUploadSizeMB: maxMB})
	return svc, repo, root
}

func TestImageService_UploadStoresMasterAndDedupes(t *testing.T) {
	t.Parallel()
	svc, repo, root := newTestImageService(t, 1)
	ctx := context.Background()

	content := testutil.TinyPNG(t, 1200, 800)
	img, err := svc.Upload(ctx, UploadImageInput{
		UserID:      42,
		Filename:    "sunset.png",
		ContentType: "image/png",
		Content:     content,
	})
	require.NoError(t, err)
	require.NotZero(t, img.ID)
	require.Len(t, img.Hash, 64)
	assert.Equal(t, "image/jpeg", img.MimeType)
	assert.Equal(t, 1200, img.Width)
	assert.Equal(t, 800, img.Height)
	assert.Equal(t, "/uploads/"+img.Hash+"/master.jpg", img.URL)
	assert.Equal(t, "/uploads/"+img.Hash+"/master.webp", img.WebPURL)

	for _, name := range []string{"master.jpg", "master.webp"} {
		_, statErr := os.Stat(filepath.Join(root, img.Hash, name))
		assert.NoError(t, statErr, name)
	}

	again, err := svc.Upload(ctx, UploadImageInput{UserID: 42, Filename: "copy.png", ContentType: "image/png", Content: content})
	require.NoError(t, err)
	assert.Equal(t, img.ID, again.ID)
	assert.Equal(t, 1, repo.Len())

	other, err := svc.Upload(ctx, UploadImageInput{UserID: 7, Filename: "sunset.png", ContentType: "image/png", Content: content})
	require.NoError(t, err)
	assert.NotEqual(t, img.Hash, other.Hash)
}

func TestImageService_DownscalesLongEdge(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestImageService(t, 10)

	img, err := svc.Upload(context.Background(), UploadImageInput{
		UserID:  3,
		Content: testutil.TinyPNG(t, 4096, 512),
	})
	require.NoError(t, err)
	assert.Equal(t, MaxImageEdge, img.Width)
	assert.Equal(t, 256, img.Height)
}

func TestImageService_FlattensTransparency(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestImageService(t, 10)

	img, err := svc.Upload(context.Background(), UploadImageInput{
		UserID:      11,
		ContentType: "image/png",
		Content:     transparentPNG(t, 64, 64),
	})
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.MimeType)
	assert.Equal(t, ".jpg", filepath.Ext(img.JPEGKey))
}

func TestImageService_UploadValidation(t *testing.T) {
	t.Parallel()
	svc, repo, _ := newTestImageService(t, 1)
	ctx := context.Background()

	tests := []struct {
		name string
		in   UploadImageInput
	}{
		{"missing user", UploadImageInput{Content: testutil.TinyPNG(t, 4, 4)}},
		{"empty body", UploadImageInput{UserID: 1}},
		{"not an image", UploadImageInput{UserID: 1, ContentType: "text/plain", Content: []byte("not an image")}},
		{"too large", UploadImageInput{UserID: 1, Content: bytes.Repeat([]byte{'a'}, 2*1024*1024)}},
		{"type mismatch", UploadImageInput{UserID: 1, ContentType: "image/gif", Content: testutil.TinyPNG(t, 4, 4)}},
	}
	for _, tt := range tests {
		_, err := svc.Upload(ctx, tt.in)
		assert.Truef(t, models.IsCode(err, models.CodeValidation), "%s: got %v", tt.name, err)
	}
	assert.Zero(t, repo.Len())
}

func transparentPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			// #nosec G115: modulo 255 is safe for uint8
			img.SetRGBA(x, y, color.RGBA{R: 255, A: uint8((x + y) % 255)})
		}
	}
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode transparent png: %v", err)
	}
	return buf.Bytes()
}
