package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"

	// Register decoders for the accepted upload formats.
	_ "image/gif"
	_ "image/png"

	"snapgrid/internal/config"
	"snapgrid/internal/models"
	"snapgrid/internal/observability"
	"snapgrid/internal/repository"
	"snapgrid/internal/storage"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	DefaultImageMaxUploadSizeMB = 10
	MaxImageEdge                = 2048
	JPEGQuality                 = 82
	WebPQuality                 = 70
)

type UploadImageInput struct {
	UserID      uint
	Filename    string
	ContentType string
	Content     []byte
}

// ImageService validates, normalizes, and stores uploaded images. Every
// upload is re-encoded as a JPEG master plus a WebP copy, downscaled so the
// longer edge is at most MaxImageEdge.
type ImageService struct {
	repo               repository.ImageRepository
	store              storage.Store
	maxUploadSizeBytes int64
}

func NewImageService(repo repository.ImageRepository, store storage.Store, cfg *config.Config) *ImageService {
	maxUploadSizeMB := DefaultImageMaxUploadSizeMB
	if cfg != nil && cfg.ImageMaxUploadSizeMB > 0 {
		maxUploadSizeMB = cfg.ImageMaxUploadSizeMB
	}
	return &ImageService{
		repo:               repo,
		store:              store,
		maxUploadSizeBytes: int64(maxUploadSizeMB) * 1024 * 1024,
	}
}

func (s *ImageService) Upload(ctx context.Context, in UploadImageInput) (img *models.Image, err error) {
	ctx, span := observability.StartSpan(ctx, "image", "upload")
	defer func() { span.End(err) }()

	if in.UserID == 0 {
		return nil, models.NewValidationError("Invalid user")
	}
	if len(in.Content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}

	if !isAllowedImageMIME(http.DetectContentType(in.Content)) {
		return nil, models.NewValidationError("Invalid image type")
	}

	decoded, format, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	sourceMime := decodedFormatToMime(format)
	if sourceMime == "" {
		return nil, models.NewValidationError("Unsupported image format")
	}
	if provided := normalizeContentType(in.ContentType); strings.HasPrefix(provided, "image/") && !isMatchingContentType(provided, sourceMime) {
		return nil, models.NewValidationError("Image content type mismatch")
	}

	master := resizeToFit(decoded, MaxImageEdge)
	masterJPEG, err := encodeJPEG(master)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	hash := contentHash(in.UserID, masterJPEG)
	existing, err := s.repo.GetByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.withURLs(existing), nil
	}

	masterWebP, err := encodeWebP(master)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	jpegKey := path.Join(hash, "master.jpg")
	webpKey := path.Join(hash, "master.webp")
	if err := s.store.Put(ctx, jpegKey, masterJPEG); err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := s.store.Put(ctx, webpKey, masterWebP); err != nil {
		s.cleanup(ctx, jpegKey)
		return nil, models.NewInternalError(err)
	}

	bounds := master.Bounds()
	record := &models.Image{
		Hash:             hash,
		UserID:           in.UserID,
		OriginalFilename: in.Filename,
		MimeType:         "image/jpeg",
		SizeBytes:        int64(len(masterJPEG)),
		Width:            bounds.Dx(),
		Height:           bounds.Dy(),
		JPEGKey:          jpegKey,
		WebPKey:          webpKey,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		if models.IsCode(err, models.CodeConflict) {
			// A concurrent upload of the same bytes won; the files are identical.
			if winner, getErr := s.repo.GetByHash(ctx, hash); getErr == nil && winner != nil {
				return s.withURLs(winner), nil
			}
		}
		s.cleanup(ctx, jpegKey, webpKey)
		return nil, err
	}

	return s.withURLs(record), nil
}

func (s *ImageService) withURLs(img *models.Image) *models.Image {
	img.URL = s.store.URL(img.JPEGKey)
	if img.WebPKey != "" {
		img.WebPURL = s.store.URL(img.WebPKey)
	}
	return img
}

func (s *ImageService) cleanup(ctx context.Context, keys ...string) {
	for _, k := range keys {
		if err := s.store.Delete(ctx, k); err != nil {
			observability.GlobalLogger.WarnContext(ctx, "failed to remove orphaned image file",
				slog.String("key", k), slog.String("error", err.Error()))
		}
	}
}

// resizeToFit scales src down so neither edge exceeds maxEdge. Smaller
// images are returned unchanged.
func resizeToFit(src image.Image, maxEdge int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 || (w <= maxEdge && h <= maxEdge) {
		return src
	}

	scale := float64(maxEdge) / float64(w)
	if hs := float64(maxEdge) / float64(h); hs < scale {
		scale = hs
	}
	newW := max(1, int(float64(w)*scale))
	newH := max(1, int(float64(h)*scale))

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(WebPQuality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isMatchingContentType(provided, detected string) bool {
	if provided == "image/jpg" {
		provided = "image/jpeg"
	}
	return provided == detected
}

func decodedFormatToMime(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return ""
	}
}

// contentHash keys an image by uploader and normalized bytes, so the same
// user uploading the same picture twice gets the first record back.
func contentHash(userID uint, content []byte) string {
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%d:", userID)
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}
