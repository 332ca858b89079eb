// File: internal/filestorage/service.go
package filestorage

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"deals_marketplace/internal/common"
	"deals_marketplace/internal/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

// AllowedExtensions are the image formats accepted on upload.
var AllowedExtensions = map[string]bool{"png": true, "jpg": true, "jpeg": true, "gif": true}

// protectedAssets ship with the seed data and are never deleted.
var protectedAssets = map[string]bool{"example.png": true, "image1.jpg": true, "image2.jpg": true}

// DefaultMaxPixels caps the decoded size of an upload when none is configured.
const DefaultMaxPixels = 40_000_000

// Upload is an uploaded image as received from the caller.
type Upload struct {
	Filename string
	Content  io.Reader
}

// ImageStore validates, downsizes and persists product images.
type ImageStore struct {
	storagePath  string // e.g. "static/uploads"
	publicPrefix string // e.g. "uploads", the form recorded on products
	defaultPath  string
	maxDimension int
	maxPixels    int
	logger       *zap.Logger
}

// StagedImage is a processed upload written beside its final name but not yet
// visible under it. Promote publishes it; Discard drops it.
type StagedImage struct {
	// PublicPath is the path the image will be served under once promoted.
	PublicPath string

	productID int64
	ext       string
	tmpPath   string
}

// NewImageStore creates the store and its directory.
func NewImageStore(cfg *config.Config, logger *zap.Logger) (*ImageStore, error) {
	storagePath := cfg.UploadDir
	if storagePath == "" {
		return nil, fmt.Errorf("storage path cannot be empty")
	}
	if err := os.MkdirAll(storagePath, os.ModePerm); err != nil {
		logger.Error("Failed to create storage path directory", zap.String("path", storagePath), zap.Error(err))
		return nil, fmt.Errorf("failed to create storage path %s: %w", storagePath, err)
	}
	maxPixels := cfg.ImageMaxPixels
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &ImageStore{
		storagePath:  storagePath,
		publicPrefix: filepath.Base(filepath.Clean(storagePath)),
		defaultPath:  cfg.DefaultImagePath,
		maxDimension: cfg.ImageMaxDimension,
		maxPixels:    maxPixels,
		logger:       logger.Named("ImageStore"),
	}, nil
}

// DefaultPath is the asset recorded for products without an image.
func (s *ImageStore) DefaultPath() string { return s.defaultPath }

// Ingest stores upload as the image of productID and returns its public path.
// A nil upload yields the default asset. Re-ingesting overwrites the previous image.
func (s *ImageStore) Ingest(upload *Upload, productID int64) (string, error) {
	staged, err := s.Stage(upload, productID)
	if err != nil {
		return "", err
	}
	if err := s.Promote(staged); err != nil {
		return "", err
	}
	return staged.PublicPath, nil
}

// Stage validates, downsizes and writes upload to a temp file. Nothing under
// the product's final name changes until Promote. A nil upload stages the
// default asset, which needs no promotion.
func (s *ImageStore) Stage(upload *Upload, productID int64) (*StagedImage, error) {
	if upload == nil || upload.Content == nil || upload.Filename == "" {
		return &StagedImage{PublicPath: s.defaultPath}, nil
	}

	ext := Extension(upload.Filename)
	if !AllowedExtensions[ext] {
		return nil, common.ErrValidation.WithDetails(
			fmt.Sprintf("Invalid image type %q. Allowed types are png, jpg, jpeg and gif.", ext))
	}

	img, err := s.decode(upload)
	if err != nil {
		return nil, err
	}
	img = FitWithin(img, s.maxDimension)

	tmpPath, err := s.writeTemp(img, ext)
	if err != nil {
		return nil, common.ErrStorage.Wrap(err)
	}
	name := fmt.Sprintf("product_%d.%s", productID, ext)
	return &StagedImage{
		PublicPath: path.Join(s.publicPrefix, name),
		productID:  productID,
		ext:        ext,
		tmpPath:    tmpPath,
	}, nil
}

// Promote moves a staged image under its final name and removes the
// product's images stored under other extensions.
func (s *ImageStore) Promote(staged *StagedImage) error {
	if staged == nil || staged.tmpPath == "" {
		return nil
	}
	name := fmt.Sprintf("product_%d.%s", staged.productID, staged.ext)
	finalPath := filepath.Join(s.storagePath, name)
	if err := os.Rename(staged.tmpPath, finalPath); err != nil {
		os.Remove(staged.tmpPath)
		staged.tmpPath = ""
		return common.ErrStorage.Wrap(fmt.Errorf("failed to move image into place: %w", err))
	}
	staged.tmpPath = ""
	s.removeSiblings(staged.productID, staged.ext)

	s.logger.Info("Image stored", zap.Int64("productID", staged.productID), zap.String("path", staged.PublicPath))
	return nil
}

// Discard drops a staged image that will not be promoted.
func (s *ImageStore) Discard(staged *StagedImage) {
	if staged == nil || staged.tmpPath == "" {
		return
	}
	if err := os.Remove(staged.tmpPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Failed to remove staged image", zap.String("path", staged.tmpPath), zap.Error(err))
	}
	staged.tmpPath = ""
}

// decode reads the header first and refuses images whose pixel count exceeds
// the configured cap before any pixel buffer is allocated.
func (s *ImageStore) decode(upload *Upload) (image.Image, error) {
	data, err := io.ReadAll(upload.Content)
	if err != nil {
		return nil, common.ErrStorage.Wrap(fmt.Errorf("failed to read upload: %w", err))
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		s.logger.Warn("Rejected undecodable image", zap.String("filename", upload.Filename), zap.Error(err))
		return nil, common.ErrValidation.WithDetails("The uploaded file is not a valid image.").Wrap(err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > int64(s.maxPixels) {
		s.logger.Warn("Rejected oversized image",
			zap.String("filename", upload.Filename),
			zap.Int("width", cfg.Width),
			zap.Int("height", cfg.Height),
		)
		return nil, common.ErrValidation.WithDetails(
			fmt.Sprintf("The image is %dx%d; at most %d pixels are accepted.", cfg.Width, cfg.Height, s.maxPixels))
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		s.logger.Warn("Rejected undecodable image", zap.String("filename", upload.Filename), zap.Error(err))
		return nil, common.ErrValidation.WithDetails("The uploaded file is not a valid image.").Wrap(err)
	}
	return img, nil
}

// writeTemp encodes into a uuid-named hidden file in the storage directory.
func (s *ImageStore) writeTemp(img image.Image, ext string) (string, error) {
	tmpPath := filepath.Join(s.storagePath, "."+uuid.New().String()+".tmp")
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file %s: %w", tmpPath, err)
	}

	if err := encode(f, img, ext); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close file %s: %w", tmpPath, err)
	}
	return tmpPath, nil
}

// removeSiblings deletes images of the same product stored under another extension.
func (s *ImageStore) removeSiblings(productID int64, keepExt string) {
	for ext := range AllowedExtensions {
		if ext == keepExt {
			continue
		}
		p := filepath.Join(s.storagePath, fmt.Sprintf("product_%d.%s", productID, ext))
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("Failed to remove stale image", zap.String("path", p), zap.Error(err))
		}
	}
}

// Delete removes a stored image given its public path.
// The default image, seed assets and missing files are left alone.
func (s *ImageStore) Delete(publicPath string) error {
	if publicPath == "" || publicPath == s.defaultPath {
		return nil
	}

	rel := strings.TrimPrefix(filepath.ToSlash(publicPath), s.publicPrefix+"/")
	cleanRelativePath := filepath.Clean(rel)
	if strings.Contains(cleanRelativePath, "..") || filepath.IsAbs(cleanRelativePath) {
		s.logger.Warn("Attempt to delete file with path traversal", zap.String("path", publicPath))
		return fmt.Errorf("invalid file path for deletion")
	}
	if protectedAssets[filepath.Base(cleanRelativePath)] {
		return nil
	}

	fullPath := filepath.Join(s.storagePath, cleanRelativePath)
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		s.logger.Error("Failed to delete file", zap.String("path", fullPath), zap.Error(err))
		return fmt.Errorf("failed to delete file %s: %w", fullPath, err)
	}
	s.logger.Info("File deleted", zap.String("path", fullPath))
	return nil
}

// Extension returns the lower-cased extension of filename without the dot.
func Extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// FitWithin downscales img to fit a max×max box keeping its aspect ratio.
// Images already inside the box are returned unchanged.
func FitWithin(img image.Image, max int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if max <= 0 || (w <= max && h <= max) {
		return img
	}

	nw, nh := max, max
	if w >= h {
		nh = h * max / w
	} else {
		nw = w * max / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func encode(w io.Writer, img image.Image, ext string) error {
	switch ext {
	case "png":
		return png.Encode(w, img)
	case "gif":
		return gif.Encode(w, img, nil)
	default:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
	}
}
