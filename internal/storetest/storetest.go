// File: internal/storetest/storetest.go

// Package storetest opens throwaway, fully migrated SQLite databases for tests.
package storetest

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"
	"time"

	"deals_marketplace/internal/app"
	"deals_marketplace/internal/config"
	"deals_marketplace/internal/filestorage"
	"deals_marketplace/internal/platform/database"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Config returns a configuration rooted in a fresh temp dir.
func Config(t testing.TB) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		AppEnv:                   "test",
		DBDriver:                 "sqlite",
		DBPath:                   filepath.Join(dir, "deals.db"),
		LogLevel:                 "error",
		LogFormat:                "console",
		ProductsPerPage:          16,
		UsersPerPage:             10,
		ProductRetentionDays:     10,
		ProductExpiryJobSchedule: "@every 1h",
		UploadDir:                filepath.Join(dir, "uploads"),
		DefaultImagePath:         "/img/default.png",
		ImageMaxDimension:        800,
		ImageMaxPixels:           4_000_000,
		KafkaTopic:               "product_events",
	}
}

// Open connects to cfg's database and migrates it. The connection is closed
// when the test ends.
func Open(t testing.TB, cfg *config.Config) *gorm.DB {
	t.Helper()
	db, err := database.NewGORM(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseGORMDB(db, zap.NewNop()) })
	require.NoError(t, app.Migrate(db))
	return db
}

// Clock is a settable clock for retention tests.
type Clock struct {
	now time.Time
}

// NewClock starts a clock at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t.UTC().Truncate(time.Microsecond)}
}

func (c *Clock) Now() time.Time { return c.now }

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// PNG returns an upload holding a w x h PNG.
func PNG(t testing.TB, filename string, w, h int) *filestorage.Upload {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{G: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &filestorage.Upload{Filename: filename, Content: &buf}
}
