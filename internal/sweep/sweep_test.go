package sweep

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"salesboard/internal/blob"
	"salesboard/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Upload{}, &models.Metrics{}))
	return db
}

func seedUpload(t *testing.T, db *gorm.DB, bs *blob.Store, age time.Duration, processed bool) models.Upload {
	t.Helper()
	key, err := bs.Save("sales.csv", strings.NewReader("Product,Sales\nA,1\n"))
	require.NoError(t, err)
	up := models.Upload{
		FileName:  "sales.csv",
		StorePath: key,
		Processed: processed,
		CreatedAt: time.Now().Add(-age),
	}
	require.NoError(t, db.Create(&up).Error)
	return up
}

func TestSweepRemovesStaleUnprocessed(t *testing.T) {
	db := testDB(t)
	bs := blob.NewMem()

	stale := seedUpload(t, db, bs, 8*24*time.Hour, false)
	fresh := seedUpload(t, db, bs, 2*24*time.Hour, false)
	oldButProcessed := seedUpload(t, db, bs, 30*24*time.Hour, true)

	removed, err := Sweep(db, bs, 7*24*time.Hour, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	var count int64
	db.Model(&models.Upload{}).Where("id = ?", stale.ID).Count(&count)
	assert.Zero(t, count, "stale unprocessed upload must be gone")
	_, err = bs.Open(stale.StorePath)
	assert.Error(t, err, "stale upload's file must be gone")

	db.Model(&models.Upload{}).Where("id = ?", fresh.ID).Count(&count)
	assert.EqualValues(t, 1, count, "fresh upload must be retained")
	db.Model(&models.Upload{}).Where("id = ?", oldButProcessed.ID).Count(&count)
	assert.EqualValues(t, 1, count, "processed upload must be retained regardless of age")
}

func TestSweepNothingStale(t *testing.T) {
	db := testDB(t)
	bs := blob.NewMem()
	seedUpload(t, db, bs, time.Hour, false)

	removed, err := Sweep(db, bs, 7*24*time.Hour, zerolog.Nop())
	require.NoError(t, err)
	assert.Zero(t, removed)
}
