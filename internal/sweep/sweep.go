// Package sweep removes stale unprocessed uploads together with their stored
// files. It has no timer of its own; an external scheduler runs cmd/sweeper.
package sweep

import (
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"salesboard/internal/blob"
	"salesboard/models"
)

// Sweep deletes every upload older than maxAge that is still unprocessed.
// The stored file goes first: if that delete fails the record is kept, so the
// orphaned file stays discoverable instead of silently lost. Returns the
// number of uploads fully removed.
func Sweep(db *gorm.DB, bs *blob.Store, maxAge time.Duration, log zerolog.Logger) (int, error) {
	cutoff := time.Now().Add(-maxAge)

	var stale []models.Upload
	if err := db.Where("created_at < ? AND processed = ?", cutoff, false).Find(&stale).Error; err != nil {
		return 0, err
	}

	removed := 0
	for _, up := range stale {
		if err := bs.Delete(up.StorePath); err != nil {
			log.Warn().Stringer("upload_id", up.ID).Str("store_path", up.StorePath).Err(err).
				Msg("keeping upload record, stored file could not be deleted")
			continue
		}
		if err := db.Delete(&models.Upload{}, "id = ?", up.ID).Error; err != nil {
			log.Warn().Stringer("upload_id", up.ID).Err(err).Msg("upload record delete failed")
			continue
		}
		removed++
	}

	if removed > 0 {
		log.Info().Int("removed", removed).Time("cutoff", cutoff).Msg("cleaned old uploads")
	}
	return removed, nil
}
