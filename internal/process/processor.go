// Package process runs the asynchronous metrics computation for stored
// uploads: resolve the record, read the file, calculate, persist.
package process

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"salesboard/internal/blob"
	"salesboard/models"
	"salesboard/pkg/table"
)

// Status values reported in a Result.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the structured outcome of one processing attempt. Runs are
// detached from any caller, so failures are reported here (and on the upload
// record) instead of propagated.
type Result struct {
	Status   string    `json:"status"`
	UploadID uuid.UUID `json:"upload_id"`
	Message  string    `json:"message,omitempty"`
	// Retryable marks transient failures (storage, database). Structural CSV
	// errors are final until a new file is uploaded.
	Retryable bool `json:"-"`
}

// Processor loads a stored upload, computes its metrics and persists them.
type Processor struct {
	DB   *gorm.DB
	Blob *blob.Store
	Log  zerolog.Logger
}

// Run executes one processing attempt. It is idempotent: rerunning for the
// same unchanged upload rewrites the identical metrics. Nothing escapes; even
// panics become an error Result so the worker stays alive.
func (p *Processor) Run(ctx context.Context, uploadID uuid.UUID) (res Result) {
	res = Result{Status: StatusError, UploadID: uploadID}
	defer func() {
		if r := recover(); r != nil {
			res = Result{Status: StatusError, UploadID: uploadID, Message: fmt.Sprintf("panic: %v", r)}
			p.Log.Error().Stringer("upload_id", uploadID).Str("panic", fmt.Sprint(r)).Msg("processing panicked")
		}
	}()

	var up models.Upload
	if err := p.DB.WithContext(ctx).First(&up, "id = ?", uploadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// terminal: the record is gone, retrying cannot help
			res.Message = "upload not found"
			return res
		}
		res.Message = fmt.Sprintf("load upload record: %v", err)
		res.Retryable = true
		return res
	}

	f, err := p.Blob.Open(up.StorePath)
	if err != nil {
		return p.fail(ctx, &up, fmt.Errorf("open stored file: %w", err), false)
	}
	t, err := table.Read(f)
	f.Close()
	if err != nil {
		return p.fail(ctx, &up, fmt.Errorf("parse csv: %w", err), false)
	}

	m, err := table.Calculate(t)
	if err != nil {
		return p.fail(ctx, &up, err, false)
	}

	row := models.Metrics{
		UploadID:              up.ID,
		TotalRevenue:          m.TotalRevenue,
		AvgDiscount:           m.AvgDiscount,
		BestSellingProduct:    m.BestSellingProduct,
		MostProfitableProduct: m.MostProfitableProduct,
		MaxDiscountProduct:    m.MaxDiscountProduct,
	}
	// Create-or-overwrite in one statement: a concurrent run can never leave
	// a partial merge, and the last writer wins.
	if err := p.DB.WithContext(ctx).Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "upload_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_revenue", "avg_discount", "best_selling_product",
			"most_profitable_product", "max_discount_product", "calculated_at",
		}),
	}).Create(&row).Error; err != nil {
		res.Message = fmt.Sprintf("persist metrics: %v", err)
		res.Retryable = true
		return res
	}

	if err := p.DB.WithContext(ctx).Model(&models.Upload{}).Where("id = ?", up.ID).
		Updates(map[string]any{"processed": true, "failed": false, "failed_reason": ""}).Error; err != nil {
		// Metrics exist but the flag flip failed: degraded, reported as a
		// failure so the dispatcher retries rather than masking it.
		res.Message = fmt.Sprintf("mark upload processed: %v", err)
		res.Retryable = true
		return res
	}

	p.Log.Info().Stringer("upload_id", up.ID).Str("file", up.FileName).Msg("metrics computed")
	return Result{Status: StatusSuccess, UploadID: up.ID}
}

// fail records the failure on the upload record so the outcome of a detached
// run stays visible to operators, then reports it. The upload stays
// unprocessed and the file is kept for inspection.
func (p *Processor) fail(ctx context.Context, up *models.Upload, err error, retryable bool) Result {
	reason := err.Error()
	if len(reason) > 255 {
		reason = reason[:255]
	}
	if uerr := p.DB.WithContext(ctx).Model(&models.Upload{}).Where("id = ?", up.ID).
		Updates(map[string]any{"failed": true, "failed_reason": reason}).Error; uerr != nil {
		p.Log.Warn().Stringer("upload_id", up.ID).Err(uerr).Msg("could not record processing failure")
	}
	p.Log.Warn().Stringer("upload_id", up.ID).Str("file", up.FileName).Err(err).Msg("processing failed")
	return Result{Status: StatusError, UploadID: up.ID, Message: err.Error(), Retryable: retryable}
}
