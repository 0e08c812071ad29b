package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"salesboard/models"
	"salesboard/pkg/table"
)

func setupRoutes(r *gin.Engine) {
	r.POST("/register", registerHandler)
	r.POST("/login", loginHandler)
	authGroup := r.Group("")
	authGroup.Use(jwtAuthMiddleware())
	authGroup.POST("/uploads", uploadCSVHandler)
	// query views are public: the data is global, not per-user
	r.GET("/results", resultsHandler)
	r.GET("/api/search", searchHandler)
	r.GET("/api/calculations", calculationsHandler)
}

// latestUpload resolves the most recently created upload. Callers treat
// gorm.ErrRecordNotFound as "no uploads exist yet".
func latestUpload(db *gorm.DB) (*models.Upload, error) {
	var up models.Upload
	if err := db.Order("created_at desc").First(&up).Error; err != nil {
		return nil, err
	}
	return &up, nil
}

func readUploadTable(up *models.Upload) (*table.Table, error) {
	f, err := blobStore.Open(up.StorePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return table.Read(f)
}

// uploadCSVHandler accepts a multipart CSV upload, stores it and queues the
// metrics computation. The response acknowledges immediately; callers poll
// /api/calculations for the result.
func uploadCSVHandler(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"file": "file missing"}})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"file": "unable to read the CSV file"}})
		return
	}
	defer f.Close()

	if errs := validateCSVUpload(fh.Filename, fh.Size, f, cfg.Upload.MaxSizeBytes); errs != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
		return
	}

	key, err := blobStore.Save(fh.Filename, f)
	if err != nil {
		logger.Error().Err(err).Str("file", fh.Filename).Msg("blob save failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}

	up := models.Upload{FileName: fh.Filename, StorePath: key}
	if err := db.Create(&up).Error; err != nil {
		// keep storage and records consistent: no record, no file
		_ = blobStore.Delete(key)
		logger.Error().Err(err).Str("file", fh.Filename).Msg("upload record create failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db save failed"})
		return
	}

	taskID := dispatcher.Dispatch(up.ID)
	c.JSON(http.StatusOK, gin.H{
		"message":   "file uploaded successfully",
		"task_id":   taskID,
		"upload_id": up.ID,
	})
}

// resultsHandler returns the latest upload's raw rows, columns and metrics
// (when ready). A parse error is surfaced inline with empty rows instead of
// failing the whole response.
func resultsHandler(c *gin.Context) {
	up, err := latestUpload(db)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no uploads found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	resp := gin.H{"upload": up}
	var m models.Metrics
	switch err := db.First(&m, "upload_id = ?", up.ID).Error; {
	case err == nil:
		resp["metrics"] = m
	case !errors.Is(err, gorm.ErrRecordNotFound):
		// a broken lookup is not the same as "not computed yet"
		logger.Error().Err(err).Stringer("upload_id", up.ID).Msg("metrics lookup failed")
		resp["metrics_error"] = "query failed"
	}

	t, err := readUploadTable(up)
	if err != nil {
		resp["error"] = err.Error()
		resp["columns"] = []string{}
		resp["data"] = []map[string]string{}
	} else {
		resp["columns"] = t.Columns
		resp["data"] = t.Records()
	}
	c.JSON(http.StatusOK, resp)
}

// searchHandler filters the latest upload's rows by a case-insensitive
// substring match on the product name. An empty query returns every row.
func searchHandler(c *gin.Context) {
	query := strings.TrimSpace(c.Query("search"))

	up, err := latestUpload(db)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no recent uploads found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	t, err := readUploadTable(up)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	filtered := t.Filter(query)
	c.JSON(http.StatusOK, gin.H{
		"data":          filtered.Records(),
		"total_records": len(filtered.Rows),
	})
}

// calculationsHandler returns the computed metrics for the latest upload.
// "no upload at all" and "upload exists but metrics not ready" are distinct
// conditions with distinct responses.
func calculationsHandler(c *gin.Context) {
	up, err := latestUpload(db)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no uploads found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	var m models.Metrics
	if err := db.First(&m, "upload_id = ?", up.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusAccepted, gin.H{"error": "calculations not completed yet"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, m)
}
