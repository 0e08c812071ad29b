package main

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"salesboard/internal/blob"
	"salesboard/internal/config"
	"salesboard/internal/process"
	"salesboard/internal/queue"
	"salesboard/models"
)

const sampleCSV = "Product,Sales,Quantity,Discount,Profit\nA,100,2,0.1,20\nB,50,5,0.2,10\n"

// helper to perform requests with auth token
func performRequest(r http.Handler, method, path string, body io.Reader, token string, contentType string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

// setupTestServer wires the whole stack against sqlite and an in-memory blob
// store so the flow runs without Postgres or a disk.
func setupTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var err error
	cfg, err = config.Load("")
	require.NoError(t, err)
	logger = zerolog.Nop()
	jwtSecret = []byte("test-secret")

	db, err = gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Upload{}, &models.Metrics{}))

	blobStore = blob.NewMem()
	proc := &process.Processor{DB: db, Blob: blobStore, Log: logger}
	dispatcher = queue.New(proc, 1, 16, 0, logger)
	t.Cleanup(func() { dispatcher.StopAndWait() })

	r := gin.New()
	setupRoutes(r)
	return r
}

func multipartFile(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	w, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = w.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func loginTestUser(t *testing.T, r *gin.Engine) string {
	t.Helper()
	regBody, _ := json.Marshal(map[string]string{"username": "user1", "password": "pass123"})
	resp := performRequest(r, http.MethodPost, "/register", bytes.NewBuffer(regBody), "", "application/json")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = performRequest(r, http.MethodPost, "/login", bytes.NewBuffer(regBody), "", "application/json")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var loginResp map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &loginResp))
	token, _ := loginResp["token"].(string)
	require.NotEmpty(t, token)
	return token
}

// pollCalculations retries /api/calculations until the async processing
// lands (or the deadline passes) and returns the final response.
func pollCalculations(r *gin.Engine, deadline time.Duration) *httptest.ResponseRecorder {
	var resp *httptest.ResponseRecorder
	stop := time.Now().Add(deadline)
	for {
		resp = performRequest(r, http.MethodGet, "/api/calculations", nil, "", "")
		if resp.Code == http.StatusOK || time.Now().After(stop) {
			return resp
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestFullFlow(t *testing.T) {
	r := setupTestServer(t)

	// 1. No uploads yet: not-found, not not-ready
	resp := performRequest(r, http.MethodGet, "/api/calculations", nil, "", "")
	require.Equal(t, http.StatusNotFound, resp.Code)
	resp = performRequest(r, http.MethodGet, "/results", nil, "", "")
	require.Equal(t, http.StatusNotFound, resp.Code)

	// 2. Register + login
	token := loginTestUser(t, r)

	// 3. Upload without token is rejected
	buf, ct := multipartFile(t, "sales.csv", []byte(sampleCSV))
	resp = performRequest(r, http.MethodPost, "/uploads", buf, "", ct)
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	// 4. A .txt upload is rejected before anything is stored or dispatched
	buf, ct = multipartFile(t, "sales.txt", []byte(sampleCSV))
	resp = performRequest(r, http.MethodPost, "/uploads", buf, token, ct)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	var count int64
	db.Model(&models.Upload{}).Count(&count)
	require.Zero(t, count)

	// 5. Upload the sample CSV
	buf, ct = multipartFile(t, "sales.csv", []byte(sampleCSV))
	resp = performRequest(r, http.MethodPost, "/uploads", buf, token, ct)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var ack map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &ack))
	require.NotEmpty(t, ack["task_id"])
	require.NotEmpty(t, ack["upload_id"])

	// 6. Metrics become available asynchronously
	resp = pollCalculations(r, 5*time.Second)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var m map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &m))
	assert.InDelta(t, 150.0, m["total_revenue"], 1e-9)
	assert.InDelta(t, 0.15, m["avg_discount"], 1e-9)
	assert.Equal(t, "B", m["best_selling_product"])
	assert.Equal(t, "A", m["most_profitable_product"])
	assert.Equal(t, "B", m["max_discount_product"])

	// 7. Results view returns rows, columns and the processed flag
	resp = performRequest(r, http.MethodGet, "/results", nil, "", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var results struct {
		Columns []string            `json:"columns"`
		Data    []map[string]string `json:"data"`
		Upload  struct {
			Processed bool `json:"processed"`
		} `json:"upload"`
		Metrics *map[string]any `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &results))
	assert.Equal(t, []string{"Product", "Sales", "Quantity", "Discount", "Profit"}, results.Columns)
	assert.Len(t, results.Data, 2)
	assert.True(t, results.Upload.Processed)
	assert.NotNil(t, results.Metrics)

	// 8. Search: empty query returns all rows in stored order
	resp = performRequest(r, http.MethodGet, "/api/search", nil, "", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var search struct {
		Data         []map[string]string `json:"data"`
		TotalRecords int                 `json:"total_records"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &search))
	assert.Equal(t, 2, search.TotalRecords)
	assert.Equal(t, "A", search.Data[0]["Product"])

	// 9. Case-insensitive substring match
	resp = performRequest(r, http.MethodGet, "/api/search?search=a", nil, "", "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &search))
	assert.Equal(t, 1, search.TotalRecords)

	// 10. No match is a success with zero rows, not an error
	resp = performRequest(r, http.MethodGet, "/api/search?search=zzz", nil, "", "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &search))
	assert.Equal(t, 0, search.TotalRecords)
	assert.NotNil(t, search.Data)
}

func TestCalculationsNotReady(t *testing.T) {
	r := setupTestServer(t)
	token := loginTestUser(t, r)

	// upload a structurally broken file: processing fails, metrics never land
	buf, ct := multipartFile(t, "broken.csv", []byte("Product,Sales,Quantity,Discount\nA,100,2,0.1\n"))
	resp := performRequest(r, http.MethodPost, "/uploads", buf, token, ct)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	dispatcher.StopAndWait() // drain the queue so the failure is recorded

	resp = performRequest(r, http.MethodGet, "/api/calculations", nil, "", "")
	assert.Equal(t, http.StatusAccepted, resp.Code)

	// the failure is visible on the upload record through the results view
	resp = performRequest(r, http.MethodGet, "/results", nil, "", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var results struct {
		Upload struct {
			Processed    bool   `json:"processed"`
			Failed       bool   `json:"failed"`
			FailedReason string `json:"failed_reason"`
		} `json:"upload"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &results))
	assert.False(t, results.Upload.Processed)
	assert.True(t, results.Upload.Failed)
	assert.Contains(t, results.Upload.FailedReason, "Profit")
}

func TestResultsSurfacesMetricsLookupFailure(t *testing.T) {
	r := setupTestServer(t)
	token := loginTestUser(t, r)

	buf, ct := multipartFile(t, "sales.csv", []byte(sampleCSV))
	resp := performRequest(r, http.MethodPost, "/uploads", buf, token, ct)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	dispatcher.StopAndWait()

	// break the metrics lookup underneath the handler: the response must say
	// the query failed, not pretend the metrics simply aren't ready
	require.NoError(t, db.Migrator().DropTable(&models.Metrics{}))

	resp = performRequest(r, http.MethodGet, "/results", nil, "", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "query failed", body["metrics_error"])
	assert.NotContains(t, body, "metrics")
}

func TestRegisterDuplicateUser(t *testing.T) {
	r := setupTestServer(t)

	body, _ := json.Marshal(map[string]string{"username": "dup", "password": "pass123"})
	resp := performRequest(r, http.MethodPost, "/register", bytes.NewBuffer(body), "", "application/json")
	require.Equal(t, http.StatusOK, resp.Code)
	resp = performRequest(r, http.MethodPost, "/register", bytes.NewBuffer(body), "", "application/json")
	assert.Equal(t, http.StatusConflict, resp.Code)
}
