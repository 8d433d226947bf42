package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsa/internal/common"
	"github.com/ternarybob/responsa/internal/interfaces"
	"github.com/ternarybob/responsa/internal/models"
	"github.com/ternarybob/responsa/internal/services/index"
)

type stubIngest struct {
	index    interfaces.VectorIndex
	lastText string
	err      error
}

func (s *stubIngest) Ingest(ctx context.Context, rawText, sourceName string) (*models.IngestResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.lastText = rawText
	if s.index != nil {
		chunk := models.Chunk{ID: sourceName + "-1", Source: sourceName, Text: rawText, Embedding: []float32{1}}
		if err := s.index.AddDocuments(ctx, []models.Chunk{chunk}); err != nil {
			return nil, err
		}
	}
	return &models.IngestResult{Source: sourceName, ChunkCount: 1}, nil
}

type stubScraper struct {
	pages []*interfaces.ScrapedPage
	err   error
}

func (s *stubScraper) ScrapePage(ctx context.Context, pageURL string) (*interfaces.ScrapedPage, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.pages[0], nil
}

func (s *stubScraper) DeepScrape(ctx context.Context, rootURL string, maxPages int) ([]*interfaces.ScrapedPage, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.pages, nil
}

type passthroughExtractor struct{}

func (passthroughExtractor) ExtractFile(ctx context.Context, path string) (string, error) {
	if filepath.Ext(path) == ".pptx" {
		return "", fmt.Errorf("unsupported file type")
	}
	return "extracted text from " + filepath.Base(path), nil
}

func newTestDocumentHandler(t *testing.T, ingestSvc interfaces.IngestService, scraperSvc interfaces.ScraperService) (*DocumentHandler, *index.Index) {
	t.Helper()

	idx, err := index.New(filepath.Join(t.TempDir(), "index.json"), arbor.NewLogger())
	require.NoError(t, err)

	if ingestSvc == nil {
		ingestSvc = &stubIngest{index: idx}
	}
	if scraperSvc == nil {
		scraperSvc = &stubScraper{}
	}

	cfg := &common.IngestConfig{
		MaxDocumentBytes: 1 << 20,
		FileTimeout:      "5s",
		ScrapeTimeout:    "5s",
	}
	return NewDocumentHandler(ingestSvc, passthroughExtractor{}, scraperSvc, idx, cfg, arbor.NewLogger()), idx
}

func multipartUpload(t *testing.T, filename, content string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestUploadIngestsFile(t *testing.T) {
	h, idx := newTestDocumentHandler(t, nil, nil)

	rec := httptest.NewRecorder()
	h.UploadHandler(rec, multipartUpload(t, "notes.txt", "hello world"))

	require.Equal(t, http.StatusOK, rec.Code)
	var result models.IngestResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "notes.txt", result.Source)
	assert.Equal(t, 1, idx.Count())
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	h, _ := newTestDocumentHandler(t, nil, nil)

	rec := httptest.NewRecorder()
	h.UploadHandler(rec, multipartUpload(t, "deck.pptx", "binary"))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestUploadRequiresFileField(t *testing.T) {
	h, _ := newTestDocumentHandler(t, nil, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", strings.NewReader("no form"))
	h.UploadHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadMapsPayloadTooLarge(t *testing.T) {
	h, _ := newTestDocumentHandler(t, &stubIngest{err: models.ErrPayloadTooLarge}, nil)

	rec := httptest.NewRecorder()
	h.UploadHandler(rec, multipartUpload(t, "big.txt", "x"))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestURLIngestsScrapedPages(t *testing.T) {
	scraperSvc := &stubScraper{pages: []*interfaces.ScrapedPage{
		{URL: "https://example.com/a", Title: "A", Markdown: "page a"},
		{URL: "https://example.com/b", Title: "B", Markdown: "page b"},
	}}
	h, idx := newTestDocumentHandler(t, nil, scraperSvc)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/documents/url",
		strings.NewReader(`{"url":"https://example.com","deep":true}`))
	h.URLHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, idx.Count())
}

func TestURLRequiresURLField(t *testing.T) {
	h, _ := newTestDocumentHandler(t, nil, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/documents/url", strings.NewReader(`{}`))
	h.URLHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestURLScrapeFailure(t *testing.T) {
	h, _ := newTestDocumentHandler(t, nil, &stubScraper{err: fmt.Errorf("connection refused")})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/documents/url",
		strings.NewReader(`{"url":"https://unreachable.invalid"}`))
	h.URLHandler(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestListAndDeleteDocuments(t *testing.T) {
	h, idx := newTestDocumentHandler(t, nil, nil)

	require.NoError(t, idx.AddDocuments(context.Background(), []models.Chunk{
		{ID: "1", Source: "b.txt", Text: "x", Embedding: []float32{1}},
		{ID: "2", Source: "a.txt", Text: "y", Embedding: []float32{1}},
	}))

	rec := httptest.NewRecorder()
	h.ListHandler(rec, httptest.NewRequest(http.MethodGet, "/api/documents", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var listResp struct {
		Documents   []models.DocumentInfo `json:"documents"`
		TotalChunks int                   `json:"total_chunks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	require.Len(t, listResp.Documents, 2)
	assert.Equal(t, "a.txt", listResp.Documents[0].Source)
	assert.Equal(t, 2, listResp.TotalChunks)

	rec = httptest.NewRecorder()
	h.DeleteHandler(rec, httptest.NewRequest(http.MethodDelete, "/api/documents/a.txt", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, idx.Count())

	rec = httptest.NewRecorder()
	h.DeleteHandler(rec, httptest.NewRequest(http.MethodDelete, "/api/documents/a.txt", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
