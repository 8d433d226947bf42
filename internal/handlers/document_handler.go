package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsa/internal/common"
	"github.com/ternarybob/responsa/internal/interfaces"
	"github.com/ternarybob/responsa/internal/models"
)

// DocumentHandler manages the document catalog: file uploads, URL
// ingestion, listing, and deletion.
type DocumentHandler struct {
	ingestService interfaces.IngestService
	extractor     interfaces.ExtractorService
	scraper       interfaces.ScraperService
	index         interfaces.VectorIndex
	fileTimeout   time.Duration
	scrapeTimeout time.Duration
	maxUploadSize int64
	logger        arbor.ILogger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(
	ingestService interfaces.IngestService,
	extractor interfaces.ExtractorService,
	scraper interfaces.ScraperService,
	index interfaces.VectorIndex,
	cfg *common.IngestConfig,
	logger arbor.ILogger,
) *DocumentHandler {
	fileTimeout, err := time.ParseDuration(cfg.FileTimeout)
	if err != nil || fileTimeout <= 0 {
		fileTimeout = 60 * time.Second
	}
	scrapeTimeout, err := time.ParseDuration(cfg.ScrapeTimeout)
	if err != nil || scrapeTimeout <= 0 {
		scrapeTimeout = 300 * time.Second
	}

	return &DocumentHandler{
		ingestService: ingestService,
		extractor:     extractor,
		scraper:       scraper,
		index:         index,
		fileTimeout:   fileTimeout,
		scrapeTimeout: scrapeTimeout,
		maxUploadSize: cfg.MaxDocumentBytes,
		logger:        logger,
	}
}

// UploadHandler handles POST /api/documents/upload. The multipart "file"
// field is extracted to text and ingested under the uploaded filename.
func (h *DocumentHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	// Leave headroom for the multipart framing around the capped payload.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+(1<<20))

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadSize {
		WriteError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds maximum size of %d bytes", h.maxUploadSize))
		return
	}

	sourceName := filepath.Base(header.Filename)
	if sourceName == "" || sourceName == "." {
		WriteError(w, http.StatusBadRequest, "uploaded file has no name")
		return
	}

	// The extractor dispatches on the file extension, so the temp copy
	// keeps the original one.
	tempFile, err := os.CreateTemp("", "upload-*"+filepath.Ext(sourceName))
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to create temp file for upload")
		WriteError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	defer os.Remove(tempFile.Name())

	if _, err := io.Copy(tempFile, file); err != nil {
		tempFile.Close()
		h.logger.Error().Err(err).Msg("Failed to write uploaded file")
		WriteError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	tempFile.Close()

	ctx, cancel := context.WithTimeout(r.Context(), h.fileTimeout)
	defer cancel()

	text, err := h.extractor.ExtractFile(ctx, tempFile.Name())
	if err != nil {
		h.logger.Warn().Err(err).Str("file", sourceName).Msg("Text extraction failed")
		WriteError(w, http.StatusUnprocessableEntity, "failed to extract text: "+err.Error())
		return
	}

	result, err := h.ingestService.Ingest(ctx, text, sourceName)
	if err != nil {
		h.writeIngestError(w, sourceName, err)
		return
	}

	h.logger.Info().
		Str("source", result.Source).
		Int("chunks", result.ChunkCount).
		Msg("Document uploaded and ingested")

	WriteJSON(w, http.StatusOK, result)
}

type urlIngestRequest struct {
	URL      string `json:"url"`
	Deep     bool   `json:"deep"`
	MaxPages int    `json:"max_pages"`
}

// URLHandler handles POST /api/documents/url. A single page or, with
// deep=true, a same-domain crawl is scraped and ingested page by page.
func (h *DocumentHandler) URLHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req urlIngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.URL == "" {
		WriteError(w, http.StatusBadRequest, "url field is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.scrapeTimeout)
	defer cancel()

	var pages []*interfaces.ScrapedPage
	if req.Deep {
		scraped, err := h.scraper.DeepScrape(ctx, req.URL, req.MaxPages)
		if err != nil {
			h.logger.Warn().Err(err).Str("url", req.URL).Msg("Deep scrape failed")
			WriteError(w, http.StatusBadGateway, "failed to scrape URL: "+err.Error())
			return
		}
		pages = scraped
	} else {
		page, err := h.scraper.ScrapePage(ctx, req.URL)
		if err != nil {
			h.logger.Warn().Err(err).Str("url", req.URL).Msg("Scrape failed")
			WriteError(w, http.StatusBadGateway, "failed to scrape URL: "+err.Error())
			return
		}
		pages = []*interfaces.ScrapedPage{page}
	}

	results := make([]*models.IngestResult, 0, len(pages))
	for _, page := range pages {
		if strings.TrimSpace(page.Markdown) == "" {
			h.logger.Debug().Str("url", page.URL).Msg("Skipping page with no content")
			continue
		}
		result, err := h.ingestService.Ingest(ctx, page.Markdown, page.URL)
		if err != nil {
			h.logger.Warn().Err(err).Str("url", page.URL).Msg("Page ingestion failed")
			continue
		}
		results = append(results, result)
	}

	if len(results) == 0 {
		WriteError(w, http.StatusUnprocessableEntity, "no pages could be ingested")
		return
	}

	h.logger.Info().
		Str("url", req.URL).
		Int("pages", len(results)).
		Msg("URL content ingested")

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"pages":   len(results),
		"results": results,
	})
}

// ListHandler handles GET /api/documents, returning the source catalog
// with per-source chunk counts.
func (h *DocumentHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	counts := h.index.CountBySource()
	docs := make([]models.DocumentInfo, 0, len(counts))
	for source, count := range counts {
		docs = append(docs, models.DocumentInfo{Source: source, ChunkCount: count})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Source < docs[j].Source })

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"documents":    docs,
		"total_chunks": h.index.Count(),
	})
}

// DeleteHandler handles DELETE /api/documents/{source}. The source name is
// the URL-escaped trailing path segment.
func (h *DocumentHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}

	escaped := strings.TrimPrefix(r.URL.Path, "/api/documents/")
	source, err := url.PathUnescape(escaped)
	if err != nil || source == "" {
		WriteError(w, http.StatusBadRequest, "document source is required")
		return
	}

	removed, err := h.index.DeleteBySource(r.Context(), source)
	if err != nil {
		h.logger.Error().Err(err).Str("source", source).Msg("Failed to delete document")
		WriteError(w, http.StatusInternalServerError, "failed to delete document: "+err.Error())
		return
	}
	if removed == 0 {
		WriteError(w, http.StatusNotFound, "document not found: "+source)
		return
	}

	h.logger.Info().Str("source", source).Int("chunks_removed", removed).Msg("Document deleted")

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"source":         source,
		"chunks_removed": removed,
	})
}

// writeIngestError maps ingestion failures onto HTTP status codes.
func (h *DocumentHandler) writeIngestError(w http.ResponseWriter, source string, err error) {
	h.logger.Warn().Err(err).Str("source", source).Msg("Ingestion failed")

	switch {
	case errors.Is(err, models.ErrPayloadTooLarge):
		WriteError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, models.ErrRetrievalUnavailable):
		WriteError(w, http.StatusServiceUnavailable, err.Error())
	default:
		WriteError(w, http.StatusUnprocessableEntity, err.Error())
	}
}
