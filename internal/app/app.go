package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsa/internal/common"
	"github.com/ternarybob/responsa/internal/handlers"
	"github.com/ternarybob/responsa/internal/interfaces"
	"github.com/ternarybob/responsa/internal/services/chat"
	"github.com/ternarybob/responsa/internal/services/chunker"
	"github.com/ternarybob/responsa/internal/services/embeddings"
	"github.com/ternarybob/responsa/internal/services/generation"
	"github.com/ternarybob/responsa/internal/services/index"
	"github.com/ternarybob/responsa/internal/services/ingest"
	"github.com/ternarybob/responsa/internal/services/llm"
	"github.com/ternarybob/responsa/internal/services/pdf"
	"github.com/ternarybob/responsa/internal/services/prompt"
	"github.com/ternarybob/responsa/internal/services/retrieval"
	"github.com/ternarybob/responsa/internal/services/scraper"
	badgerstore "github.com/ternarybob/responsa/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	DB             *badgerstore.BadgerDB
	Index          interfaces.VectorIndex
	SessionStorage interfaces.SessionStorage

	// Core services
	LLMService       interfaces.LLMService
	EmbeddingService interfaces.EmbeddingService
	IngestService    interfaces.IngestService
	Retriever        interfaces.Retriever
	ChatService      interfaces.ChatService
	ScraperService   interfaces.ScraperService
	ExtractorService interfaces.ExtractorService

	// HTTP handlers
	APIHandler      *handlers.APIHandler
	ChatHandler     *handlers.ChatHandler
	WSHandler       *handlers.WebSocketHandler
	DocumentHandler *handlers.DocumentHandler
	SessionHandler  *handlers.SessionHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Int("indexed_chunks", app.Index.Count()).
		Str("default_provider", cfg.LLM.DefaultProvider).
		Msg("Application initialization complete")

	return app, nil
}

// initStorage initializes the session store (Badger) and the vector index
func (a *App) initStorage() error {
	db, err := badgerstore.NewBadgerDB(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	a.DB = db
	a.SessionStorage = badgerstore.NewSessionStorage(db, a.Logger)

	idx, err := index.New(a.Config.Storage.Index.Path, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to load vector index: %w", err)
	}
	a.Index = idx

	a.Logger.Debug().
		Str("badger_path", a.Config.Storage.Badger.Path).
		Str("index_path", a.Config.Storage.Index.Path).
		Int("chunks", idx.Count()).
		Msg("Storage layer initialized")

	return nil
}

// initServices initializes all business services in dependency order
func (a *App) initServices() error {
	router, err := llm.NewRouter(a.Config, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM router: %w", err)
	}
	a.LLMService = router

	if err := a.LLMService.HealthCheck(context.Background()); err != nil {
		// Startup continues; chat requests surface the failure per call.
		a.Logger.Warn().Err(err).Msg("LLM health check failed - verify API keys")
	} else {
		a.Logger.Debug().Msg("LLM service initialized and health check passed")
	}

	a.EmbeddingService = embeddings.NewService(a.LLMService, a.Logger)

	splitter, err := chunker.New(
		a.Config.Ingest.ChunkSize,
		a.Config.Ingest.ChunkOverlap,
		a.Config.Ingest.MinChunkLength,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize chunker: %w", err)
	}

	a.IngestService = ingest.NewService(
		splitter,
		a.EmbeddingService,
		a.Index,
		int(a.Config.Ingest.MaxDocumentBytes),
		a.Logger,
	)

	a.Retriever = retrieval.NewService(
		a.EmbeddingService,
		a.Index,
		a.Config.Retrieval.MinSimilarity,
		a.Logger,
	)

	assembler := prompt.NewAssembler(
		a.Config.Chat.HistoryLimit,
		a.Config.Chat.SystemPrompt,
		a.Logger,
	)
	engine := generation.NewEngine(a.LLMService, a.Logger)

	a.ChatService = chat.NewService(
		a.SessionStorage,
		a.Retriever,
		assembler,
		engine,
		a.LLMService,
		a.Config.Retrieval.TopK,
		a.Config.Chat.HistoryLimit,
		a.Config.Retrieval.SourceScoreFloor,
		a.Logger,
	)

	a.ScraperService = scraper.NewService(&a.Config.Scraper, a.Logger)
	a.ExtractorService = pdf.NewExtractor(a.Logger)

	a.Logger.Debug().Msg("Services initialized")
	return nil
}

// initHandlers initializes all HTTP handlers
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.Logger)
	a.ChatHandler = handlers.NewChatHandler(a.ChatService, a.SessionStorage, a.Logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.ChatService, a.SessionStorage, a.Logger)
	a.DocumentHandler = handlers.NewDocumentHandler(
		a.IngestService,
		a.ExtractorService,
		a.ScraperService,
		a.Index,
		&a.Config.Ingest,
		a.Logger,
	)
	a.SessionHandler = handlers.NewSessionHandler(a.SessionStorage, a.Logger)

	a.Logger.Debug().Msg("HTTP handlers initialized")
}

// Close closes all application resources
func (a *App) Close() error {
	if a.LLMService != nil {
		if err := a.LLMService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM service")
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			return fmt.Errorf("failed to close session store: %w", err)
		}
		a.Logger.Info().Msg("Session store closed")
	}

	return nil
}
