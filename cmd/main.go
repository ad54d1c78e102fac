package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mentorium/backend/internal/clients/gcp"
	"github.com/mentorium/backend/internal/clients/gdrive"
	"github.com/mentorium/backend/internal/clients/openai"
	"github.com/mentorium/backend/internal/clients/pinecone"
	"github.com/mentorium/backend/internal/clients/redisstore"
	"github.com/mentorium/backend/internal/db"
	"github.com/mentorium/backend/internal/handlers"
	"github.com/mentorium/backend/internal/ingestion/chunk"
	"github.com/mentorium/backend/internal/ingestion/fetch"
	"github.com/mentorium/backend/internal/platform/envutil"
	"github.com/mentorium/backend/internal/platform/logger"
	"github.com/mentorium/backend/internal/server"
	"github.com/mentorium/backend/internal/services"
)

func main() {
	mode := envutil.Str("APP_MODE", "dev")

	log, err := logger.New(mode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(mode, log); err != nil {
		log.Fatal("Startup failed", "error", err)
	}
}

func run(mode string, log *logger.Logger) error {
	ctx := context.Background()

	// Clients.
	store, err := redisstore.New(log)
	if err != nil {
		return err
	}
	defer store.Close()

	drive, err := gdrive.New(log)
	if err != nil {
		return err
	}
	bucket, err := gcp.NewBucketService(log)
	if err != nil {
		return err
	}
	ai, err := openai.NewClient(log)
	if err != nil {
		return err
	}
	pc, err := pinecone.New(log, pinecone.Config{APIKey: os.Getenv("PINECONE_API_KEY")})
	if err != nil {
		return err
	}
	vec, err := pinecone.NewVectorStore(log, pc)
	if err != nil {
		return err
	}

	sqlite, err := db.NewSQLiteService(log)
	if err != nil {
		return err
	}
	defer sqlite.Close()

	catalogSource, err := services.NewPgxCatalogSource(ctx)
	if err != nil {
		return err
	}

	// Ingestion pipeline.
	fetcher, err := fetch.NewFetcher(log, drive, envutil.Str("DOWNLOAD_DIR", ""))
	if err != nil {
		return err
	}
	tokenizer, err := chunk.NewTiktokenTokenizer(envutil.Str("TOKENIZER_ENCODING", "cl100k_base"))
	if err != nil {
		return err
	}
	chunker, err := chunk.NewChunker(tokenizer)
	if err != nil {
		return err
	}

	// Services.
	ledger, err := services.NewResourceLedger(log, store)
	if err != nil {
		return err
	}
	library, err := services.NewLibraryService(log, store)
	if err != nil {
		return err
	}
	indexer, err := services.NewIndexerService(log, ai, vec)
	if err != nil {
		return err
	}
	retrieval, err := services.NewRetrievalService(log, indexer)
	if err != nil {
		return err
	}
	history, err := services.NewHistoryService(log, store)
	if err != nil {
		return err
	}
	catalog, err := services.NewCatalogService(log, catalogSource, sqlite.DB, library)
	if err != nil {
		return err
	}
	ingest, err := services.NewIngestService(log, fetcher, bucket, ledger, indexer, library, chunker)
	if err != nil {
		return err
	}
	chat, err := services.NewChatService(log, ai, retrieval, history, catalog)
	if err != nil {
		return err
	}

	// Warm the catalog mirror so the first /ask has an allowlist.
	if _, err := catalog.Refresh(ctx); err != nil {
		log.Warn("Initial catalog refresh failed", "error", err)
	}

	router := server.NewRouter(mode, server.Deps{
		Health:   handlers.NewHealthHandler(),
		Resource: handlers.NewResourceHandler(log, ingest),
		Chat:     handlers.NewChatHandler(log, chat, history),
		Catalog:  handlers.NewCatalogHandler(log, catalog),
	})

	addr := ":" + envutil.Str("PORT", "8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server listening", "addr", addr, "mode", mode)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-stop:
		log.Info("Shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}
