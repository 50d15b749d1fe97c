package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/ersonp/kinship/internal/application/handlers"
	"github.com/ersonp/kinship/internal/domain/ports"
	"github.com/ersonp/kinship/internal/domain/services"
	"github.com/ersonp/kinship/internal/infrastructure/config"
	embedder "github.com/ersonp/kinship/internal/infrastructure/embedder/openai"
	"github.com/ersonp/kinship/internal/infrastructure/logging"
	"github.com/ersonp/kinship/internal/infrastructure/observability"
	"github.com/ersonp/kinship/internal/infrastructure/relationaldb/postgres"
	"github.com/ersonp/kinship/internal/infrastructure/relationaldb/sqlite"
	"github.com/ersonp/kinship/internal/infrastructure/vectordb/qdrant"
)

// Deps holds the handlers commands work with.
type Deps struct {
	Config        *config.Config
	Logger        *zap.Logger
	Metrics       *observability.Collector
	Relationships *handlers.RelationshipHandler
	Types         *handlers.TypeHandler
	People        *handlers.PersonHandler
	Import        *handlers.ImportHandler
	Init          *handlers.InitHandler
}

// storage is the relational store plus the optional semantic index.
type storage struct {
	relationalDB ports.RelationalDB
	vectorDB     *qdrant.Repository
	embedder     *embedder.Embedder
	closers      []func() error
}

func (s *storage) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

// withDeps loads config from the working directory, builds dependencies,
// then calls fn. Everything opened is closed when fn returns.
func withDeps(ctx context.Context, fn func(*Deps) error) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	store, err := openStorage(ctx, cwd, cfg)
	if err != nil {
		return err
	}
	defer store.close()

	return fn(buildDeps(cfg, logger, store))
}

// openStorage connects to the configured database and, when enabled, to the
// semantic index.
func openStorage(ctx context.Context, cwd string, cfg *config.Config) (*storage, error) {
	store := &storage{}

	switch strings.ToLower(cfg.Database.Driver) {
	case config.DriverPostgres:
		repo, err := postgres.NewRepository(ctx, cfg.Postgres())
		if err != nil {
			return nil, fmt.Errorf("creating postgres repository: %w", err)
		}
		store.relationalDB = repo
		store.closers = append(store.closers, repo.Close)
	default:
		repo, err := sqlite.NewRepository(cfg.SQLite(cwd))
		if err != nil {
			return nil, fmt.Errorf("creating sqlite repository: %w", err)
		}
		store.relationalDB = repo
		store.closers = append(store.closers, repo.Close)
	}

	if err := store.relationalDB.EnsureSchema(ctx); err != nil {
		store.close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}

	if !cfg.Index.Enabled {
		return store, nil
	}

	repo, err := qdrant.NewRepository(cfg.Qdrant)
	if err != nil {
		store.close()
		return nil, fmt.Errorf("creating qdrant repository: %w", err)
	}
	store.vectorDB = repo
	store.closers = append(store.closers, repo.Close)

	emb, err := embedder.NewEmbedder(cfg.Embedder)
	if err != nil {
		store.close()
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	store.embedder = emb

	return store, nil
}

func buildDeps(cfg *config.Config, logger *zap.Logger, store *storage) *Deps {
	metrics := observability.NewCollector("kin")
	opts := []handlers.Option{handlers.WithLogger(logger), handlers.WithMetrics(metrics)}

	var collections ports.CollectionManager
	if store.vectorDB != nil {
		collections = store.vectorDB
		opts = append(opts, handlers.WithSearch(services.NewSearchService(store.embedder, store.vectorDB)))
	}

	graph := services.NewGraphService(store.relationalDB)
	types := services.NewRelationshipTypeService(store.relationalDB)
	people := services.NewPersonService(store.relationalDB)

	query := services.NewQueryService(graph, store.relationalDB)

	relationships := handlers.NewRelationshipHandler(
		graph,
		query,
		types,
		people,
		opts...,
	)

	return &Deps{
		Config:        cfg,
		Logger:        logger,
		Metrics:       metrics,
		Relationships: relationships,
		Types:         handlers.NewTypeHandler(types, opts...),
		People:        handlers.NewPersonHandler(people, query, opts...),
		Import:        handlers.NewImportHandler(relationships),
		Init:          handlers.NewInitHandler(store.relationalDB, types, collections, embedder.VectorSize),
	}
}
