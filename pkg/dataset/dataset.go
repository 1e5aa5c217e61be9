package dataset

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/bertramr/cimdb/pkg/ingest"
	"github.com/bertramr/cimdb/pkg/lint"
	"github.com/bertramr/cimdb/pkg/schema"
	"github.com/bertramr/cimdb/pkg/source"
	"github.com/bertramr/cimdb/pkg/store"
)

type Config struct {
	Logger *slog.Logger
	Clock  clockwork.Clock

	// Backend location.
	Driver string
	DSN    string

	// Dataset documents: files, directories or glob patterns.
	Dataset []string

	// SchemaLocation points at an RDFS profile document or directory. When
	// empty, the version declared by the sources resolves against the
	// catalog under SchemaRoot.
	SchemaLocation string
	SchemaRoot     string
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Driver == "" {
		cfg.Driver = "sqlite"
	}
	if cfg.DSN == "" {
		return errors.New("dsn is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Dataset is one ingested exchange: the backend holding its typed instances,
// the hierarchy that governs them, and the registered sources.
type Dataset struct {
	log *slog.Logger

	DB      *store.DB
	Schema  *schema.Schema
	Sources []source.Source
}

// Parse ingests a dataset end to end: reset the backend, register the
// sources, resolve and materialize the schema, then merge, parse and commit
// all entries. The returned dataset is ready for querying and verification.
func Parse(ctx context.Context, cfg Config) (*Dataset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := store.Open(ctx, store.Config{Logger: cfg.Logger, Driver: cfg.Driver, DSN: cfg.DSN})
	if err != nil {
		return nil, err
	}
	d, err := parse(ctx, cfg, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func parse(ctx context.Context, cfg Config, db *store.DB) (*Dataset, error) {
	if err := db.Reset(ctx); err != nil {
		return nil, err
	}

	registry, err := source.NewRegistry(source.RegistryConfig{
		Logger: cfg.Logger,
		Clock:  cfg.Clock,
		DB:     db,
	})
	if err != nil {
		return nil, err
	}
	sources, err := registry.Register(ctx, cfg.Dataset)
	if err != nil {
		return nil, err
	}

	sch, err := resolveSchema(ctx, cfg, db, sources)
	if err != nil {
		return nil, err
	}

	pipeline, err := ingest.NewPipeline(ingest.PipelineConfig{Logger: cfg.Logger, DB: db})
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(sources))
	for _, src := range sources {
		files = append(files, src.Path)
	}
	if _, err := pipeline.Ingest(ctx, files, sch); err != nil {
		return nil, err
	}

	return &Dataset{log: cfg.Logger, DB: db, Schema: sch, Sources: sources}, nil
}

// Load reopens an already-ingested database without re-ingesting. The
// persisted source records supply the schema version; when none declare one
// the version defaults to 16 with a warning, matching historic exchanges.
func Load(ctx context.Context, cfg Config) (*Dataset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := store.Open(ctx, store.Config{Logger: cfg.Logger, Driver: cfg.Driver, DSN: cfg.DSN})
	if err != nil {
		return nil, err
	}
	sources, err := source.Load(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	sch, err := resolveSchemaLoad(cfg, sources)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Dataset{log: cfg.Logger, DB: db, Schema: sch, Sources: sources}, nil
}

// CreateEmpty materializes the schema on a fresh backend with no sources,
// for fixture building and tests.
func CreateEmpty(ctx context.Context, cfg Config, version string) (*Dataset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := store.Open(ctx, store.Config{Logger: cfg.Logger, Driver: cfg.Driver, DSN: cfg.DSN})
	if err != nil {
		return nil, err
	}
	if err := db.Reset(ctx); err != nil {
		db.Close()
		return nil, err
	}
	var sch *schema.Schema
	if cfg.SchemaLocation != "" {
		sch, err = schema.Load(cfg.SchemaLocation, version)
	} else {
		var catalog *schema.Catalog
		catalog, err = schema.OpenCatalog(cfg.SchemaRoot)
		if err == nil {
			sch, err = catalog.LoadVersion(version)
		}
	}
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := db.CreateTables(ctx, sch); err != nil {
		db.Close()
		return nil, err
	}
	return &Dataset{log: cfg.Logger, DB: db, Schema: sch}, nil
}

// Verify runs the integrity checks against the committed data.
func (d *Dataset) Verify(ctx context.Context) (*lint.Report, error) {
	verifier, err := lint.NewVerifier(lint.VerifierConfig{Logger: d.log, DB: d.DB})
	if err != nil {
		return nil, err
	}
	return verifier.Verify(ctx, d.Schema)
}

func (d *Dataset) Close() error {
	return d.DB.Close()
}
