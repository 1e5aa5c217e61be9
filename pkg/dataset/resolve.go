package dataset

import (
	"context"
	"errors"
	"fmt"

	"github.com/bertramr/cimdb/pkg/schema"
	"github.com/bertramr/cimdb/pkg/source"
	"github.com/bertramr/cimdb/pkg/store"
)

// defaultVersion is assumed, with a warning, when no source declares a
// schema version; historic exchanges predate the version declaration.
const defaultVersion = "16"

// resolveSchema obtains the type hierarchy from the explicit location or the
// version declared by the registered sources, and materializes backing
// storage for every class. A dataset without a resolvable schema is a fatal
// configuration error: the pipeline cannot proceed.
func resolveSchema(ctx context.Context, cfg Config, db *store.DB, sources []source.Source) (*schema.Schema, error) {
	sch, err := loadHierarchy(cfg, sources, false)
	if err != nil {
		return nil, err
	}
	cfg.Logger.Info("resolved schema", "version", sch.Version, "classes", sch.NumClasses())
	if err := db.CreateTables(ctx, sch); err != nil {
		return nil, err
	}
	return sch, nil
}

// resolveSchemaLoad is the reopen path: no table creation, and the default
// version applies even without an explicit schema location.
func resolveSchemaLoad(cfg Config, sources []source.Source) (*schema.Schema, error) {
	return loadHierarchy(cfg, sources, true)
}

func loadHierarchy(cfg Config, sources []source.Source, defaultWithoutLocation bool) (*schema.Schema, error) {
	version, err := source.DeclaredVersion(sources)
	if err != nil {
		// Conflicting declarations are fatal regardless of configuration;
		// only the absence of any declaration has a fallback.
		if !errors.Is(err, source.ErrNoDeclaredVersion) {
			return nil, err
		}
		if cfg.SchemaLocation == "" && !defaultWithoutLocation {
			return nil, fmt.Errorf("cannot resolve a schema: no explicit location and %w", err)
		}
		cfg.Logger.Warn("no schema version declared by any source, using default",
			"version", defaultVersion)
		version = defaultVersion
	}
	if cfg.SchemaLocation != "" {
		return schema.Load(cfg.SchemaLocation, version)
	}
	catalog, err := schema.OpenCatalog(cfg.SchemaRoot)
	if err != nil {
		return nil, err
	}
	return catalog.LoadVersion(version)
}
