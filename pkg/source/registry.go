package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/bertramr/cimdb/pkg/store"
)

// ErrNoFiles means the input patterns resolved to zero readable documents.
var ErrNoFiles = errors.New("no dataset files found")

// ErrNoDeclaredVersion means no source declares a schema version. Callers
// with a fallback version may recover from it; a version conflict they may
// not.
var ErrNoDeclaredVersion = errors.New("no source declares a schema version")

// Source is one input document of a dataset. Identity is the absolute path;
// the declared CIM version may be absent. Source records are the only state
// that must survive a verifier-only run without re-ingestion.
type Source struct {
	ID           uuid.UUID
	Path         string
	Version      string // empty when the document declares none
	RegisteredAt time.Time
}

var cimNamespaceVersion = regexp.MustCompile(`CIM-schema-cim(\d+)#`)

type RegistryConfig struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
	DB     *store.DB
}

func (cfg *RegistryConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.DB == nil {
		return errors.New("db is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Registry enumerates dataset files, sniffs their declared schema version
// and persists source metadata before any typed data exists.
type Registry struct {
	log   *slog.Logger
	clock clockwork.Clock
	db    *store.DB
}

func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Registry{
		log:   cfg.Logger,
		clock: cfg.Clock,
		db:    cfg.DB,
	}, nil
}

// Register resolves the patterns (files, directories, or doublestar globs)
// to a deduplicated source set and persists all records in one transaction,
// so provenance is on record even if a later stage fails.
func (r *Registry) Register(ctx context.Context, patterns []string) ([]Source, error) {
	files, err := Discover(patterns)
	if err != nil {
		return nil, err
	}
	now := r.clock.Now().UTC()
	sources := make([]Source, 0, len(files))
	for _, file := range files {
		version, err := sniffVersion(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read source %s: %w", file, err)
		}
		sources = append(sources, Source{
			ID:           uuid.New(),
			Path:         file,
			Version:      version,
			RegisteredAt: now,
		})
	}
	if err := r.persist(ctx, sources); err != nil {
		return nil, err
	}
	r.log.Info("registered sources", "count", len(sources))
	return sources, nil
}

func (r *Registry) persist(ctx context.Context, sources []Source) error {
	sess, err := r.db.NewSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()
	if err := sess.Begin(ctx); err != nil {
		return err
	}
	cols := []string{"id", "path", "cim_version", "registered_at"}
	rows := make([][]any, 0, len(sources))
	for _, src := range sources {
		var version any
		if src.Version != "" {
			version = src.Version
		}
		rows = append(rows, []any{src.ID.String(), src.Path, version, src.RegisteredAt})
	}
	sess.BulkInsert("source_info", cols, rows)
	if err := sess.Flush(ctx); err != nil {
		return err
	}
	return sess.Commit(ctx)
}

// Load reads the persisted source records of an already-ingested database.
func Load(ctx context.Context, db *store.DB) ([]Source, error) {
	rows, err := db.SQL().QueryContext(ctx,
		"SELECT id, path, cim_version, registered_at FROM source_info ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("failed to query source_info: %w", err)
	}
	defer rows.Close()
	var sources []Source
	for rows.Next() {
		var (
			src Source
			id  string
			ver *string
		)
		if err := rows.Scan(&id, &src.Path, &ver, &src.RegisteredAt); err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		src.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("failed to parse source id %q: %w", id, err)
		}
		if ver != nil {
			src.Version = *ver
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source rows: %w", err)
	}
	return sources, nil
}

// DeclaredVersion returns the schema version the sources agree on, or an
// error when none declare one or the declarations conflict.
func DeclaredVersion(sources []Source) (string, error) {
	version := ""
	for _, src := range sources {
		if src.Version == "" {
			continue
		}
		if version == "" {
			version = src.Version
			continue
		}
		if version != src.Version {
			return "", fmt.Errorf("sources declare conflicting versions %s and %s", version, src.Version)
		}
	}
	if version == "" {
		return "", ErrNoDeclaredVersion
	}
	return version, nil
}

// Discover expands patterns into a sorted, deduplicated list of document
// paths. Directories match their *.xml and *.rdf entries, non-glob paths
// must exist, and glob patterns use doublestar syntax.
func Discover(patterns []string) ([]string, error) {
	seen := map[string]struct{}{}
	var files []string
	add := func(path string) error {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		if _, ok := seen[abs]; ok {
			return nil
		}
		seen[abs] = struct{}{}
		files = append(files, abs)
		return nil
	}
	for _, pattern := range patterns {
		info, err := os.Stat(pattern)
		switch {
		case err == nil && info.IsDir():
			for _, ext := range []string{"*.xml", "*.rdf"} {
				matches, err := filepath.Glob(filepath.Join(pattern, ext))
				if err != nil {
					return nil, fmt.Errorf("failed to glob %s: %w", pattern, err)
				}
				for _, m := range matches {
					if err := add(m); err != nil {
						return nil, err
					}
				}
			}
		case err == nil:
			if err := add(pattern); err != nil {
				return nil, err
			}
		default:
			matches, err := doublestar.FilepathGlob(pattern)
			if err != nil {
				return nil, fmt.Errorf("failed to glob %s: %w", pattern, err)
			}
			for _, m := range matches {
				if err := add(m); err != nil {
					return nil, err
				}
			}
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w for %v", ErrNoFiles, patterns)
	}
	sort.Strings(files)
	return files, nil
}

// sniffVersion extracts the CIM major version from the cim namespace
// declaration in the document head, e.g. ".../CIM-schema-cim16#" -> "16".
func sniffVersion(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	head := make([]byte, 4096)
	n, err := f.Read(head)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	match := cimNamespaceVersion.FindSubmatch(head[:n])
	if match == nil {
		return "", nil
	}
	return string(match[1]), nil
}
