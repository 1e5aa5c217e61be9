package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/bertramr/cimdb/pkg/dataset"
	"github.com/bertramr/cimdb/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		sentry.CaptureException(err)
		sentry.Flush(2 * time.Second)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")

	// Backend configuration
	driverFlag := flag.String("driver", "sqlite", "database driver: sqlite or postgres (or set CIMDB_DRIVER env var)")
	dsnFlag := flag.String("dsn", "", "database DSN, e.g. a sqlite file path (or set CIMDB_DSN env var)")

	// Schema configuration
	schemaFlag := flag.String("schema", "", "explicit RDFS profile file or directory (or set CIMDB_SCHEMA env var)")
	schemaRootFlag := flag.String("schema-root", "", "schema catalog root for version lookup (or set CIMDB_SCHEMA_ROOT env var)")

	// Commands
	parseFlag := flag.StringSlice("parse", nil, "parse the given dataset files, directories or glob patterns")
	lintFlag := flag.Bool("lint", false, "verify the committed dataset and print the violation report")
	statsFlag := flag.Bool("stats", false, "print per-class instance counts")
	exportFlag := flag.String("export", "", "serialize the committed dataset to the given RDF/XML file")

	flag.Parse()

	if env := os.Getenv("CIMDB_DRIVER"); env != "" {
		*driverFlag = env
	}
	if env := os.Getenv("CIMDB_DSN"); env != "" {
		*dsnFlag = env
	}
	if env := os.Getenv("CIMDB_SCHEMA"); env != "" {
		*schemaFlag = env
	}
	if env := os.Getenv("CIMDB_SCHEMA_ROOT"); env != "" {
		*schemaRootFlag = env
	}

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: dsn}); err != nil {
			return fmt.Errorf("failed to init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	log := logger.New(*verboseFlag)
	ctx := context.Background()

	cfg := dataset.Config{
		Logger:         log,
		Driver:         *driverFlag,
		DSN:            *dsnFlag,
		Dataset:        *parseFlag,
		SchemaLocation: *schemaFlag,
		SchemaRoot:     *schemaRootFlag,
	}

	var (
		d   *dataset.Dataset
		err error
	)
	if len(*parseFlag) > 0 {
		d, err = dataset.Parse(ctx, cfg)
	} else {
		d, err = dataset.Load(ctx, cfg)
	}
	if err != nil {
		return err
	}
	defer d.Close()

	if *lintFlag {
		report, err := d.Verify(ctx)
		if err != nil {
			return err
		}
		if report.Empty() {
			log.Info("no violations found")
		} else {
			fmt.Print(report.String())
		}
	}

	if *statsFlag {
		stats, err := d.Stats(ctx)
		if err != nil {
			return err
		}
		for _, s := range stats {
			fmt.Printf("%s\tdirect=%d\tpolymorphic=%d\n", s.Class, s.Direct, s.Polymorphic)
		}
	}

	if *exportFlag != "" {
		f, err := os.Create(*exportFlag)
		if err != nil {
			return fmt.Errorf("failed to create export file: %w", err)
		}
		defer f.Close()
		if err := d.Export(ctx, f); err != nil {
			return err
		}
		log.Info("exported dataset", "file", *exportFlag)
	}

	return nil
}
