package lint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bertramr/cimdb/pkg/metrics"
	"github.com/bertramr/cimdb/pkg/schema"
	"github.com/bertramr/cimdb/pkg/store"
)

type Kind string

const (
	KindMissing Kind = "Missing"
	KindInvalid Kind = "Invalid"
)

// Violation is one data-quality finding: a mandatory property left unset, or
// a stored reference that does not resolve. Count is the number of affected
// instances; Distinct (Invalid only) is the number of distinct bad values.
type Violation struct {
	Class    string
	Property string
	Kind     Kind
	Total    int64
	Count    int64
	Distinct int64
}

// Skipped is a capability gap: a check that could not be performed, kept
// distinguishable from a passing check but absent from the violations.
type Skipped struct {
	Class    string
	Property string
	Reason   string
}

// Report aggregates all findings, pivoted by (kind, class, total, property).
type Report struct {
	Violations []Violation
	Skipped    []Skipped
}

func (r *Report) Empty() bool {
	return len(r.Violations) == 0
}

func (r *Report) String() string {
	var b strings.Builder
	for _, v := range r.Violations {
		switch v.Kind {
		case KindInvalid:
			fmt.Fprintf(&b, "%s\t%s\t%d\t%s\tviolations=%d\tunique=%d\n",
				v.Kind, v.Class, v.Total, v.Property, v.Count, v.Distinct)
		default:
			fmt.Fprintf(&b, "%s\t%s\t%d\t%s\tviolations=%d\n",
				v.Kind, v.Class, v.Total, v.Property, v.Count)
		}
	}
	return b.String()
}

type VerifierConfig struct {
	Logger *slog.Logger
	DB     *store.DB

	// Concurrency bounds the parallel per-class checks. Each check is a
	// pure read; 1 gives the strictly sequential traversal.
	Concurrency int
}

func (cfg *VerifierConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.DB == nil {
		return errors.New("db is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return nil
}

// Verifier walks the type hierarchy and checks committed data against the
// schema's cardinality and reference-type constraints.
type Verifier struct {
	log         *slog.Logger
	db          *store.DB
	concurrency int
}

func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Verifier{
		log:         cfg.Logger,
		db:          cfg.DB,
		concurrency: cfg.Concurrency,
	}, nil
}

// Verify traverses the class hierarchy depth-first and runs the mandatory
// value and reference-validity checks for every class. Checks are isolated:
// an unexpected backend error in one check is logged and the traversal
// continues, since the report's value lies in its completeness. The report
// ordering is deterministic regardless of check scheduling.
func (v *Verifier) Verify(ctx context.Context, sch *schema.Schema) (*Report, error) {
	classes := sch.Hierarchy()
	v.log.Info("linting", "classes", len(classes))

	report := &Report{}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(v.concurrency)
	for i, class := range classes {
		g.Go(func() error {
			v.log.Debug("linting class", "class", class.Name, "progress", fmt.Sprintf("%d/%d", i+1, len(classes)))
			violations, skipped := v.checkClass(ctx, class)
			mu.Lock()
			report.Violations = append(report.Violations, violations...)
			report.Skipped = append(report.Skipped, skipped...)
			mu.Unlock()
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sortReport(report)
	v.log.Info("linting finished", "violations", len(report.Violations), "skipped", len(report.Skipped))
	return report, nil
}

func (v *Verifier) checkClass(ctx context.Context, class *schema.Class) ([]Violation, []Skipped) {
	var violations []Violation
	var skipped []Skipped

	table := class.TableName()
	total, err := v.db.Count(ctx, table)
	if err != nil {
		v.log.Error("failed to count instances, class skipped", "class", class.Name, "error", err)
		metrics.LintChecksTotal.WithLabelValues("error").Inc()
		return nil, nil
	}
	if total == 0 {
		return nil, nil
	}

	for _, prop := range class.Props {
		if prop.Optional {
			continue
		}
		if !prop.HasColumn() {
			// Many-associations materialize via a join table; there is no
			// single foreign-key column to check.
			v.log.Warn("check unsupported for many-association",
				"class", class.Name, "property", prop.QName())
			skipped = append(skipped, Skipped{
				Class:    class.Name,
				Property: prop.FullLabel(),
				Reason:   "many-association has no single-column storage",
			})
			metrics.LintChecksTotal.WithLabelValues("unsupported").Inc()
			continue
		}

		found, err := v.checkProperty(ctx, class, prop, total)
		if err != nil {
			v.log.Error("check failed, continuing",
				"class", class.Name, "property", prop.QName(), "error", err)
			metrics.LintChecksTotal.WithLabelValues("error").Inc()
			continue
		}
		metrics.LintChecksTotal.WithLabelValues("checked").Inc()
		violations = append(violations, found...)
	}
	return violations, skipped
}

func (v *Verifier) checkProperty(ctx context.Context, class *schema.Class, prop *schema.Property, total int64) ([]Violation, error) {
	table := class.TableName()
	col := prop.Column()

	set, err := v.db.CountWhereNotNull(ctx, table, col)
	if err != nil {
		return nil, err
	}
	// The usage flag, recomputed from storage: a property no ingested
	// instance sets cannot produce violations.
	if set == 0 {
		prop.Used = false
		return nil, nil
	}
	prop.Used = true

	var violations []Violation
	if missing := total - set; missing > 0 {
		v.log.Debug("missing mandatory property",
			"class", class.Name, "property", prop.FullLabel(), "instances", missing)
		metrics.LintViolationsTotal.WithLabelValues(string(KindMissing)).Inc()
		violations = append(violations, Violation{
			Class:    class.Name,
			Property: prop.FullLabel(),
			Kind:     KindMissing,
			Total:    total,
			Count:    missing,
		})
	}

	if prop.Kind == schema.KindPrimitive {
		return violations, nil
	}

	var diff []sql.NullString
	switch prop.Kind {
	case schema.KindObject:
		diff, err = v.db.ExceptIDs(ctx, table, col, prop.Range.TableName())
	case schema.KindEnumeration:
		diff, err = v.db.ExceptEnumValues(ctx, table, col, prop.Enum.Name)
	}
	if err != nil {
		return nil, err
	}

	// The set difference against an empty valid-target set yields a single
	// NULL marker row rather than an empty result; a NULL row also appears
	// whenever some instances leave the reference unset. Neither is a
	// violation: only non-NULL values in the difference fail to resolve.
	invalid := make([]string, 0, len(diff))
	for _, val := range diff {
		if val.Valid {
			invalid = append(invalid, val.String)
		}
	}
	if len(invalid) == 0 {
		return violations, nil
	}

	// Distinct bad values and affected instances are different numbers;
	// recount the instances whose stored value falls in the invalid set.
	affected, err := v.db.CountWhereIn(ctx, table, col, invalid)
	if err != nil {
		return nil, err
	}
	metrics.LintViolationsTotal.WithLabelValues(string(KindInvalid)).Inc()
	violations = append(violations, Violation{
		Class:    class.Name,
		Property: prop.FullLabel(),
		Kind:     KindInvalid,
		Total:    total,
		Count:    affected,
		Distinct: int64(len(invalid)),
	})
	return violations, nil
}

func sortReport(report *Report) {
	sort.Slice(report.Violations, func(i, j int) bool {
		a, b := report.Violations[i], report.Violations[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Class != b.Class {
			return a.Class < b.Class
		}
		if a.Total != b.Total {
			return a.Total < b.Total
		}
		return a.Property < b.Property
	})
	sort.Slice(report.Skipped, func(i, j int) bool {
		a, b := report.Skipped[i], report.Skipped[j]
		if a.Class != b.Class {
			return a.Class < b.Class
		}
		return a.Property < b.Property
	})
}
