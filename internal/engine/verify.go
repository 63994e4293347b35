package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/aeroscore/internal/compiler"
	"github.com/leapstack-labs/aeroscore/pkg/adapter"
	"github.com/leapstack-labs/aeroscore/pkg/core"
	"github.com/leapstack-labs/aeroscore/pkg/dialect"
)

// verifyLimit caps concurrent count queries.
const verifyLimit = 4

// Object kinds checked by Verify.
const (
	KindFilteredView = "filtered view"
	KindScoredView   = "scored view"
	KindOutputTable  = "output table"
)

// ObjectCount is the row count of one pipeline object. Err is set when
// the object could not be counted, usually because it does not exist.
type ObjectCount struct {
	Kind  string
	Name  string
	Rows  int64
	Error string
}

// Bucket is one row of a distribution.
type Bucket struct {
	Label string
	Count int64
}

// VerifyReport is the state of the pipeline objects in the database.
type VerifyReport struct {
	Objects    []ObjectCount
	Tiers      []Bucket
	Confidence []Bucket
}

// OK reports whether every expected object could be counted.
func (r *VerifyReport) OK() bool {
	for _, o := range r.Objects {
		if o.Error != "" {
			return false
		}
	}
	return true
}

// Verify counts the rows of every view and table the pipeline is expected
// to have created and reads the tier and confidence distributions of the
// output table.
func (e *Engine) Verify(ctx context.Context) (*VerifyReport, error) {
	set, cat, err := e.LoadInputs()
	if err != nil {
		return nil, err
	}
	opts, err := e.Options()
	if err != nil {
		return nil, err
	}
	db, err := e.connect(ctx)
	if err != nil {
		return nil, err
	}

	filtered, err := compiler.CompileExclusions(set.Exclusions, cat, opts)
	if err != nil {
		return nil, err
	}
	scored, err := compiler.CompileScoring(set.Scoring, cat, filtered, opts)
	if err != nil {
		return nil, err
	}
	outSchema, outTable := set.Output.Qualified(cat.Schema)

	type target struct {
		schema string
		obj    ObjectCount
	}
	var targets []target
	for _, v := range filtered {
		targets = append(targets, target{cat.Schema, ObjectCount{Kind: KindFilteredView, Name: v.Name}})
	}
	for _, v := range scored {
		targets = append(targets, target{cat.Schema, ObjectCount{Kind: KindScoredView, Name: v.Name}})
	}
	targets = append(targets, target{outSchema, ObjectCount{Kind: KindOutputTable, Name: outTable}})

	report := &VerifyReport{Objects: make([]ObjectCount, len(targets))}
	d := db.Dialect()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(verifyLimit)
	for i, t := range targets {
		g.Go(func() error {
			obj := t.obj
			n, err := countRows(gctx, db, d.QuoteQualified(t.schema, obj.Name))
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				e.logger.Debug("count failed", slog.String("object", obj.Name), slog.Any("error", err))
				obj.Error = err.Error()
			}
			obj.Rows = n
			report.Objects[i] = obj
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := report.Objects[len(report.Objects)-1]
	if out.Error != "" {
		return report, nil
	}
	table := d.QuoteQualified(outSchema, outTable)
	if col, ok := set.Output.ComputedColumn(core.ComputedTier); ok {
		if report.Tiers, err = distribution(ctx, db, d, table, col.Name); err != nil {
			return report, err
		}
	}
	if col, ok := set.Output.ComputedColumn(core.ComputedConfidence); ok {
		if report.Confidence, err = distribution(ctx, db, d, table, col.Name); err != nil {
			return report, err
		}
	}
	return report, nil
}

func countRows(ctx context.Context, db adapter.Adapter, table string) (int64, error) {
	rows, err := db.Query(ctx, "SELECT COUNT(*) FROM "+table)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()

	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, rows.Err()
}

func distribution(ctx context.Context, db adapter.Adapter, d *dialect.Dialect, table, column string) ([]Bucket, error) {
	col := d.QuoteIdentifierIfNeeded(column)
	rows, err := db.Query(ctx, fmt.Sprintf(
		"SELECT %s, COUNT(*) FROM %s GROUP BY %s ORDER BY 2 DESC, 1", col, table, col))
	if err != nil {
		return nil, fmt.Errorf("%s distribution: %w", column, err)
	}
	defer func() { _ = rows.Close() }()

	var out []Bucket
	for rows.Next() {
		var label sql.NullString
		var b Bucket
		if err := rows.Scan(&label, &b.Count); err != nil {
			return nil, fmt.Errorf("%s distribution: %w", column, err)
		}
		b.Label = label.String
		if !label.Valid {
			b.Label = "(null)"
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
