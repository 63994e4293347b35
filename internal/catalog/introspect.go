package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/aeroscore/pkg/adapter"
	"github.com/leapstack-labs/aeroscore/pkg/core"
)

// introspectLimit caps concurrent metadata queries.
const introspectLimit = 4

// Introspect builds a catalog by asking the adapter for each table's
// columns and row count. A table the database does not have is recorded
// with Exists false; any other failure aborts.
func Introspect(ctx context.Context, a core.Adapter, schema string, tables []string, logger *slog.Logger) (*core.Catalog, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if schema == "" {
		schema = DefaultSchema
	}
	if len(tables) == 0 {
		tables = DefaultTables
	}

	cat := &core.Catalog{Schema: schema, Tables: make(map[string]*core.TableInfo, len(tables))}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(introspectLimit)
	for _, name := range tables {
		g.Go(func() error {
			info := &core.TableInfo{Name: name}
			meta, err := a.GetTableMetadata(gctx, schema+"."+name)
			switch {
			case errors.Is(err, adapter.ErrTableNotFound):
				logger.Info("table not found", slog.String("table", name))
			case err != nil:
				return fmt.Errorf("introspect %s.%s: %w", schema, name, err)
			default:
				info.Exists = true
				info.Columns = meta.Columns
				info.RowCount = meta.RowCount
				logger.Info("table introspected",
					slog.String("table", name),
					slog.Int("columns", len(meta.Columns)),
					slog.Int64("rows", meta.RowCount))
			}
			mu.Lock()
			cat.Tables[name] = info
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	cat.Index()
	return cat, nil
}
