//go:build !duckdb

package duckdb

import (
	"context"
	"errors"

	"github.com/sadopc/sqlace/internal/adapter"
	"github.com/sadopc/sqlace/internal/connspec"
)

var errDisabled = errors.New("DuckDB support not compiled in. Rebuild with -tags duckdb")

func init() {
	adapter.Register(&disabledAdapter{})
}

type disabledAdapter struct{}

func (d *disabledAdapter) Name() string      { return "duckdb" }
func (d *disabledAdapter) Schemes() []string { return []string{"duckdb"} }
func (d *disabledAdapter) DefaultPort() int  { return 0 }

func (d *disabledAdapter) Open(_ context.Context, _ connspec.Spec, _ adapter.Options) (adapter.Manager, error) {
	return nil, errDisabled
}
