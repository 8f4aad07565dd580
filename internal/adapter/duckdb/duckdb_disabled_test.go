//go:build !duckdb

package duckdb

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sadopc/sqlace/internal/adapter"
	"github.com/sadopc/sqlace/internal/connspec"
)

func TestDuckDBDisabled_Open(t *testing.T) {
	a := &disabledAdapter{}
	m, err := a.Open(context.Background(), connspec.MustParse("duckdb:///tmp/test.duckdb"), adapter.Options{})

	if m != nil {
		t.Error("Open() should return nil manager when disabled")
	}
	if err != errDisabled {
		t.Errorf("Open() error should be errDisabled, got %v", err)
	}
}

func TestDuckDBDisabled_Registration(t *testing.T) {
	a, ok := adapter.Registry["duckdb"]
	if !ok {
		t.Fatal("duckdb adapter not found in registry")
	}
	if a.Name() != "duckdb" {
		t.Errorf("registered adapter Name() = %q, want %q", a.Name(), "duckdb")
	}
	if a.DefaultPort() != 0 {
		t.Errorf("registered adapter DefaultPort() = %d, want %d", a.DefaultPort(), 0)
	}
}

func TestDuckDBDisabled_OpenThroughRegistry(t *testing.T) {
	_, err := adapter.Open(context.Background(), connspec.MustParse("duckdb:///tmp/x.duckdb"), adapter.Options{})

	var ce *adapter.ConnectError
	if !errors.As(err, &ce) || !errors.Is(err, errDisabled) {
		t.Fatalf("Open() error = %v, want ConnectError wrapping errDisabled", err)
	}
	if ce.Adapter != "duckdb" {
		t.Errorf("ConnectError.Adapter = %q", ce.Adapter)
	}
}

func TestDuckDBDisabled_ErrorMessage(t *testing.T) {
	// The message should name the build tag.
	msg := errDisabled.Error()
	if !strings.Contains(msg, "DuckDB") {
		t.Errorf("errDisabled message = %q, expected to contain 'DuckDB'", msg)
	}
	if !strings.Contains(msg, "-tags duckdb") {
		t.Errorf("errDisabled message = %q, expected to contain the build tag", msg)
	}
}
