package adapter

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/aeroscore/pkg/core"
	"github.com/leapstack-labs/aeroscore/pkg/dialect"
)

func TestUnknownAdapterError_Error(t *testing.T) {
	err := &UnknownAdapterError{
		Type:      "oracle",
		Available: []string{"duckdb", "postgres"},
	}

	msg := err.Error()
	assert.Contains(t, msg, "oracle")
	assert.Contains(t, msg, "[duckdb postgres]")
	assert.Contains(t, msg, "unknown target type")
	assert.Contains(t, msg, "aeroscore.yaml")
}

func TestRegister(t *testing.T) {
	Register("test_adapter_internal", func(_ *slog.Logger) Adapter { return nil })

	assert.True(t, IsRegistered("test_adapter_internal"))
	factory, ok := Get("test_adapter_internal")
	assert.True(t, ok)
	assert.NotNil(t, factory)
	assert.Contains(t, ListAdapters(), "test_adapter_internal")
}

func TestNewAdapter_EmptyType(t *testing.T) {
	_, err := NewAdapter(Config{}, nil)
	require.Error(t, err)
	assert.Equal(t, "adapter type not specified", err.Error())
}

// stubAdapter runs scripts of whatever dialect it is given.
type stubAdapter struct {
	BaseSQLAdapter
	dialect *dialect.Dialect
}

func (s *stubAdapter) Connect(context.Context, Config) error { return nil }
func (s *stubAdapter) GetTableMetadata(context.Context, string) (*core.TableMetadata, error) {
	return nil, ErrTableNotFound
}
func (s *stubAdapter) DialectConfig() *core.DialectConfig { return s.dialect.Config() }
func (s *stubAdapter) Dialect() *dialect.Dialect          { return s.dialect }

func TestTargetTypeAliases(t *testing.T) {
	stub := dialect.NewDialect("stubdb").Build()
	Register("StubDB", func(_ *slog.Logger) Adapter { return &stubAdapter{dialect: stub} }, "stub-db", " Stub ")

	tests := []struct {
		in   string
		want string
	}{
		{"stubdb", "stubdb"},
		{"  StubDB ", "stubdb"},
		{"STUB-DB", "stubdb"},
		{"stub", "stubdb"},
		{"Oracle", "oracle"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, TargetType(tt.in))
		})
	}

	assert.True(t, IsRegistered("stub"))
	assert.Contains(t, ListAdapters(), "stubdb")
	assert.NotContains(t, ListAdapters(), "stub")

	adp, err := NewAdapter(Config{Type: "Stub-DB"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "stubdb", adp.Dialect().Name)
}

func TestNewAdapter_DialectMustMatchTarget(t *testing.T) {
	other := dialect.NewDialect("otherdb").Build()
	Register("mismatched_target", func(_ *slog.Logger) Adapter { return &stubAdapter{dialect: other} })

	_, err := NewAdapter(Config{Type: "mismatched_target"}, nil)
	assert.ErrorContains(t, err, "adapter mismatched_target does not run mismatched_target scripts")
}

func TestNewAdapter_NilAdapter(t *testing.T) {
	Register("nil_target", func(_ *slog.Logger) Adapter { return nil })

	_, err := NewAdapter(Config{Type: "nil_target"}, nil)
	assert.ErrorContains(t, err, "could not be created")
}
