package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Import adapter packages to ensure adapters are registered via init()
	_ "github.com/leapstack-labs/aeroscore/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/aeroscore/pkg/adapters/postgres"
)

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR_ONE", "value_one")
	t.Setenv("TEST_VAR_TWO", "value_two")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"single variable", "${TEST_VAR_ONE}", "value_one"},
		{"multiple variables", "${TEST_VAR_ONE}/${TEST_VAR_TWO}", "value_one/value_two"},
		{"unset variable stays as-is", "${UNSET_VARIABLE_XYZ}", "${UNSET_VARIABLE_XYZ}"},
		{"no variables", "plain string", "plain string"},
		{"empty string", "", ""},
		{"mixed set and unset", "${TEST_VAR_ONE}:${UNSET_VAR_XYZ}", "value_one:${UNSET_VAR_XYZ}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, expandEnvVars(tt.input))
		})
	}
}

func TestMergeTargetConfig(t *testing.T) {
	t.Run("nil base returns override", func(t *testing.T) {
		override := &TargetConfig{Type: "duckdb", Database: "test.db"}
		assert.Equal(t, override, MergeTargetConfig(nil, override))
	})

	t.Run("nil override returns base", func(t *testing.T) {
		base := &TargetConfig{Type: "duckdb", Database: "test.db"}
		assert.Equal(t, base, MergeTargetConfig(base, nil))
	})

	t.Run("both nil returns nil", func(t *testing.T) {
		assert.Nil(t, MergeTargetConfig(nil, nil))
	})

	t.Run("override replaces base fields", func(t *testing.T) {
		base := &TargetConfig{Type: "postgres", Database: "osm", Schema: "public", Host: "localhost", Port: 5432}
		override := &TargetConfig{Database: "osm_dev", Schema: "dev"}

		result := MergeTargetConfig(base, override)

		assert.Equal(t, "postgres", result.Type)
		assert.Equal(t, "osm_dev", result.Database)
		assert.Equal(t, "dev", result.Schema)
		assert.Equal(t, "localhost", result.Host)
		assert.Equal(t, 5432, result.Port)
		assert.Equal(t, "osm", base.Database, "base must not be modified")
	})

	t.Run("options are merged", func(t *testing.T) {
		base := &TargetConfig{Options: map[string]string{"key1": "a", "key2": "b"}}
		override := &TargetConfig{Options: map[string]string{"key2": "B", "key3": "C"}}

		result := MergeTargetConfig(base, override)

		assert.Equal(t, map[string]string{"key1": "a", "key2": "B", "key3": "C"}, result.Options)
		assert.Equal(t, "b", base.Options["key2"])
	})
}

func TestLoadConfigWithTarget_Fixtures(t *testing.T) {

	t.Run("valid duckdb config", func(t *testing.T) {
		ResetConfig()
		cfg, err := LoadConfigWithTarget(filepath.Join("testdata", "valid_duckdb.yaml"), "", nil)
		require.NoError(t, err)

		assert.Equal(t, "duckdb", cfg.Target.Type)
		assert.Equal(t, ":memory:", cfg.Target.Database)
		assert.Equal(t, "main", cfg.Target.Schema)
	})

	t.Run("default environment from file", func(t *testing.T) {
		ResetConfig()
		cfg, err := LoadConfigWithTarget(filepath.Join("testdata", "valid_with_envs.yaml"), "", nil)
		require.NoError(t, err)

		assert.Equal(t, "dev", cfg.Environment)
		assert.Equal(t, "osm_dev", cfg.Target.Database)
		assert.Equal(t, "db.internal", cfg.Target.Host)
		assert.Equal(t, 5432, cfg.Target.Port)
		assert.Equal(t, "public", cfg.Target.Schema)
	})

	t.Run("target override to staging", func(t *testing.T) {
		ResetConfig()
		cfg, err := LoadConfigWithTarget(filepath.Join("testdata", "valid_with_envs.yaml"), "staging", nil)
		require.NoError(t, err)

		assert.Equal(t, "osm_staging", cfg.Target.Database)
		assert.Equal(t, "staging", cfg.Target.Schema)
		assert.Equal(t, "postgres", cfg.Dialect)
	})

	t.Run("environment switches dialect", func(t *testing.T) {
		ResetConfig()
		cfgPath := filepath.Join("testdata", "valid_with_envs.yaml")
		cfg, err := LoadConfigWithTarget(cfgPath, "local", nil)
		require.NoError(t, err)

		assert.Equal(t, "duckdb", cfg.Dialect)
		assert.Equal(t, "duckdb", cfg.Target.Type)
		abs, err := filepath.Abs("testdata")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(abs, "local.duckdb"), cfg.Target.Database)
	})

	t.Run("unknown environment keeps base target", func(t *testing.T) {
		ResetConfig()
		cfg, err := LoadConfigWithTarget(filepath.Join("testdata", "valid_with_envs.yaml"), "nonexistent", nil)
		require.NoError(t, err)

		assert.Equal(t, "osm", cfg.Target.Database)
	})

	t.Run("invalid unknown type", func(t *testing.T) {
		ResetConfig()
		_, err := LoadConfigWithTarget(filepath.Join("testdata", "invalid_unknown_type.yaml"), "", nil)
		require.Error(t, err)

		assert.Contains(t, err.Error(), "invalid target configuration")
		assert.Contains(t, err.Error(), "mysql")
	})

	t.Run("postgres without database", func(t *testing.T) {
		ResetConfig()
		_, err := LoadConfigWithTarget(filepath.Join("testdata", "invalid_postgres_no_db.yaml"), "", nil)
		require.Error(t, err)

		assert.Contains(t, err.Error(), "target database is required")
	})

	t.Run("config with env vars", func(t *testing.T) {
		ResetConfig()
		t.Setenv("TEST_DB_HOST", "pg.example.com")
		t.Setenv("TEST_DB_USER", "testuser")
		t.Setenv("TEST_DB_PASSWORD", "secret123")

		cfg, err := LoadConfigWithTarget(filepath.Join("testdata", "valid_env_vars.yaml"), "", nil)
		require.NoError(t, err)

		assert.Equal(t, "pg.example.com", cfg.Target.Host)
		assert.Equal(t, "testuser", cfg.Target.User)
		assert.Equal(t, "secret123", cfg.Target.Password)
	})

	t.Run("compiler settings and relative paths", func(t *testing.T) {
		ResetConfig()
		cfgPath := filepath.Join("testdata", "compiler.yaml")
		cfg, err := LoadConfigWithTarget(cfgPath, "", nil)
		require.NoError(t, err)

		root, err := filepath.Abs("testdata")
		require.NoError(t, err)
		assert.Equal(t, root, cfg.ProjectRoot)
		assert.Equal(t, filepath.Join(root, "config", "rules"), cfg.RulesDir)
		assert.Equal(t, filepath.Join(root, "build", "schema.json"), cfg.CatalogPath)
		assert.Equal(t, filepath.Join(root, DefaultArtifactsDir), cfg.ArtifactsDir)
		assert.Equal(t, filepath.Join(root, DefaultStateFile), cfg.StatePath)
		assert.Nil(t, cfg.Target)

		assert.Equal(t, []string{"way_area", "area"}, cfg.Compiler.AreaColumns)
		assert.Equal(t, []string{"polygon", "point"}, cfg.Compiler.SourceOrder)
		assert.Equal(t, 25, cfg.Compiler.TopN)
		assert.Equal(t, cfgPath, GetConfigFileUsed())
		assert.Same(t, cfg, GetCurrentConfig())
	})
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, Default().Validate())

	cfg := Default()
	cfg.RulesDir = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rules_dir is required")
}

func TestConfig_ValidatePaths(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{RulesDir: filepath.Join(dir, "rules"), CatalogPath: filepath.Join(dir, "schema.json")}

	assert.ErrorContains(t, cfg.ValidateRulesDir(), "rules directory does not exist")
	assert.ErrorContains(t, cfg.ValidateCatalog(), "aeroscore introspect")

	require.NoError(t, os.Mkdir(cfg.RulesDir, 0o755))
	require.NoError(t, os.WriteFile(cfg.CatalogPath, []byte("{}"), 0o600))
	assert.NoError(t, cfg.ValidateRulesDir())
	assert.NoError(t, cfg.ValidateCatalog())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aeroscore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigWithTarget_FlagPrecedence(t *testing.T) {
	ResetConfig()
	cfgPath := writeConfig(t, "dialect: duckdb\n")
	t.Setenv("AEROSCORE_DIALECT", "postgres")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("dialect", "", "")
	require.NoError(t, flags.Set("dialect", "duckdb"))

	cfg, err := LoadConfigWithTarget(cfgPath, "", flags)
	require.NoError(t, err)
	assert.Equal(t, "duckdb", cfg.Dialect, "flag value should override config file and env var")
}

func TestLoadConfigWithTarget_EnvPrecedenceOverFile(t *testing.T) {
	ResetConfig()
	cfgPath := writeConfig(t, "dialect: duckdb\n")
	t.Setenv("AEROSCORE_DIALECT", "postgres")

	cfg, err := LoadConfigWithTarget(cfgPath, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Dialect)
}

func TestLoadConfigWithTarget_FlagNotSetUsesEnv(t *testing.T) {
	ResetConfig()
	cfgPath := writeConfig(t, "dialect: duckdb\n")
	t.Setenv("AEROSCORE_DIALECT", "postgres")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("dialect", "", "")

	cfg, err := LoadConfigWithTarget(cfgPath, "", flags)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Dialect)
}

func TestLoadConfigWithTarget_PathFlagsRelativeToCWD(t *testing.T) {
	ResetConfig()
	cfgPath := writeConfig(t, "rules_dir: from_file\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("rules-dir", "", "")
	flags.String("state", "", "")
	flags.String("catalog", "", "")
	require.NoError(t, flags.Set("rules-dir", "my_rules"))
	require.NoError(t, flags.Set("state", ":memory:"))
	require.NoError(t, flags.Set("catalog", "out/schema.json"))

	cfg, err := LoadConfigWithTarget(cfgPath, "", flags)
	require.NoError(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "my_rules"), cfg.RulesDir)
	assert.Equal(t, filepath.Join(wd, "out", "schema.json"), cfg.CatalogPath)
	assert.Equal(t, ":memory:", cfg.StatePath)
}
