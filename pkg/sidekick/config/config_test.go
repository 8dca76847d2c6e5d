package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/randalmurphal/sidekick/pkg/sidekick/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNew verifies Config creation from maps.
func TestNew(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
	}{
		{"nil map", nil},
		{"empty map", map[string]any{}},
		{"with values", map[string]any{"key": "value"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.NotNil(t, cfg.Raw())
		})
	}
}

// TestString verifies string extraction with defaults.
func TestString(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string]any
		key        string
		defaultVal string
		want       string
	}{
		{"key exists", map[string]any{"name": "alice"}, "name", "default", "alice"},
		{"key missing", map[string]any{"other": "value"}, "name", "default", "default"},
		{"empty string", map[string]any{"name": ""}, "name", "default", ""},
		{"wrong type int", map[string]any{"name": 123}, "name", "default", "default"},
		{"wrong type bool", map[string]any{"name": true}, "name", "default", "default"},
		{"nil map", nil, "name", "default", "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.Equal(t, tt.want, cfg.String(tt.key, tt.defaultVal))
		})
	}
}

// TestDuration verifies duration extraction with various input types.
func TestDuration(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string]any
		key        string
		defaultVal time.Duration
		want       time.Duration
	}{
		{"string duration", map[string]any{"timeout": "30s"}, "timeout", 10 * time.Second, 30 * time.Second},
		{"string complex", map[string]any{"timeout": "1h30m"}, "timeout", 10 * time.Second, 90 * time.Minute},
		{"int seconds", map[string]any{"timeout": 60}, "timeout", 10 * time.Second, 60 * time.Second},
		{"int64 seconds", map[string]any{"timeout": int64(45)}, "timeout", 10 * time.Second, 45 * time.Second},
		{"float64 seconds", map[string]any{"timeout": 30.5}, "timeout", 10 * time.Second, 30*time.Second + 500*time.Millisecond},
		{"duration directly", map[string]any{"timeout": 5 * time.Minute}, "timeout", 10 * time.Second, 5 * time.Minute},
		{"key missing", map[string]any{"other": "x"}, "timeout", 10 * time.Second, 10 * time.Second},
		{"invalid string", map[string]any{"timeout": "invalid"}, "timeout", 10 * time.Second, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.Equal(t, tt.want, cfg.Duration(tt.key, tt.defaultVal))
		})
	}
}

// TestInt verifies integer extraction with type conversions.
func TestInt(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
		want int
	}{
		{"int", map[string]any{"n": 42}, 42},
		{"int64", map[string]any{"n": int64(7)}, 7},
		{"whole float", map[string]any{"n": 3.0}, 3},
		{"fractional float rejected", map[string]any{"n": 3.5}, -1},
		{"wrong type", map[string]any{"n": "42"}, -1},
		{"missing", map[string]any{}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.Equal(t, tt.want, cfg.Int("n", -1))
		})
	}
}

// TestBoolAndFloat verifies the remaining scalar accessors.
func TestBoolAndFloat(t *testing.T) {
	cfg := config.New(map[string]any{
		"flag":  true,
		"ratio": 0.5,
		"count": 3,
	})

	assert.True(t, cfg.Bool("flag", false))
	assert.False(t, cfg.Bool("missing", false))
	assert.Equal(t, 0.5, cfg.Float("ratio", 1.0))
	assert.Equal(t, 3.0, cfg.Float("count", 1.0))
	assert.Equal(t, 1.0, cfg.Float("missing", 1.0))
}

// TestStringSlice verifies slice extraction from both native and decoded forms.
func TestStringSlice(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
		want []string
	}{
		{"string slice", map[string]any{"tags": []string{"a", "b"}}, []string{"a", "b"}},
		{"any slice", map[string]any{"tags": []any{"a", "b"}}, []string{"a", "b"}},
		{"mixed any slice", map[string]any{"tags": []any{"a", 1}}, nil},
		{"missing", map[string]any{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.Equal(t, tt.want, cfg.StringSlice("tags", nil))
		})
	}
}

// TestSub verifies nested section access.
func TestSub(t *testing.T) {
	cfg := config.New(map[string]any{
		"llm": map[string]any{
			"model": "gpt-4o-mini",
		},
		"scalar": "not a section",
	})

	assert.Equal(t, "gpt-4o-mini", cfg.Sub("llm").String("model", ""))
	assert.Equal(t, "fallback", cfg.Sub("missing").String("model", "fallback"))
	assert.Equal(t, "fallback", cfg.Sub("scalar").String("model", "fallback"))
}

// TestExpandEnv verifies ${VAR} substitution from the environment.
func TestExpandEnv(t *testing.T) {
	t.Setenv("SIDEKICK_TEST_KEY", "secret-123")

	cfg := config.New(map[string]any{
		"api_key": "${SIDEKICK_TEST_KEY}",
		"nested": map[string]any{
			"url": "https://${SIDEKICK_TEST_HOST}/v1",
		},
	})

	expanded := cfg.ExpandEnv()
	assert.Equal(t, "secret-123", expanded.String("api_key", ""))
	// Unset variables are left intact rather than emptied.
	assert.Equal(t, "https://${SIDEKICK_TEST_HOST}/v1", expanded.Sub("nested").String("url", ""))
}

// TestFromYAML verifies YAML parsing.
func TestFromYAML(t *testing.T) {
	cfg, err := config.FromYAML([]byte("name: test\ncount: 5\n"))
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.String("name", ""))
	assert.Equal(t, 5, cfg.Int("count", 0))

	_, err = config.FromYAML([]byte("{invalid"))
	assert.Error(t, err)
}

// TestFromJSON verifies JSON parsing.
func TestFromJSON(t *testing.T) {
	cfg, err := config.FromJSON([]byte(`{"name": "test", "count": 5}`))
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.String("name", ""))
	assert.Equal(t, 5, cfg.Int("count", 0))

	_, err = config.FromJSON([]byte("{invalid"))
	assert.Error(t, err)
}

// TestFromFile verifies extension-based format detection.
func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("name: from-yaml\n"), 0o644))

	cfg, err := config.FromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "from-yaml", cfg.String("name", ""))

	txtPath := filepath.Join(dir, "config.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("x"), 0o644))
	_, err = config.FromFile(txtPath)
	assert.ErrorContains(t, err, "unsupported config file extension")

	_, err = config.FromFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

// TestLoadDotenv verifies .env loading semantics.
func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("SIDEKICK_DOTENV_VAR=loaded\n"), 0o644))

	t.Setenv("SIDEKICK_DOTENV_VAR", "")
	os.Unsetenv("SIDEKICK_DOTENV_VAR")

	require.NoError(t, config.LoadDotenv(envPath))
	assert.Equal(t, "loaded", os.Getenv("SIDEKICK_DOTENV_VAR"))

	// Explicit paths must exist.
	assert.Error(t, config.LoadDotenv(filepath.Join(dir, "missing.env")))

	// The implicit .env is optional.
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	assert.NoError(t, config.LoadDotenv())
}
