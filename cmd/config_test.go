package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/comply/internal/output"
)

// testEnv sets up isolated config dir, viper, and output for testing.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	// Override configDirFunc for tests
	origFunc := configDirFunc
	configDirFunc = func() (string, error) { return dir, nil }
	t.Cleanup(func() { configDirFunc = origFunc })

	// Reset viper and the shared store
	viper.Reset()
	setDefaults(dir)
	closeStore(t)

	// Initialize output
	ui = output.New()
	ui.Out = &bytes.Buffer{}
	ui.ErrOut = &bytes.Buffer{}

	return dir
}

func TestConfigInit_CreatesFile(t *testing.T) {
	dir := testEnv(t)

	err := configInitRun()
	require.NoError(t, err)

	cfgPath := filepath.Join(dir, "config.yaml")
	_, err = os.Stat(cfgPath)
	assert.NoError(t, err, "config file should exist")

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "comply configuration")
	assert.Contains(t, string(data), "max_rounds")
	assert.Contains(t, string(data), `citation_prefix: "FCA"`)
}

func TestConfigInit_RefusesOverwrite(t *testing.T) {
	dir := testEnv(t)

	// Create existing file
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0644))

	configForce = false
	err := configInitRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestConfigInit_ForceOverwrite(t *testing.T) {
	dir := testEnv(t)

	// Create existing file
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0644))

	configForce = true
	err := configInitRun()
	require.NoError(t, err)

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "comply configuration")
}

func TestConfigShow_NoFile(t *testing.T) {
	testEnv(t)

	err := configShowRun()
	assert.NoError(t, err)
}

func TestConfigShow_WithFile(t *testing.T) {
	testEnv(t)

	// Create config first
	require.NoError(t, configInitRun())

	err := configShowRun()
	assert.NoError(t, err)
}

func TestConfigEdit_NoEditor(t *testing.T) {
	testEnv(t)
	t.Setenv("EDITOR", "")
	t.Setenv("VISUAL", "")

	err := configEditRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "$EDITOR is not set")
}

func TestConfigEdit_NoConfigFile(t *testing.T) {
	testEnv(t)
	t.Setenv("EDITOR", "echo")

	err := configEditRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestEnvVarFor(t *testing.T) {
	assert.Equal(t, "COMPLY_DB_PATH", envVarFor("db_path"))
	assert.Equal(t, "COMPLY_REVIEW_RETRY_MAX_ATTEMPTS", envVarFor("review.retry.max_attempts"))
}

func TestSourceOf(t *testing.T) {
	dir := testEnv(t)
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("review:\n  max_rounds: 2\n"), 0o644))
	file := fileConfig(cfgPath)
	require.NotNil(t, file)

	t.Setenv("COMPLY_PORT", "9090")

	assert.Equal(t, "env: COMPLY_PORT", sourceOf("port", file))
	assert.Equal(t, "file", sourceOf("review.max_rounds", file))
	assert.Equal(t, "default", sourceOf("review.citation_prefix", file))
	assert.Equal(t, "unset", sourceOf("anthropic.api_key_missing", nil))
}

func TestFileConfig_Missing(t *testing.T) {
	assert.Nil(t, fileConfig(filepath.Join(t.TempDir(), "absent.yaml")))
}

func TestEditorCommand(t *testing.T) {
	t.Setenv("EDITOR", "code --wait")
	t.Setenv("VISUAL", "vim")

	got, err := editorCommand()
	require.NoError(t, err)
	assert.Equal(t, []string{"code", "--wait"}, got)

	t.Setenv("EDITOR", "")
	got, err = editorCommand()
	require.NoError(t, err)
	assert.Equal(t, []string{"vim"}, got)
}

func TestConfigShow_ListsSources(t *testing.T) {
	dir := testEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("port: 9000\n"), 0o644))

	require.NoError(t, configShowRun())
	out := ui.Out.(*bytes.Buffer).String()
	assert.Contains(t, out, "review.max_rounds")
	assert.Contains(t, out, "unset")
	assert.Contains(t, out, "file")
}

func TestConfigInit_DryRun(t *testing.T) {
	dir := testEnv(t)
	dryRun = true
	ui.DryRun = true
	t.Cleanup(func() { dryRun = false })

	err := configInitRun()
	require.NoError(t, err)

	// File should NOT have been created
	cfgPath := filepath.Join(dir, "config.yaml")
	_, err = os.Stat(cfgPath)
	assert.True(t, os.IsNotExist(err), "config file should not exist in dry-run mode")
}

// closeStore drops the shared store so the next getStore opens the test db.
func closeStore(t *testing.T) {
	t.Helper()
	if dataStore != nil {
		_ = dataStore.Close()
		dataStore = nil
	}
	t.Cleanup(func() {
		if dataStore != nil {
			_ = dataStore.Close()
			dataStore = nil
		}
	})
}

func TestConfigInit_RendersCurrentValues(t *testing.T) {
	dir := testEnv(t)
	viper.Set("review.max_rounds", 2)
	viper.Set("review.citation_prefix", "PRA")

	require.NoError(t, configInitRun())

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "max_rounds: 2")
	assert.Contains(t, string(data), `citation_prefix: "PRA"`)
	assert.Contains(t, string(data), "initial_interval: 500ms")
}
