package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marc-casperlabs/stuffer-shack/internal/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := config.Load(config.LoadInput{WorkDir: dir})
	require.NoError(t, err)
	require.Equal(t, ".", cfg.DataDir)
	require.Equal(t, uint64(1<<30), cfg.DefaultCapacity)
	require.Equal(t, uint32(32), cfg.DefaultKeySize)
}

func TestLoad_ProjectConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.ConfigFileName), `{"data_dir": "stores", "default_key_size": 16}`)

	cfg, err := config.Load(config.LoadInput{WorkDir: dir})
	require.NoError(t, err)
	require.Equal(t, "stores", cfg.DataDir)
	require.Equal(t, uint32(16), cfg.DefaultKeySize)
	require.Equal(t, uint64(1<<30), cfg.DefaultCapacity, "unset fields keep the default")
}

func TestLoad_ProjectConfigWithComments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.ConfigFileName), `{
		// key size for content-addressed hashes
		"default_key_size": 20,
	}`)

	cfg, err := config.Load(config.LoadInput{WorkDir: dir})
	require.NoError(t, err)
	require.Equal(t, uint32(20), cfg.DefaultKeySize)
}

func TestLoad_ExplicitConfigPathMustExist(t *testing.T) {
	dir := t.TempDir()

	_, err := config.Load(config.LoadInput{WorkDir: dir, ConfigPath: "missing.json"})
	require.ErrorIs(t, err, config.ErrConfigFileNotFound)
}

func TestLoad_ExplicitConfigPathOverridesProjectFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.ConfigFileName), `{"data_dir": "project-dir"}`)
	writeFile(t, filepath.Join(dir, "custom.json"), `{"data_dir": "custom-dir"}`)

	cfg, err := config.Load(config.LoadInput{WorkDir: dir, ConfigPath: "custom.json"})
	require.NoError(t, err)
	require.Equal(t, "custom-dir", cfg.DataDir)
}

func TestLoad_GlobalConfigAppliesBeforeProject(t *testing.T) {
	globalDir := filepath.Join(t.TempDir(), "casdb")
	require.NoError(t, os.Mkdir(globalDir, 0o755))
	writeFile(t, filepath.Join(globalDir, "config.json"), `{"data_dir": "global-dir", "default_key_size": 8}`)

	projectDir := t.TempDir()
	writeFile(t, filepath.Join(projectDir, config.ConfigFileName), `{"data_dir": "project-dir"}`)

	cfg, err := config.Load(config.LoadInput{
		WorkDir: projectDir,
		Env:     map[string]string{"XDG_CONFIG_HOME": filepath.Dir(globalDir)},
	})
	require.NoError(t, err)
	// The project file overrides the global data_dir; default_key_size
	// is only set in the global file, so its value applies.
	require.Equal(t, "project-dir", cfg.DataDir)
	require.Equal(t, uint32(8), cfg.DefaultKeySize)
}

func TestLoad_ExplicitEmptyDataDirKeepsDefault(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.ConfigFileName), `{"data_dir": ""}`)

	cfg, err := config.Load(config.LoadInput{WorkDir: dir})
	require.NoError(t, err)
	require.Equal(t, ".", cfg.DataDir)
}
