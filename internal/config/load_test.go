package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0600))
	return p
}

func TestLoadFile(t *testing.T) {
	t.Setenv("TEST_DPB_PASSWORD", "s3cret")

	p := writeTemp(t, "config.yaml", `
db_names: [data, docassemble]
db_pass: $(TEST_DPB_PASSWORD)
compression: zstd
dry_run: true
storage:
  offsite:
    type: rclone
    remote: "b2:backups"
notify:
  phone:
    type: pushbullet
    token: abc
`)

	c := New()
	require.NoError(t, c.LoadFile(p))

	assert.Equal(t, []string{"data", "docassemble"}, c.DBNames)
	assert.Equal(t, "s3cret", c.DBPass)
	assert.Equal(t, CompressionZstd, c.Compression)
	assert.True(t, c.DryRun)
	assert.Equal(t, "postgres", c.DBUser, "keys missing from the file keep their defaults")
	assert.True(t, c.Rotation)

	pool := c.StoragePools["offsite"]
	require.NotNil(t, pool)
	assert.Equal(t, "offsite", pool.Name)
	assert.Equal(t, "rclone", pool.Type)
	assert.Equal(t, map[string]string{"remote": "b2:backups"}, pool.Options)

	notify := c.NotifyConfigs["phone"]
	require.NotNil(t, notify)
	assert.Equal(t, "pushbullet", notify.Type)
	assert.Equal(t, "abc", notify.Options["token"])
}

func TestLoadFile_PoolsMergeWithEnv(t *testing.T) {
	t.Setenv("DPB_STORAGE_OFFSITE_CONFIG", "/etc/rclone.conf")

	p := writeTemp(t, "config.yaml", "storage:\n  offsite:\n    type: rclone\n    remote: \"b2:\"\n")

	c := New()
	require.NoError(t, c.LoadFile(p))
	require.NoError(t, c.ParseStoragePools())

	pool := c.StoragePools["offsite"]
	assert.Equal(t, "b2:", pool.Options["remote"])
	assert.Equal(t, "/etc/rclone.conf", pool.Options["config"])
	assert.Equal(t, "offsite", c.DefaultStorage)
}

func TestLoadFile_Missing(t *testing.T) {
	err := New().LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "reading config file")
}

func TestLoadFile_Invalid(t *testing.T) {
	p := writeTemp(t, "config.yaml", "db_names: {not: [a list")
	err := New().LoadFile(p)
	assert.ErrorContains(t, err, "unmarshalling yaml")
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_DPB_A", "alpha")

	assert.Equal(t, "x alpha y", expandEnvVars("x $(TEST_DPB_A) y"))
	assert.Equal(t, "x  y", expandEnvVars("x $(TEST_DPB_UNSET_VAR) y"))
	assert.Equal(t, "$HOME stays", expandEnvVars("$HOME stays"))
}

func TestLoadDotEnv(t *testing.T) {
	p := writeTemp(t, ".env", "TEST_DPB_FROM_FILE=file\nTEST_DPB_PRESET=file\n")
	t.Setenv("TEST_DPB_PRESET", "process")
	t.Setenv("TEST_DPB_FROM_FILE", "")
	os.Unsetenv("TEST_DPB_FROM_FILE")

	require.NoError(t, LoadDotEnv(p, true))
	assert.Equal(t, "file", os.Getenv("TEST_DPB_FROM_FILE"))
	assert.Equal(t, "process", os.Getenv("TEST_DPB_PRESET"), "existing variables win")
}

func TestLoadDotEnv_Missing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), ".env")

	assert.NoError(t, LoadDotEnv(missing, false))
	assert.Error(t, LoadDotEnv(missing, true))
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("DPB_DB_NAMES", "data, docassemble")
	t.Setenv("DPB_CONTAINERS", "pg-1,pg-2")
	t.Setenv("DPB_DB_HOST", "localhost")
	t.Setenv("DPB_DRY_RUN", "true")
	t.Setenv("DPB_ROTATION", "0")
	t.Setenv("DPB_COMPRESSION", "zstd")

	c := New()
	require.NoError(t, c.ApplyEnv())

	assert.Equal(t, []string{"data", "docassemble"}, c.DBNames)
	assert.Equal(t, []string{"pg-1", "pg-2"}, c.Containers)
	assert.Equal(t, "localhost", c.DBHost)
	assert.True(t, c.DryRun)
	assert.False(t, c.Rotation)
	assert.Equal(t, CompressionZstd, c.Compression)
	assert.Equal(t, "postgres", c.DBUser)
}

func TestApplyEnv_InvalidBool(t *testing.T) {
	t.Setenv("DPB_DIAGNOSTIC", "sometimes")

	err := New().ApplyEnv()
	assert.ErrorContains(t, err, "DPB_DIAGNOSTIC")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitList(" a ,, b "))
	assert.Nil(t, SplitList(""))
}
