package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("RAGBRAIN_TEST_FROM_FILE=loaded\nRAGBRAIN_TEST_PRESET=file\n"), 0o600))

	t.Setenv("RAGBRAIN_TEST_PRESET", "env")
	t.Setenv("RAGBRAIN_TEST_FROM_FILE", "")
	require.NoError(t, os.Unsetenv("RAGBRAIN_TEST_FROM_FILE"))

	require.NoError(t, loadEnvFiles([]string{path}))
	assert.Equal(t, "loaded", os.Getenv("RAGBRAIN_TEST_FROM_FILE"))
	assert.Equal(t, "env", os.Getenv("RAGBRAIN_TEST_PRESET"), "existing variables win")
}

func TestLoadEnvFiles_MissingExplicitFile(t *testing.T) {
	err := loadEnvFiles([]string{filepath.Join(t.TempDir(), "nope.env")})
	assert.Error(t, err)
}

func TestReadDocument(t *testing.T) {
	t.Run("stdin", func(t *testing.T) {
		cmd := ingestCmd
		cmd.SetIn(strings.NewReader("doc body"))
		got, err := readDocument(cmd, []string{"-"})
		require.NoError(t, err)
		assert.Equal(t, "doc body", string(got))
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "doc.md")
		require.NoError(t, os.WriteFile(path, []byte("# Hours"), 0o600))
		got, err := readDocument(ingestCmd, []string{path})
		require.NoError(t, err)
		assert.Equal(t, "# Hours", string(got))
	})
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	assert.Contains(t, out.String(), "Version:    dev")
}
