package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/asynctrace/codec"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "none.yaml")))
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func tempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "asynctrace dev\n", out)
}

func TestRead_Template(t *testing.T) {
	path := tempFile(t, "hello world")

	out, stderr, err := execute(t, "read", path, "--template", "{{range .}}{{.type}} {{end}}")
	require.NoError(t, err)
	assert.Equal(t, "FSREQWRAP FSREQWRAP FSREQWRAP FSREQWRAP ", out)
	assert.Contains(t, stderr, "read "+path+" (11 B)")
}

func TestRead_PresetCapturesStacks(t *testing.T) {
	path := tempFile(t, "hello")

	out, _, err := execute(t, "read", path, "--template", "{{range .}}{{count .initStack}} {{count .beforeStacks}} {{count .destroyStack}}\n{{end}}")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	for _, line := range lines {
		var initFrames, before, destroyFrames int
		_, err := fmt.Sscanf(line, "%d %d %d", &initFrames, &before, &destroyFrames)
		require.NoError(t, err)
		assert.Positive(t, initFrames, line)
		assert.Equal(t, 1, before, line)
		assert.Positive(t, destroyFrames, line)
	}
}

func TestRead_JSONWithMetrics(t *testing.T) {
	path := tempFile(t, "hello")

	out, stderr, err := execute(t, "read", path, "--metrics")
	require.NoError(t, err)

	var snapshot []any
	require.NoError(t, codec.Decode([]byte(out), codec.JSON, &snapshot))
	assert.Len(t, snapshot, 4)
	assert.Contains(t, stderr, `asynctrace_events_total{event="init",type="FSREQWRAP"} 4`)
}

func TestRead_CBORToFile(t *testing.T) {
	path := tempFile(t, "hello")
	target := filepath.Join(t.TempDir(), "snapshot.cbor")

	_, stderr, err := execute(t, "read", path, "-f", "cbor", "--compress", "-o", target)
	require.NoError(t, err)
	assert.Contains(t, stderr, "wrote ")

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.True(t, codec.Compressed(data))
	var snapshot []any
	require.NoError(t, codec.Decode(data, codec.CBOR, &snapshot))
	assert.Len(t, snapshot, 4)
}

func TestRead_MissingFile(t *testing.T) {
	_, _, err := execute(t, "read", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestStat_NoPreset(t *testing.T) {
	out, stderr, err := execute(t, "stat", t.TempDir(), "--preset", "none", "--template", "{{count .}}")
	require.NoError(t, err)
	assert.Equal(t, "1", out)
	assert.Contains(t, stderr, "modified")
}

func TestWatch(t *testing.T) {
	_, _, err := execute(t, "watch", t.TempDir(), "--for", "10ms", "--template", "{{range .}}{{.type}}{{end}}")
	require.NoError(t, err)
}

func TestInvalidFlags(t *testing.T) {
	path := tempFile(t, "x")

	_, _, err := execute(t, "read", path, "--preset", "bogus")
	assert.ErrorContains(t, err, "unknown preset")

	_, _, err = execute(t, "read", path, "--format", "xml")
	assert.Error(t, err)
}
