package cmd

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aop-weaver/internal/testutil"
	"github.com/aop-weaver/internal/weaver"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "version "+Version)
	assert.Contains(t, out, "Go Version:")
}

func TestParseCommand(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteMetadata(t, dir, "classes.yaml", append(testutil.ShopClasses(), testutil.ShopLoggingAspect())...)

	out, err := execute(t, "parse", "-m", path, `class(App\Service\*)`)
	require.NoError(t, err)
	assert.Contains(t, out, `expression: class(App\Service\*)`)
	assert.Contains(t, out, "filter:")
	assert.Contains(t, out, `classes:    App\Service\BaseService, App\Service\UserService`)
}

func TestParseCommand_InvalidExpression(t *testing.T) {
	parseMetadata = nil
	_, err := execute(t, "parse", `class(App\Service\*`)
	assert.Error(t, err)
}

func TestWeaveCommand(t *testing.T) {
	dir := t.TempDir()
	metadataPath := testutil.WriteMetadata(t, dir, "classes.yaml", append(testutil.ShopClasses(), testutil.ShopLoggingAspect())...)
	reportFile := filepath.Join(dir, "report.json")
	configFile := testutil.WriteFile(t, dir, "weaver.yaml", "log:\n  level: error\nstorage:\n  local_path: "+filepath.Join(dir, "published")+"\n")

	out, err := execute(t, "weave", "-c", configFile, "-m", metadataPath, "-r", reportFile, "--print")
	require.NoError(t, err)

	var printed weaver.Report
	require.NoError(t, json.Unmarshal([]byte(out), &printed))
	assert.Equal(t, 2, printed.Summary.Proxied)
	assert.True(t, testutil.FileExists(t, reportFile))
}
