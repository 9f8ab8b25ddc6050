package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// executeCommand runs a fresh command tree with the given args and stdin and
// captures stdout/stderr. Each test runs in an empty directory so no config
// file is picked up.
func executeCommand(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	t.Chdir(t.TempDir())

	var outBuf, errBuf bytes.Buffer

	root := newRootCmd()
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&outBuf)
	root.SetErr(&errBuf)
	root.SetArgs(args)

	err = root.Execute()

	return outBuf.String(), errBuf.String(), err
}

func TestTools_JSON(t *testing.T) {
	stdout, _, err := executeCommand(t, "", "tools", "--output", "json")
	require.NoError(t, err)

	var infos []registrationInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &infos))

	names := make(map[string]string, len(infos))
	for _, info := range infos {
		names[info.Name] = info.Kind
	}

	require.Equal(t, "tool", names["add"])
	require.Equal(t, "tool", names["check_mermaid_code"])
	require.Equal(t, "resource", names["greeting://{name}"])
	require.Equal(t, "resource", names["info://server"])
}

func TestTools_YAML(t *testing.T) {
	stdout, _, err := executeCommand(t, "", "tools")
	require.NoError(t, err)

	var infos []registrationInfo
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &infos))
	require.NotEmpty(t, infos)
	require.Equal(t, "add", infos[0].Name)
	require.Len(t, infos[0].Params, 2)
	require.Equal(t, "a", infos[0].Params[0].Name)
}

func TestTools_UnsupportedOutput(t *testing.T) {
	_, _, err := executeCommand(t, "", "tools", "-o", "xml")
	require.ErrorContains(t, err, `unsupported output format "xml"`)
}

func TestServe_Stdio(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"multiply","arguments":{"a":4,"b":2.5}}}` + "\n"

	stdout, _, err := executeCommand(t, input, "serve", "--log-level", "error")
	require.NoError(t, err)

	var resp struct {
		ID     int `json:"id"`
		Result struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(stdout)), &resp))
	require.Equal(t, 1, resp.ID)
	require.Len(t, resp.Result.Content, 1)
	require.Equal(t, "10", resp.Result.Content[0].Text)
}

func TestServe_LogsToStderr(t *testing.T) {
	stdout, stderr, err := executeCommand(t, "", "--log-level", "debug", "--log-format", "json")
	require.NoError(t, err)
	require.Empty(t, stdout)
	require.Contains(t, stderr, `"msg":"Serving MCP on stdio"`)
}

func TestServe_InvalidFlags(t *testing.T) {
	_, _, err := executeCommand(t, "", "--log-format", "xml")
	require.ErrorContains(t, err, "logging.format")
}

func TestServe_MissingConfigFile(t *testing.T) {
	_, _, err := executeCommand(t, "", "--config", "/nonexistent/cwmanager.json")
	require.ErrorContains(t, err, "/nonexistent/cwmanager.json")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cwmanager.json")

	stdout, _, err := executeCommand(t, "", "config", "init", path)
	require.NoError(t, err)
	require.Contains(t, stdout, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"workers"`)

	_, _, err = executeCommand(t, "", "config", "init", path)
	require.ErrorContains(t, err, "already exists")
}
