package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/genflow/catalog"
	"github.com/BaSui01/genflow/flow"
	"github.com/BaSui01/genflow/testutil/fixtures"
	"github.com/BaSui01/genflow/testutil/mocks"
	"github.com/BaSui01/genflow/types"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "genflow "+Version)
	assert.Contains(t, out, "Go Version:")
}

func TestFlowsCmd(t *testing.T) {
	out, err := execute(t, "", "flows")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	for _, d := range catalog.Definitions() {
		assert.Contains(t, out, d.Name)
	}
	assert.Contains(t, out, "TEXT,IMAGE")

	out, err = execute(t, "", "flows", "--json")
	require.NoError(t, err)
	var descs []flow.Descriptor
	require.NoError(t, json.Unmarshal([]byte(out), &descs))
	assert.Len(t, descs, len(catalog.Definitions()))
	assert.NotEmpty(t, descs[0].InputSchema)
}

func TestCheckCmd(t *testing.T) {
	out, err := execute(t, "", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "ok    flow "+catalog.RemoveBackground)
	assert.Contains(t, out, "ok    config")

	bad := writeFile(t, "genflow.yaml", "log:\n  level: loud\n")
	out, err = execute(t, "", "check", "--config", bad)
	require.Error(t, err)
	assert.Contains(t, out, "FAIL  config")
	assert.Contains(t, out, "invalid log level")
}

func TestRunCmd(t *testing.T) {
	backend := mocks.NewTextBackend(fixtures.BacklinksJSON)
	useBackend(t, backend)

	out, err := execute(t, "", "run", catalog.CheckBacklinks, "--input", `{"domain":"example.com"}`)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 54.0, got["domainAuthority"])
	assert.Equal(t, 1, backend.GetCallCount())
}

func TestRunCmd_InputSources(t *testing.T) {
	useBackend(t, mocks.NewTextBackend(fixtures.BacklinksJSON))

	path := writeFile(t, "input.json", `{"domain":"example.com"}`)
	_, err := execute(t, "", "run", catalog.CheckBacklinks, "--input", "@"+path)
	require.NoError(t, err)

	_, err = execute(t, `{"domain":"example.com"}`, "run", catalog.CheckBacklinks, "--input", "-")
	require.NoError(t, err)
}

func TestRunCmd_Failures(t *testing.T) {
	useBackend(t, mocks.NewTextBackend(fixtures.BacklinksMissingAuthorityJSON))

	_, err := execute(t, "", "run", catalog.CheckBacklinks, "--input", `["example.com"]`)
	te, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrInputValidation, te.Code)

	out, err := execute(t, "", "run", catalog.CheckBacklinks, "--input", `{"domain":"example.com"}`)
	te, ok = types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrOutputValidation, te.Code)
	assert.Contains(t, out, `"code": "OUTPUT_VALIDATION_FAILED"`)
	assert.Contains(t, out, "domainAuthority", "the CLI reports field violations in full")

	_, err = execute(t, "", "run", "nope")
	te, ok = types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrFlowNotFound, te.Code)
}

func TestBatchCmd(t *testing.T) {
	useBackend(t, mocks.NewTextBackend(fixtures.BacklinksJSON))

	calls := `[
		{"flow": "checkBacklinks", "input": {"domain": "example.com"}},
		{"flow": "missing", "input": {}},
		{"flow": "checkBacklinks", "input": {"domain": "example.org"}}
	]`
	path := writeFile(t, "calls.json", calls)

	out, err := execute(t, "", "batch", "--file", path, "--limit", "2")
	require.EqualError(t, err, "1 of 3 calls failed")

	var items []batchItem
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 3)
	assert.True(t, items[0].Success)
	assert.JSONEq(t, fixtures.BacklinksJSON, string(items[0].Output))
	assert.False(t, items[1].Success)
	assert.Equal(t, string(types.ErrFlowNotFound), items[1].Error.Code)
	assert.True(t, items[2].Success)

	_, err = execute(t, "not json", "batch")
	assert.Error(t, err)
}

func TestHealthCmd(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" && r.URL.Path != "/ready" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	out, err := execute(t, "", "health", "--addr", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "healthy")

	status.Store(http.StatusServiceUnavailable)
	_, err = execute(t, "", "health", "--addr", srv.URL, "--ready")
	assert.ErrorContains(t, err, "status 503")
}
