package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/zest/internal/codec"
	"github.com/unkn0wn-root/zest/internal/history"
	"github.com/unkn0wn-root/zest/internal/zest"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/hello" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeScript(t *testing.T, dir, name string, s *zest.Script) string {
	t.Helper()
	data, err := codec.MarshalJSON(s)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func helloScript(prefix, path string) *zest.Script {
	s := zest.NewScript()
	s.Title = "hello"
	s.Prefix = prefix
	s.Parameters.Tokens = map[string]string{"greeting": "hey"}
	req := zest.NewRequest("GET", prefix+path)
	req.AddAssertion(&zest.ExpressionStatusCode{Code: 200})
	s.Add(req)
	s.Add(&zest.ActionPrint{Message: "{{greeting}} {{" + zest.VarResponseBody + "}}"})
	return s
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ZEST_CONFIG_DIR", dir)
	return dir
}

func TestUsageErrors(t *testing.T) {
	isolate(t)
	for _, tc := range []struct {
		name string
		args []string
		want string
	}{
		{"no script", nil, "No script specified"},
		{"unknown flag", []string{"-bogus"}, "Parameter not recognised: bogus"},
		{"stray argument", []string{"-script", "a.zst", "extra"}, "Parameter not recognised: extra"},
		{"bad timeout", []string{"-script", "a.zst", "-timeout", "abc"}, "-timeout must be a number"},
		{"bad token", []string{"-script", "a.zst", "-token", "novalue"}, "Invalid token"},
		{"summary and list", []string{"-script", "a.zst", "-summary", "-list"}, "only one of"},
		{"history and version", []string{"-history", "-version"}, "only one of"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, tc.args...)
			assert.Equal(t, exitUsage, code)
			assert.Contains(t, stderr, tc.want)
			assert.Contains(t, stderr, "Usage: -script <file>")
		})
	}
}

func TestMissingScript(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "nope.zst")
	code, _, stderr := runCLI(t, "-script", path)
	assert.Equal(t, exitLoad, code)
	assert.Contains(t, stderr, "Script "+path+" does not exist")
}

func TestInvalidScript(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "broken.zst")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	code, _, _ := runCLI(t, "-script", path)
	assert.Equal(t, exitLoad, code)
}

func TestSummaryAndList(t *testing.T) {
	isolate(t)
	path := writeScript(t, t.TempDir(), "hello.zst", helloScript("http://host", "/hello"))

	code, out, _ := runCLI(t, "-script", path, "-summary")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "Title:       hello\n")

	code, out, _ = runCLI(t, "-script", path, "-list")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "1: GET http://host/hello\n")
}

func TestRunWithTokens(t *testing.T) {
	isolate(t)
	srv := newServer(t)
	path := writeScript(t, t.TempDir(), "hello.zst", helloScript(srv.URL, "/hello"))

	code, out, stderr := runCLI(t, "-script", path)
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, "hey ok\n", out)

	code, out, _ = runCLI(t, "-script", path, "-token", "greeting=hi", "-timeout", "5")
	require.Equal(t, exitOK, code)
	assert.Equal(t, "hi ok\n", out)
}

func TestPrefixRewritesRequests(t *testing.T) {
	isolate(t)
	srv := newServer(t)
	path := writeScript(t, t.TempDir(), "hello.zst", helloScript("http://placeholder.invalid", "/hello"))

	code, out, stderr := runCLI(t, "-script", path, "-prefix", srv.URL)
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, "hey ok\n", out)

	code, _, _ = runCLI(t, "-script", path, "-prefix", "not-a-url")
	assert.Equal(t, exitLoad, code)
}

func TestAssertionFailureExitCode(t *testing.T) {
	isolate(t)
	srv := newServer(t)
	path := writeScript(t, t.TempDir(), "missing.zst", helloScript(srv.URL, "/missing"))

	code, _, _ := runCLI(t, "-script", path)
	assert.Equal(t, exitRuntime, code)
}

func TestVersionWarning(t *testing.T) {
	isolate(t)
	s := helloScript("http://host", "/hello")
	s.ZestVersion = "0.3"
	path := writeScript(t, t.TempDir(), "old.zst", s)

	code, _, stderr := runCLI(t, "-script", path, "-summary")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stderr, "Warning: Zest version 0.3 is not the latest (0.8) and so may not be supported")
}

func TestDirectoryRunRecordsHistory(t *testing.T) {
	cfgDir := isolate(t)
	dbPath := filepath.Join(cfgDir, "runs.db")
	settings := fmt.Sprintf("[history]\nenabled = true\npath = %q\n", dbPath)
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "settings.toml"), []byte(settings), 0o644))

	srv := newServer(t)
	dir := t.TempDir()
	writeScript(t, dir, "a.zst", helloScript(srv.URL, "/hello"))
	writeScript(t, dir, "b.zst", helloScript(srv.URL, "/missing"))

	code, out, _ := runCLI(t, "-script", dir, "-token", "greeting=yo")
	assert.Equal(t, exitRuntime, code)
	assert.Contains(t, out, "yo ok\n")

	store, err := history.Open(dbPath, 0)
	require.NoError(t, err)
	defer store.Close()
	entries, err := store.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	outcomes := map[string]string{}
	for _, e := range entries {
		outcomes[filepath.Base(e.ScriptPath)] = e.Outcome
		assert.Equal(t, "yo", e.Tokens["greeting"])
		assert.Equal(t, 1, e.Requests)
	}
	assert.Equal(t, "success", outcomes["a.zst"])
	assert.Equal(t, "assertion-failed", outcomes["b.zst"])
}

func TestHistoryListAndDelete(t *testing.T) {
	cfgDir := isolate(t)
	dbPath := filepath.Join(cfgDir, "runs.db")
	settings := fmt.Sprintf("[history]\nenabled = true\npath = %q\n", dbPath)
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "settings.toml"), []byte(settings), 0o644))

	code, out, _ := runCLI(t, "-history")
	require.Equal(t, exitOK, code)
	assert.Equal(t, "No runs recorded\n", out)

	srv := newServer(t)
	dir := t.TempDir()
	ok := writeScript(t, dir, "ok.zst", helloScript(srv.URL, "/hello"))
	missing := writeScript(t, dir, "missing.zst", helloScript(srv.URL, "/missing"))
	code, _, _ = runCLI(t, "-script", ok)
	require.Equal(t, exitOK, code)
	code, _, _ = runCLI(t, "-script", missing)
	require.Equal(t, exitRuntime, code)

	code, out, _ = runCLI(t, "-history")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "success")
	assert.Contains(t, out, "assertion-failed")

	code, out, _ = runCLI(t, "-history", "-script", ok)
	require.Equal(t, exitOK, code)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "success")
	assert.Contains(t, lines[0], "ok.zst")
	id := strings.Fields(lines[0])[0]

	code, out, _ = runCLI(t, "-history-delete", id)
	require.Equal(t, exitOK, code)
	assert.Equal(t, "Deleted "+id+"\n", out)

	code, _, stderr := runCLI(t, "-history-delete", id)
	assert.Equal(t, exitRuntime, code)
	assert.Contains(t, stderr, "No recorded run with id "+id)

	code, out, _ = runCLI(t, "-history", "-script", ok)
	require.Equal(t, exitOK, code)
	assert.Equal(t, "No runs recorded\n", out)
}

func TestInitSettings(t *testing.T) {
	cfgDir := isolate(t)
	path := filepath.Join(cfgDir, "settings.toml")

	code, out, _ := runCLI(t, "-init-settings")
	require.Equal(t, exitOK, code)
	assert.Equal(t, "Wrote "+path+"\n", out)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[history]")

	code, _, stderr := runCLI(t, "-init-settings")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "already exists")
}

func TestVersion(t *testing.T) {
	isolate(t)
	code, out, _ := runCLI(t, "-version")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "Zest version: 0.8\n")
	assert.Contains(t, out, "htmlunit")
	assert.Contains(t, out, "firefox")
	assert.Contains(t, out, "js")
}

func TestCommandLineAuthReplacesScriptAuth(t *testing.T) {
	isolate(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "cli" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	t.Cleanup(srv.Close)

	s := helloScript(srv.URL, "/hello")
	s.Authentication = []zest.Authentication{
		&zest.HTTPAuthentication{Site: srv.URL, Realm: "r", Username: "script", Password: "wrong"},
	}
	path := writeScript(t, t.TempDir(), "auth.zst", s)

	code, _, _ := runCLI(t, "-script", path)
	assert.Equal(t, exitRuntime, code)

	code, out, stderr := runCLI(t, "-script", path,
		"-http-auth-site", srv.URL, "-http-auth-realm", "r",
		"-http-auth-user", "cli", "-http-auth-password", "secret")
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, "hey ok\n", out)
}
