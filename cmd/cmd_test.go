package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gopkg.in/yaml.v3"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

const page = `<!DOCTYPE html><html><body>
<ul id="list"><li class="item">one</li><li class="item">two</li></ul>
</body></html>`

// executeCommand runs a fresh root command with args and returns its output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("VQUERY_LOGGER_LEVEL", "error")

	rootCmd := newRootCmd()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/index.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, page)
	})
	mux.HandleFunc("/items", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"name":"widget","count":2}`)
	})
	mux.HandleFunc("/fragment", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<li>a</li><li>b</li>`)
	})
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintf(w, "%s %s %s", r.Method, r.Header.Get("X-Token"), body)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRun_ScriptAgainstFile(t *testing.T) {
	html := writeFile(t, "page.html", page)
	script := writeFile(t, "script.js", `
		$("#list li").each(function (i) { console.log(i, $(this).text()); });
		setTimeout(function () { console.log("later"); }, 5);
		console.log("sync");
	`)

	out, err := executeCommand(t, "run", script, "--html", html)
	require.NoError(t, err)
	assert.Equal(t, "0 one\n1 two\nsync\nlater\n", out)
}

func TestRun_WithoutDocument(t *testing.T) {
	script := writeFile(t, "empty.js", `console.log($("li").length);`)

	out, err := executeCommand(t, "run", script)
	require.NoError(t, err)
	assert.Equal(t, "0\n", out)
}

func TestRun_AjaxAgainstServer(t *testing.T) {
	srv := newServer(t)
	script := writeFile(t, "ajax.js", `
		$.getJSON("items").done(function (data) {
			console.log(data.name, $("li").length);
		});
	`)

	out, err := executeCommand(t, "run", script, "--html", srv.URL+"/index.html")
	require.NoError(t, err)
	assert.Equal(t, "widget 2\n", out)
}

func TestRun_Errors(t *testing.T) {
	t.Run("script throws", func(t *testing.T) {
		script := writeFile(t, "throw.js", `throw new Error("boom");`)
		_, err := executeCommand(t, "run", script)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("callback throws", func(t *testing.T) {
		script := writeFile(t, "late.js", `setTimeout(function () { throw new Error("late failure"); }, 1);`)
		_, err := executeCommand(t, "run", script)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "late failure")
	})

	t.Run("missing script", func(t *testing.T) {
		_, err := executeCommand(t, "run", filepath.Join(t.TempDir(), "absent.js"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read script")
	})

	t.Run("missing argument", func(t *testing.T) {
		_, err := executeCommand(t, "run")
		assert.Error(t, err)
	})
}

func TestFetch(t *testing.T) {
	srv := newServer(t)

	t.Run("json", func(t *testing.T) {
		out, err := executeCommand(t, "fetch", srv.URL+"/items")
		require.NoError(t, err)
		assert.Contains(t, out, `"name": "widget"`)
		assert.Contains(t, out, `"count": 2`)
	})

	t.Run("html", func(t *testing.T) {
		out, err := executeCommand(t, "fetch", srv.URL+"/fragment")
		require.NoError(t, err)
		assert.Equal(t, "<li>a</li>\n<li>b</li>\n", out)
	})

	t.Run("forced text", func(t *testing.T) {
		out, err := executeCommand(t, "fetch", srv.URL+"/items", "--type", "text")
		require.NoError(t, err)
		assert.Equal(t, `{"name":"widget","count":2}`+"\n", out)
	})

	t.Run("post with header", func(t *testing.T) {
		out, err := executeCommand(t, "fetch", srv.URL+"/echo", "-X", "POST", "-d", "a=1", "-H", "X-Token: abc")
		require.NoError(t, err)
		assert.Equal(t, "POST abc a=1\n", out)
	})

	t.Run("status error", func(t *testing.T) {
		_, err := executeCommand(t, "fetch", srv.URL+"/missing")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error")
		assert.Contains(t, err.Error(), "404")
	})

	t.Run("bad header", func(t *testing.T) {
		_, err := executeCommand(t, "fetch", srv.URL+"/items", "-H", "no-colon")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid header")
	})
}

func TestConfigFlag(t *testing.T) {
	t.Run("invalid values", func(t *testing.T) {
		cfg := writeFile(t, "vquery.yaml", "logger:\n  format: xml\n")
		script := writeFile(t, "noop.js", ``)
		_, err := executeCommand(t, "--config", cfg, "run", script)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})

	t.Run("missing file", func(t *testing.T) {
		script := writeFile(t, "noop.js", ``)
		_, err := executeCommand(t, "-c", filepath.Join(t.TempDir(), "absent.yaml"), "run", script)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error reading config file")
	})
}

func TestConfigCommand(t *testing.T) {
	cfgFile := writeFile(t, "vquery.yaml", "ajax:\n  rate_limit: 4\n  rate_burst: 2\n")
	t.Setenv("VQUERY_NETWORK_USER_AGENT", "agent/9")

	out, err := executeCommand(t, "config", "-c", cfgFile)
	require.NoError(t, err)

	var got struct {
		Logger struct {
			Level string `yaml:"level"`
		} `yaml:"logger"`
		Network struct {
			UserAgent string `yaml:"user_agent"`
		} `yaml:"network"`
		Ajax struct {
			RateLimit float64 `yaml:"rate_limit"`
			RateBurst int     `yaml:"rate_burst"`
		} `yaml:"ajax"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, "error", got.Logger.Level)
	assert.Equal(t, "agent/9", got.Network.UserAgent)
	assert.Equal(t, 4.0, got.Ajax.RateLimit)
	assert.Equal(t, 2, got.Ajax.RateBurst)
}
