package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/schmitthub/release-images/internal/cmd"
	"github.com/schmitthub/release-images/internal/testenv"
)

// Harness runs the CLI in-process against a fake GitHub + Docker Hub API and
// a recording container engine.
type Harness struct {
	T *testing.T

	// UpstreamTags is served newest first, PageSize per page.
	UpstreamTags []string
	PageSize     int
	// RegistryTags is the raw Docker Hub tag list, arch variants included.
	RegistryTags []string
	// FailUpstream / FailRegistry make the fake API answer 500.
	FailUpstream bool
	FailRegistry bool

	Engine *Engine
	Env    *testenv.Env

	server *httptest.Server
}

type RunResult struct {
	ExitCode int
	Err      error
	Stdout   string
	Logs     string
}

func New(t *testing.T, opts ...testenv.Option) *Harness {
	t.Helper()

	h := &Harness{
		T:        t,
		PageSize: 100,
		Engine:   &Engine{},
		Env:      testenv.New(t, opts...),
	}
	h.server = httptest.NewServer(http.HandlerFunc(h.serve))
	t.Cleanup(h.server.Close)

	return h
}

// URL is the base URL for both --upstream-api-url and --registry-api-url.
func (h *Harness) URL() string {
	return h.server.URL
}

func (h *Harness) serve(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasPrefix(r.URL.Path, "/repos/") && strings.HasSuffix(r.URL.Path, "/tags"):
		if h.FailUpstream {
			http.Error(w, "upstream down", http.StatusInternalServerError)
			return
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		start := (page - 1) * h.PageSize
		body := make([]map[string]string, 0)
		for i := start; page >= 1 && i < len(h.UpstreamTags) && i < start+h.PageSize; i++ {
			body = append(body, map[string]string{"name": h.UpstreamTags[i]})
		}
		_ = json.NewEncoder(w).Encode(body)

	case strings.HasPrefix(r.URL.Path, "/v2/repositories/"):
		if h.FailRegistry {
			http.Error(w, "hub down", http.StatusInternalServerError)
			return
		}
		results := make([]map[string]string, 0, len(h.RegistryTags))
		for _, tag := range h.RegistryTags {
			results = append(results, map[string]string{"name": tag})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"results": results})

	default:
		http.NotFound(w, r)
	}
}

// Run executes a CLI command through the full cmd.NewRootCmdWithDeps pipeline.
func (h *Harness) Run(args ...string) *RunResult {
	h.T.Helper()

	var stdout, logs bytes.Buffer
	rootCmd := cmd.NewRootCmdWithDeps("test", "test", cmd.Deps{
		HTTPClient:   h.server.Client(),
		EngineRunner: h.Engine.Run,
		LogOut:       &logs,
	})
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&logs)
	rootCmd.SetIn(strings.NewReader(""))

	err := rootCmd.ExecuteContext(context.Background())

	exitCode := 0
	if err != nil {
		exitCode = 1
		// Same rule as main: only a top-level exit coder sets the status.
		if coded, ok := err.(interface{ ExitCode() int }); ok {
			exitCode = coded.ExitCode()
		}
	}

	return &RunResult{ExitCode: exitCode, Err: err, Stdout: stdout.String(), Logs: logs.String()}
}

// Engine records engine invocations as "binary arg arg ..." lines.
type Engine struct {
	mu       sync.Mutex
	Commands []string
	Stdin    []string
	// FailOn fails the first command whose line starts with it.
	FailOn string
}

func (e *Engine) Run(_ context.Context, stdin, name string, args ...string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	line := strings.Join(append([]string{name}, args...), " ")
	e.Commands = append(e.Commands, line)
	e.Stdin = append(e.Stdin, stdin)

	if e.FailOn != "" && strings.HasPrefix(line, e.FailOn) {
		return []byte("simulated failure"), fmt.Errorf("exit status 1")
	}
	return nil, nil
}

// Matching returns the recorded commands that start with prefix.
func (e *Engine) Matching(prefix string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]string, 0)
	for _, c := range e.Commands {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}
