package e2e_test

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	binaryPath     string
	binaryBuildErr error
	binaryOnce     sync.Once
	sharedTempDir  string
)

// TestMain sets up and tears down shared test resources.
func TestMain(m *testing.M) {
	var err error
	sharedTempDir, err = os.MkdirTemp("", "ferry-e2e-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp dir: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	_ = os.RemoveAll(sharedTempDir)

	os.Exit(code)
}

// Token is a static bearer token granted to a user.
type Token struct {
	Token  string
	UserID string
	Roles  []string
}

// ServerConfig holds configuration for starting the ferry server.
type ServerConfig struct {
	Port      int
	Method    string // force, xsendfile, redirect
	DBType    string // sqlite, postgres
	DBDSN     string
	UploadDir string
	Tokens    []Token
	Metrics   bool
}

// buildBinary compiles the ferry binary once per test run.
// Returns the path to the compiled binary.
func buildBinary(t *testing.T) string {
	t.Helper()

	binaryOnce.Do(func() {
		binaryPath = filepath.Join(sharedTempDir, "ferry")

		cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/ferry")
		cmd.Dir = getProjectRoot(t)
		output, err := cmd.CombinedOutput()
		if err != nil {
			binaryBuildErr = fmt.Errorf("build binary: %w\nOutput: %s", err, output)
			return
		}
	})

	if binaryBuildErr != nil {
		t.Fatalf("failed to build binary: %v", binaryBuildErr)
	}

	return binaryPath
}

// getProjectRoot returns the root directory of the ferry module.
func getProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err, "get working directory")

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// createConfigFile writes a config file for cfg and returns its path.
func createConfigFile(t *testing.T, cfg ServerConfig) string {
	t.Helper()

	method := cfg.Method
	if method == "" {
		method = "force"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `server:
  port: %d

delivery:
  method: %s
  redirect_fallback: true

content:
  upload_dir: "%s"

database:
  type: %s
  dsn: "%s"

telemetry:
  enabled: %t
`,
		cfg.Port,
		method,
		cfg.UploadDir,
		cfg.DBType,
		cfg.DBDSN,
		cfg.Metrics,
	)

	if len(cfg.Tokens) > 0 {
		sb.WriteString("\nauth:\n  tokens:\n")
		for _, tok := range cfg.Tokens {
			fmt.Fprintf(&sb, "    - token: %s\n      user_id: %q\n      roles: [%s]\n",
				tok.Token, tok.UserID, strings.Join(tok.Roles, ", "))
		}
	}

	sb.WriteString("\nlog:\n  level: error\n")

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(configPath, []byte(sb.String()), 0o600)
	require.NoError(t, err, "write config file")

	return configPath
}

// runCLI runs a ferry subcommand against configPath and returns its output.
func runCLI(t *testing.T, configPath string, args ...string) string {
	t.Helper()

	binary := buildBinary(t)

	args = append(args, "--config", configPath)
	cmd := exec.Command(binary, args...)
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "ferry %s: %s", strings.Join(args, " "), output)

	return string(output)
}

// startServer starts ferry serve with configPath. The returned function
// stops the server.
func startServer(t *testing.T, cfg ServerConfig, configPath string) (string, func()) {
	t.Helper()

	binary := buildBinary(t)

	cmd := exec.Command(binary, "serve", "--config", configPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Start()
	require.NoError(t, err, "start server")

	baseURL := fmt.Sprintf("http://localhost:%d", cfg.Port)

	waitForServer(t, baseURL, 10*time.Second)

	cleanup := func() {
		if cmd.Process != nil {
			_ = cmd.Process.Signal(syscall.SIGTERM)
			_ = cmd.Wait()
		}
	}

	return baseURL, cleanup
}

// waitForServer polls the server until it responds or times out.
func waitForServer(t *testing.T, baseURL string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 1 * time.Second}

	for time.Now().Before(deadline) {
		resp, err := client.Get(baseURL + "/")
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(100 * time.Millisecond)
	}

	t.Fatalf("server failed to start within %v", timeout)
}

// getOpenPort finds an available TCP port.
func getOpenPort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", ":0")
	require.NoError(t, err, "find open port")

	addr := l.Addr().(*net.TCPAddr)
	port := addr.Port

	err = l.Close()
	require.NoError(t, err, "close port")

	return port
}
