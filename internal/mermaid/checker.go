package mermaid

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/wagiedev/cwmanager/internal/cli"
)

const (
	// Binary is the Mermaid CLI executable name.
	Binary = "mmdc"

	// MinimumVersion is the lowest mmdc version known to work.
	MinimumVersion = "10.0.0"

	// DefaultTimeout bounds a single validation run.
	DefaultTimeout = 30 * time.Second

	// SkipVersionCheckEnv disables the mmdc version check when set.
	SkipVersionCheckEnv = "CWMANAGER_SKIP_MMDC_VERSION_CHECK"
)

var (
	// ErrCodeRequired is returned when the diagram code is empty.
	ErrCodeRequired = stderrors.New("code is required")

	// ErrValidationTimeout is returned when mmdc does not finish in time.
	ErrValidationTimeout = stderrors.New("validation timed out")
)

const validationFailed = "Validation failed"

var lineNumberPattern = regexp.MustCompile(`(?i)line\s+(\d+)`)

// Result is the outcome of validating one diagram.
type Result struct {
	Valid       bool   `json:"valid"`
	DiagramType string `json:"diagram_type,omitempty"`
	// ErrorLine is the line reported by mmdc, or 0 when unknown.
	ErrorLine    int    `json:"error_line,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// RunResult is the outcome of one CLI invocation.
type RunResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes the Mermaid CLI.
type Runner interface {
	Run(ctx context.Context, cliPath string, args ...string) (*RunResult, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Compile-time verification that ExecRunner implements Runner.
var _ Runner = ExecRunner{}

// Run implements Runner. A non-zero exit status is reported in the result,
// not as an error.
func (ExecRunner) Run(ctx context.Context, cliPath string, args ...string) (*RunResult, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, cliPath, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	if exitErr, ok := stderrors.AsType[*exec.ExitError](err); ok {
		return &RunResult{
			ExitCode: exitErr.ExitCode(),
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
		}, nil
	}

	if err != nil {
		return nil, err
	}

	return &RunResult{Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

// Config configures a Checker.
type Config struct {
	// CliPath is an explicit mmdc path. If empty, mmdc is discovered.
	CliPath string

	// Timeout bounds a single validation. Defaults to DefaultTimeout.
	Timeout time.Duration

	// SkipVersionCheck disables the mmdc version warning.
	SkipVersionCheck bool

	// Runner executes mmdc. Defaults to ExecRunner.
	Runner Runner

	// Discoverer locates mmdc. Defaults to a cli.Discoverer built from the
	// fields above.
	Discoverer cli.Discoverer

	Logger *slog.Logger
}

// Checker validates Mermaid code with mmdc.
type Checker struct {
	runner     Runner
	discoverer cli.Discoverer
	timeout    time.Duration
	log        *slog.Logger

	mu      sync.Mutex
	cliPath string
}

// NewChecker creates a Checker. mmdc is located lazily on first use so a
// missing CLI only fails the requests that need it.
func NewChecker(cfg *Config) *Checker {
	if cfg == nil {
		cfg = &Config{}
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	runner := cfg.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	discoverer := cfg.Discoverer
	if discoverer == nil {
		discoverer = cli.NewDiscoverer(&cli.Config{
			Binary:           Binary,
			CliPath:          cfg.CliPath,
			CommonPaths:      npmGlobalDirs(),
			MinimumVersion:   MinimumVersion,
			SkipVersionCheck: cfg.SkipVersionCheck,
			SkipVersionEnv:   SkipVersionCheckEnv,
			Logger:           log,
		})
	}

	return &Checker{
		runner:     runner,
		discoverer: discoverer,
		timeout:    timeout,
		log:        log.With("component", "mermaid"),
	}
}

// npmGlobalDirs lists directories where npm installs global binaries.
func npmGlobalDirs() []string {
	var dirs []string

	if prefix := os.Getenv("NPM_CONFIG_PREFIX"); prefix != "" {
		dirs = append(dirs, filepath.Join(prefix, "bin"))
	}

	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".npm-global", "bin"))
	}

	return append(dirs, "/opt/homebrew/bin")
}

// Timeout returns the per-validation timeout.
func (c *Checker) Timeout() time.Duration {
	return c.timeout
}

func (c *Checker) resolveCLI(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cliPath != "" {
		return c.cliPath, nil
	}

	path, err := c.discoverer.Discover(ctx)
	if err != nil {
		return "", err
	}

	c.cliPath = path

	return path, nil
}

// Validate checks the syntax of one diagram.
//
// A syntax error is reported in the Result. Errors are returned for empty
// code (ErrCodeRequired), a missing CLI (*errors.CLINotFoundError), a run
// that exceeds the timeout (ErrValidationTimeout) and I/O failures.
func (c *Checker) Validate(ctx context.Context, code string) (*Result, error) {
	if strings.TrimSpace(code) == "" {
		return nil, ErrCodeRequired
	}

	cliPath, err := c.resolveCLI(ctx)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "cwmanager-mermaid-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}

	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			c.log.Debug("Failed to remove temp dir", "dir", dir, "error", err)
		}
	}()

	input := filepath.Join(dir, "diagram.mmd")
	output := filepath.Join(dir, "diagram.svg")

	if err := os.WriteFile(input, []byte(code), 0o600); err != nil {
		return nil, fmt.Errorf("write diagram: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	started := time.Now()
	run, err := c.runner.Run(runCtx, cliPath, "--input", input, "--output", output)

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if stderrors.Is(runCtx.Err(), context.DeadlineExceeded) {
		c.log.Warn("Mermaid validation timed out", "timeout", c.timeout)

		return nil, fmt.Errorf("%w after %s", ErrValidationTimeout, c.timeout)
	}

	if err != nil {
		return nil, fmt.Errorf("run %s: %w", Binary, err)
	}

	diagramType := DetectDiagramType(code)

	c.log.Debug("Mermaid validation finished",
		"exit_code", run.ExitCode,
		"diagram_type", diagramType,
		"duration", time.Since(started),
	)

	if run.ExitCode == 0 {
		return &Result{Valid: true, DiagramType: diagramType}, nil
	}

	line, message := parseCLIError(run.Stderr)

	return &Result{
		Valid:        false,
		DiagramType:  diagramType,
		ErrorLine:    line,
		ErrorMessage: message,
	}, nil
}

// parseCLIError extracts the reported line number and the first non-empty
// line of mmdc's stderr.
func parseCLIError(stderr string) (int, string) {
	line := 0
	if m := lineNumberPattern.FindStringSubmatch(stderr); m != nil {
		line, _ = strconv.Atoi(m[1])
	}

	for l := range strings.SplitSeq(stderr, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			return line, l
		}
	}

	return line, validationFailed
}
