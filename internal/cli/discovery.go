package cli

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wagiedev/cwmanager/internal/errors"
)

// VersionCheckTimeout is the timeout for the CLI version check command.
const VersionCheckTimeout = 5 * time.Second

var versionPattern = regexp.MustCompile(`([0-9]+\.[0-9]+\.[0-9]+)`)

// Config holds configuration for CLI discovery.
type Config struct {
	// Binary is the executable name searched for in PATH.
	Binary string

	// CliPath is an explicit CLI path that skips PATH search.
	// If empty, discovery will search PATH and common locations.
	CliPath string

	// CommonPaths are extra directories checked after PATH.
	CommonPaths []string

	// MinimumVersion is the lowest supported version ("X.Y.Z").
	// Empty disables the version check.
	MinimumVersion string

	// VersionArgs are passed to the binary to print its version.
	// Defaults to --version.
	VersionArgs []string

	// SkipVersionCheck skips version validation during discovery.
	SkipVersionCheck bool

	// SkipVersionEnv names an environment variable that, when set, also
	// skips the version check.
	SkipVersionEnv string

	// Logger is an optional logger for discovery operations.
	// If nil, a no-op logger is used.
	Logger *slog.Logger
}

// Discoverer locates and validates an external CLI binary.
type Discoverer interface {
	// Discover locates the binary and validates its version.
	// Returns the path to the binary or a *errors.CLINotFoundError.
	Discover(ctx context.Context) (string, error)
}

type discoverer struct {
	cfg *Config
	log *slog.Logger
}

// Compile-time verification that discoverer implements Discoverer.
var _ Discoverer = (*discoverer)(nil)

// NewDiscoverer creates a new CLI discoverer with the given configuration.
func NewDiscoverer(cfg *Config) Discoverer {
	if cfg == nil {
		cfg = &Config{}
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &discoverer{
		cfg: cfg,
		log: log.With("component", "cli", "binary", cfg.Binary),
	}
}

// Discover locates the binary and validates its version.
func (d *discoverer) Discover(ctx context.Context) (string, error) {
	d.log.Debug("Discovering CLI binary")

	cliPath, err := d.findCLI()
	if err != nil {
		d.log.Warn("Failed to find CLI", "error", err)

		return "", err
	}

	d.log.Debug("Found CLI binary", "cli_path", cliPath)

	d.checkVersion(ctx, cliPath)

	return cliPath, nil
}

func (d *discoverer) findCLI() (string, error) {
	if d.cfg.CliPath != "" {
		d.log.Debug("Using explicit CLI path", "cli_path", d.cfg.CliPath)

		if info, err := os.Stat(d.cfg.CliPath); err == nil && !info.IsDir() {
			return d.cfg.CliPath, nil
		}

		return "", &errors.CLINotFoundError{Binary: d.cfg.Binary, SearchedPaths: []string{d.cfg.CliPath}}
	}

	searchedPaths := make([]string, 0, 4+len(d.cfg.CommonPaths))

	if d.cfg.Binary != "" {
		if path, err := exec.LookPath(d.cfg.Binary); err == nil {
			d.log.Debug("Found binary in PATH", "path", path)

			return path, nil
		}
	}

	searchedPaths = append(searchedPaths, "$PATH")

	for _, path := range d.commonPaths() {
		searchedPaths = append(searchedPaths, path)

		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			d.log.Debug("Found CLI at common path", "path", path)

			return path, nil
		}
	}

	return "", &errors.CLINotFoundError{Binary: d.cfg.Binary, SearchedPaths: searchedPaths}
}

func (d *discoverer) commonPaths() []string {
	if d.cfg.Binary == "" {
		return nil
	}

	dirs := []string{"/usr/local/bin", "/usr/bin"}

	if homeDir, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(homeDir, ".local/bin"))
	}

	dirs = append(dirs, d.cfg.CommonPaths...)

	paths := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		paths = append(paths, filepath.Join(dir, d.cfg.Binary))
	}

	return paths
}

// checkVersion logs a warning when the binary reports a version below the
// minimum. Errors are ignored.
func (d *discoverer) checkVersion(ctx context.Context, cliPath string) {
	if d.cfg.MinimumVersion == "" || d.cfg.SkipVersionCheck {
		d.log.Debug("Skipping CLI version check (configured)")

		return
	}

	if d.cfg.SkipVersionEnv != "" && os.Getenv(d.cfg.SkipVersionEnv) != "" {
		d.log.Debug("Skipping CLI version check", "env", d.cfg.SkipVersionEnv)

		return
	}

	version, ok := d.version(ctx, cliPath)
	if !ok {
		return
	}

	if compareVersions(version, d.cfg.MinimumVersion) < 0 {
		d.log.Warn("CLI version is below the supported minimum",
			"version", version,
			"minimum_required", d.cfg.MinimumVersion,
		)

		return
	}

	d.log.Debug("CLI version check passed", "version", version, "minimum", d.cfg.MinimumVersion)
}

// version runs the binary's version command and extracts "X.Y.Z".
func (d *discoverer) version(ctx context.Context, cliPath string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, VersionCheckTimeout)
	defer cancel()

	args := d.cfg.VersionArgs
	if len(args) == 0 {
		args = []string{"--version"}
	}

	output, err := exec.CommandContext(ctx, cliPath, args...).Output()
	if err != nil {
		d.log.Debug("CLI version check failed", "error", err)

		return "", false
	}

	return ParseVersion(string(output))
}

// ParseVersion extracts the first "X.Y.Z" from version output.
func ParseVersion(output string) (string, bool) {
	match := versionPattern.FindStringSubmatch(strings.TrimSpace(output))
	if match == nil {
		return "", false
	}

	return match[1], true
}

// compareVersions compares two semantic versions.
// Returns -1 if a < b, 0 if a == b, 1 if a > b.
func compareVersions(a, b string) int {
	aParts := strings.Split(a, ".")
	bParts := strings.Split(b, ".")

	for i := range 3 {
		aNum := 0
		bNum := 0

		if i < len(aParts) {
			aNum, _ = strconv.Atoi(aParts[i])
		}

		if i < len(bParts) {
			bNum, _ = strconv.Atoi(bParts[i])
		}

		if aNum < bNum {
			return -1
		}

		if aNum > bNum {
			return 1
		}
	}

	return 0
}
