// Package cli locates external command-line tools and checks their versions.
//
// The Discoverer searches in the following order:
//  1. Explicit path in Config.CliPath (if provided)
//  2. System PATH
//  3. Common installation directories (/usr/local/bin, /usr/bin, ~/.local/bin,
//     plus any Config.CommonPaths)
//
// Example usage:
//
//	discoverer := cli.NewDiscoverer(&cli.Config{
//	    Binary:         "mmdc",
//	    MinimumVersion: "10.0.0",
//	    Logger:         slog.Default(),
//	})
//	cliPath, err := discoverer.Discover(ctx)
//
// A version below Config.MinimumVersion only produces a warning. Version
// checking can be skipped via Config.SkipVersionCheck or the environment
// variable named in Config.SkipVersionEnv.
package cli
