package main

import (
	"flag"
	"io"

	"connascence/internal/core/analysis"
	coreerrors "connascence/internal/core/errors"
)

const defaultConfigPath = "./connascence.toml"

type cliOptions struct {
	configPath string
	mode       string
	verbose    bool
	version    bool
	trend      bool
	limit      int
	args       []string
}

func parseOptions(args []string, stderr io.Writer) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("connascence", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.configPath, "config", defaultConfigPath, "Path to config file")
	fs.StringVar(&opts.mode, "mode", "", "Execution mode: batch, streaming or hybrid (overrides config)")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")
	fs.BoolVar(&opts.trend, "trend", false, "Print the score trend from the history store and exit")
	fs.IntVar(&opts.limit, "limit", 20, "Maximum number of violations to list (0 lists none)")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, coreerrors.Wrap(err, coreerrors.CodeConfiguration, "parse flags")
	}
	if opts.mode != "" {
		if _, ok := analysis.ParseMode(opts.mode); !ok {
			return cliOptions{}, coreerrors.Newf(coreerrors.CodeConfiguration, "unknown mode %q", opts.mode)
		}
	}
	if opts.limit < 0 {
		return cliOptions{}, coreerrors.New(coreerrors.CodeConfiguration, "-limit must not be negative")
	}
	opts.args = fs.Args()
	return opts, nil
}
