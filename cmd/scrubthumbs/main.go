package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"scrubthumbs/internal/config"
	"scrubthumbs/internal/logging"
	"scrubthumbs/internal/startup"
)

const usage = `Usage: scrubthumbs <command> [flags]

Commands:
  serve      run the HTTP API
  generate   build or load thumbnails for one video
  evict      trim the cache to its low-water mark
  stats      print cache usage
  version    print build information

Run "scrubthumbs <command> -h" for command flags.
`

var errUsage = errors.New("usage")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		logging.Error("%v", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "serve":
		return runServe(rest)
	case "generate":
		return runGenerate(rest, stdout)
	case "evict":
		return runEvict(rest, stdout)
	case "stats":
		return runStats(rest, stdout)
	case "version", "-v", "--version":
		info := startup.GetBuildInfo()
		fmt.Fprintf(stdout, "scrubthumbs %s (commit %s, built %s, %s)\n", info.Version, info.Commit, info.BuildTime, info.GoVersion)
		return nil
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

// newFlagSet returns a flag set with the shared -config flag.
func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	configFile := fs.String("config", "", "path to a YAML config file")
	return fs, configFile
}

// loadConfig reads configuration and applies its log level.
func loadConfig(file string) (*config.Config, error) {
	cfg, err := config.Load(file)
	if err != nil {
		return nil, err
	}
	if level, ok := logging.ParseLevel(cfg.Logging.Level); ok {
		logging.SetLevel(level)
	} else {
		logging.Warn("Unknown logging.level %q, keeping %s", cfg.Logging.Level, logging.GetLevel())
	}
	return cfg, nil
}
