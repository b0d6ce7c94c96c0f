// Command abpshell is an interactive shell over the ad-blocking
// platform: it boots the embedded runtime, constructs the filter
// engine on demand and exposes filter management and match queries as
// line commands.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/joeycumines/goja-adblock/internal/config"
	"github.com/joeycumines/goja-adblock/internal/shell"
	"github.com/joeycumines/goja-adblock/platform"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	defaultLocale := "en-US"
	if v, ok := cfg.Option("locale"); ok {
		defaultLocale = v
	}

	var (
		debug       = flag.Bool("debug", cfg.BoolOption("debug", false), "enable debug logging")
		showVersion = flag.Bool("version", false, "print the version and exit")
		locale      = flag.String("locale", defaultLocale, "application locale reported to scripts")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("abpshell", version)
		return nil
	}

	log, err := newLogger(*debug)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() {
		_ = log.Sync()
	}()

	p := platform.New(platform.CreationParameters{Logger: log})
	defer func() {
		_ = p.Close()
	}()

	appInfo := platform.AppInfo{
		Name:        "abpshell",
		Version:     version,
		Application: "abpshell",
		Locale:      *locale,
	}
	if err := p.SetUp(appInfo); err != nil {
		return fmt.Errorf("platform setup: %w", err)
	}

	if len(cfg.Filters) > 0 {
		fe, err := p.GetFilterEngine()
		if err != nil {
			return fmt.Errorf("constructing filter engine: %w", err)
		}
		for _, text := range cfg.Filters {
			if err := fe.AddFilter(text); err != nil {
				log.Warn("skipping configured filter", zap.String("filter", text), zap.Error(err))
			}
		}
		log.Info("preloaded configured filters", zap.Int("count", len(cfg.Filters)))
	}

	sh := shell.New(p, os.Stdin, os.Stdout, os.Stderr, log)
	return sh.Run()
}

// newLogger builds a stderr logger so log lines never interleave with
// shell output on stdout.
func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}
