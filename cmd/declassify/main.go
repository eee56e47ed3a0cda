// Command declassify converts React class components into function
// components with hooks.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gnana997/declassify/pkg/declassify"
	"github.com/gnana997/declassify/pkg/parser"
	"github.com/gnana997/declassify/pkg/parser/queries"
	"github.com/gnana997/declassify/pkg/runner"
	"github.com/gnana997/declassify/pkg/util"
)

const version = "0.1.0-dev"

// errPendingChanges makes check exit non-zero without printing an error.
var errPendingChanges = errors.New("some files need conversion")

// globalOptions are the persistent flags of the root command.
type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	workers    int
	include    []string
	exclude    []string
}

// app is everything a command needs, built after flags are parsed.
type app struct {
	cfg       *ProjectConfig
	logger    *slog.Logger
	parsers   *parser.ParserManager
	queries   *queries.QueryManager
	include   []string
	exclude   []string
	workers   int
	cacheSize int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errPendingChanges) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "declassify",
		Short:         "Convert React class components into function components",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "project config file (default .declassify/config.yaml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format: text, json")
	flags.IntVarP(&opts.workers, "workers", "j", -1, "parallel conversions (0 = one per CPU)")
	flags.StringSliceVar(&opts.include, "include", nil, "include glob, repeatable (overrides config)")
	flags.StringSliceVar(&opts.exclude, "exclude", nil, "exclude glob, repeatable (overrides config)")

	root.AddCommand(
		newConvertCmd(opts),
		newCheckCmd(opts),
		newWatchCmd(opts),
		newServeCmd(opts),
		newInitCmd(opts),
		newSetupCmd(),
		newVersionCmd(),
	)
	return root
}

// newApp loads the config and applies flag overrides.
func newApp(cmd *cobra.Command, opts *globalOptions) (*app, error) {
	cfg, err := loadProjectConfig(opts.configPath)
	if err != nil {
		return nil, err
	}

	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Log.Format = opts.logFormat
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = string(util.LevelWarn)
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = string(util.FormatText)
	}
	level, err := util.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	format, err := util.ParseLogFormat(cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	logger := util.NewLogger(util.LoggerConfig{
		Level:  level,
		Format: format,
		Output: cmd.ErrOrStderr(),
	})
	util.SetDefault(logger)

	a := &app{
		cfg:       cfg,
		logger:    logger,
		include:   cfg.Include,
		exclude:   cfg.Exclude,
		workers:   cfg.Workers,
		cacheSize: cfg.CacheSize,
	}
	if cmd.Flags().Changed("include") {
		a.include = opts.include
	}
	if cmd.Flags().Changed("exclude") {
		a.exclude = opts.exclude
	}
	if opts.workers >= 0 {
		a.workers = opts.workers
	}

	a.parsers = parser.NewParserManager(logger)
	a.queries = queries.NewQueryManager(logger)
	return a, nil
}

func (a *app) close() {
	a.queries.Close()
	a.parsers.Close()
}

func (a *app) runner(write bool) *runner.Runner {
	t := declassify.New(a.parsers, a.queries, a.logger)
	return runner.New(t, runner.Options{
		Workers:   a.workers,
		CacheSize: a.cacheSize,
		Write:     write,
	}, a.logger)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "declassify %s\n", version)
		},
	}
}

func newInitCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default .declassify/config.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := opts.configPath
			if path == "" {
				path = defaultConfigPath
			}
			created, err := writeDefaultConfig(path)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already exists\n", path)
			}
			return nil
		},
	}
}
