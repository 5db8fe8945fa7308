package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/kb/internal/capability"
	"github.com/aidanlsb/kb/internal/commands"
	"github.com/aidanlsb/kb/internal/config"
	"github.com/aidanlsb/kb/internal/kbchanges"
	"github.com/aidanlsb/kb/internal/kbmeta"
	"github.com/aidanlsb/kb/internal/kbusage"
	"github.com/aidanlsb/kb/internal/ui"
)

// KB is the resolved knowledge base an invocation runs against.
type KB struct {
	Root   string
	Config *config.Config
}

// BinderFunc constructs the capability binders for a resolved KB.
type BinderFunc func(kb *KB) capability.Binders

// App is one CLI process: its output streams, handler table and binders.
// Global flag values live on the App, so every Run starts from a clean slate.
type App struct {
	Stdout io.Writer
	Stderr io.Writer

	// Handlers maps command names to handlers. Defaults to DefaultHandlers().
	Handlers map[string]Handler
	// Binders builds the capability binders. Defaults to DefaultBinders.
	Binders BinderFunc

	kbPathFlag string
	kbName     string
	configPath string
	jsonOutput bool
	debug      bool

	kb   *KB
	caps *capability.Set
}

// New returns an App writing to stdout and stderr with the default handlers and binders.
func New(stdout, stderr io.Writer) *App {
	return &App{
		Stdout:   stdout,
		Stderr:   stderr,
		Handlers: DefaultHandlers(),
		Binders:  DefaultBinders,
	}
}

// Execute runs the CLI with the process arguments. The returned error has
// already been reported; pass it to ExitCode.
func Execute() error {
	config.LoadDotEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return New(os.Stdout, os.Stderr).Run(ctx, os.Args[1:])
}

// Run parses args, dispatches, and reports any failure on the App's streams.
func (a *App) Run(ctx context.Context, args []string) error {
	root := a.newRootCmd()
	root.SetArgs(args)

	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return nil
	}

	cliErr := classify(err)
	a.report(cmd, cliErr)
	return cliErr
}

func (a *App) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "kb",
		Short: "kb - a markdown knowledge base tool",
		Long: `kb indexes, searches, validates, exports and syncs a directory of markdown
entries with YAML front-matter.

Optional subsystems (metadata, usage tracking, change detection) are bound at
startup; commands that need a missing one exit with status 3.`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.prepare(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return usageErrorf("no command given")
		},
	}
	root.SetOut(a.Stdout)
	root.SetErr(a.Stderr)

	root.PersistentFlags().StringVar(&a.kbPathFlag, "kb-path", "", "Explicit path to the knowledge base directory")
	root.PersistentFlags().StringVar(&a.kbName, "kb", "", "Named knowledge base from config")
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to config file")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "Output in JSON format (for script use)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")

	for _, name := range commands.AllCommandNames() {
		root.AddCommand(commands.GenerateCobraCommand(name, a.dispatch))
	}
	return root
}

// prepare runs before every subcommand: logging, config, KB resolution and
// capability binding. It never fails because a capability is missing.
func (a *App) prepare(cmd *cobra.Command) error {
	a.configureLogging()

	meta, ok := commands.Registry[cmd.Name()]
	if !ok || !meta.NeedsKB {
		a.caps = capability.Empty()
		return nil
	}
	// Usage errors win over config and KB problems.
	if err := checkFlags(cmd, meta, commands.CollectFlags(cmd, meta)); err != nil {
		return err
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	ui.ConfigureTheme(cfg.UI.Accent)

	root, err := a.resolveKBRoot(cfg)
	if err != nil {
		return err
	}
	a.kb = &KB{Root: root, Config: cfg}

	binders := DefaultBinders
	if a.Binders != nil {
		binders = a.Binders
	}
	a.caps = capability.Bind(cmd.Context(), binders(a.kb))
	return nil
}

func (a *App) configureLogging() {
	level := slog.LevelWarn
	if a.debug || config.EnvLogLevelValue() == "debug" {
		level = slog.LevelDebug
	} else if lvl := config.EnvLogLevelValue(); lvl != "" {
		var parsed slog.Level
		if err := parsed.UnmarshalText([]byte(lvl)); err == nil {
			level = parsed
		}
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(a.Stderr, &slog.HandlerOptions{Level: level})))
}

func (a *App) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if strings.TrimSpace(a.configPath) != "" {
		cfg, err = config.LoadFrom(a.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, handlerError(ErrConfigInvalid, err, "Fix or remove "+config.ResolveConfigPath(a.configPath))
	}
	if cfg == nil {
		cfg = &config.Config{}
	}
	return cfg, nil
}

// resolveKBRoot applies --kb-path > --kb > KB_PATH > default_kb > working directory.
func (a *App) resolveKBRoot(cfg *config.Config) (string, error) {
	var root string
	switch {
	case a.kbPathFlag != "":
		root = a.kbPathFlag
	case a.kbName != "":
		p, err := cfg.GetKBPath(a.kbName)
		if err != nil {
			return "", handlerError(ErrKBNotFound, err, "Add it under [kbs] in config.toml or use --kb-path")
		}
		root = p
	case config.EnvKBPathValue() != "":
		root = config.EnvKBPathValue()
	case cfg.DefaultKB != "":
		p, err := cfg.GetKBPath("")
		if err != nil {
			return "", handlerError(ErrKBNotFound, err, "Fix default_kb in config.toml")
		}
		root = p
	default:
		wd, err := os.Getwd()
		if err != nil {
			return "", handlerError(ErrInternal, err, "")
		}
		root = wd
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return "", handlerError(ErrKBNotFound, err, "")
	}
	return abs, nil
}

// DefaultBinders binds the real collaborators, honoring [capabilities] toggles.
func DefaultBinders(kb *KB) capability.Binders {
	enabled := func(name capability.Name) bool {
		return kb.Config == nil || kb.Config.CapabilityEnabled(string(name))
	}
	return capability.Binders{
		Metadata: func(context.Context) (capability.MetadataManager, error) {
			if !enabled(capability.Metadata) {
				return nil, capability.ErrDisabled
			}
			m, err := kbmeta.New(kb.Root)
			if err != nil {
				return nil, err
			}
			return m, nil
		},
		Usage: func(context.Context) (capability.UsageTracker, error) {
			if !enabled(capability.Usage) {
				return nil, capability.ErrDisabled
			}
			if err := requireDir(kb.Root); err != nil {
				return nil, err
			}
			t, err := kbusage.New(kb.Root)
			if err != nil {
				return nil, err
			}
			return t, nil
		},
		Changes: func(context.Context) (capability.ChangeDetector, error) {
			if !enabled(capability.Changes) {
				return nil, capability.ErrDisabled
			}
			if err := requireDir(kb.Root); err != nil {
				return nil, err
			}
			d, err := kbchanges.New(kb.Root)
			if err != nil {
				return nil, err
			}
			return d, nil
		},
	}
}

// requireDir keeps the stores from creating a .kb directory under a missing root.
func requireDir(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("%w: %s", kbmeta.ErrKBNotFound, root)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", kbmeta.ErrKBNotFound, root)
	}
	return nil
}

// report renders a failure once: the JSON envelope on stdout in --json mode,
// otherwise a message on stderr. Usage errors also print the usage text.
func (a *App) report(cmd *cobra.Command, e *Error) {
	if a.jsonOutput {
		writeJSON(a.Stdout, errorResponse(e))
	} else {
		fmt.Fprintln(a.Stderr, ui.Error(e.Error()))
		switch {
		case e.Kind == KindCapability && !a.debug:
			fmt.Fprintln(a.Stderr, ui.Hint("Run with --debug for the cause"))
		case e.Suggestion != "":
			fmt.Fprintln(a.Stderr, ui.Hint(e.Suggestion))
		}
	}

	if e.Kind == KindUsage && cmd != nil {
		fmt.Fprint(a.Stderr, "\n"+cmd.UsageString())
	}
}
