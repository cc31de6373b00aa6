// Command run consults Prolog files into a machine and answers queries.
//
//	run family.pl -q 'grandparent(tom, X).'
//	run family.pl -i
//	echo 'member(X, [a, b]).' | run
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/wippyai/prolog-runtime/machine"
)

var (
	configPath  string
	module      string
	queries     []string
	maxAnswers  int
	interactive bool
	verbose     bool

	cfg    machine.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "run [file.pl ...]",
	Short: "Consult Prolog files and answer queries",
	Long: `Consults each file into a module of a fresh machine, then answers queries.

Queries come from --query flags, from the interactive REPL (-i), or one per
line from standard input. Each answer is printed on its own line:

  X = ann.        a solution binding variables
  true.           a solution binding nothing
  false.          no solutions
  error: E.       an uncaught exception or engine fault

Configuration is read from --config, or from the file named by
PROLOG_RUNTIME_CONFIG.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = loadConfig(configPath); err != nil {
			return err
		}
		level, err := logLevel(cfg, verbose)
		if err != nil {
			return err
		}
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(level)
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML machine configuration")
	rootCmd.Flags().StringVarP(&module, "module", "m", "user", "module the files are consulted into")
	rootCmd.Flags().StringArrayVarP(&queries, "query", "q", nil, "query to answer (repeatable)")
	rootCmd.Flags().IntVarP(&maxAnswers, "max-answers", "n", 0, "stop each query after this many answers (0 for all)")
	rootCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "interactive mode with TUI")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	tty := term.IsTerminal(int(os.Stdin.Fd()))
	if interactive && !tty {
		return fmt.Errorf("interactive mode needs a terminal")
	}
	tui := interactive || (len(queries) == 0 && tty)

	// Program output is shown inside the REPL rather than written over it.
	var out io.Writer = cmd.OutOrStdout()
	var captured *outputBuffer
	if tui {
		captured = &outputBuffer{}
		out = captured
	}

	m, err := newMachine(args, out)
	if err != nil {
		return err
	}
	defer m.Close()

	switch {
	case tui:
		return runInteractive(m, captured, maxAnswers)
	case len(queries) > 0:
		for _, q := range queries {
			if err := writeAnswers(ctx, cmd.OutOrStdout(), m, q, maxAnswers); err != nil {
				return err
			}
		}
		return nil
	default:
		return answerLines(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), m)
	}
}

// loadConfig reads path, or the file named by PROLOG_RUNTIME_CONFIG when
// path is empty.
func loadConfig(path string) (machine.Config, error) {
	if path != "" {
		return machine.LoadConfig(path)
	}
	return machine.ConfigFromEnv()
}

// logLevel is debug with --verbose, otherwise the configured log_level, and
// warn when neither is set.
func logLevel(cfg machine.Config, verbose bool) (zapcore.Level, error) {
	switch {
	case verbose:
		return zapcore.DebugLevel, nil
	case cfg.LogLevel != "":
		level, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return level, fmt.Errorf("log_level: %w", err)
		}
		return level, nil
	}
	return zapcore.WarnLevel, nil
}

func newMachine(files []string, out io.Writer) (*machine.Machine, error) {
	m, err := machine.NewBuilder(
		machine.WithConfig(cfg),
		machine.WithLogger(logger),
		machine.WithOutput(out),
	).Build()
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		src, err := os.ReadFile(f)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		if err := m.Consult(module, string(src)); err != nil {
			m.Close()
			return nil, fmt.Errorf("consult %s: %w", filepath.Base(f), err)
		}
		logger.Debug("consulted", zap.String("file", f), zap.String("module", module))
	}
	return m, nil
}

// answerLines answers one query per non-empty input line.
func answerLines(ctx context.Context, r io.Reader, w io.Writer, m *machine.Machine) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		if err := writeAnswers(ctx, w, m, line, maxAnswers); err != nil {
			return err
		}
	}
	return sc.Err()
}
