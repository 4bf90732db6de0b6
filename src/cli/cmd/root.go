package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/sofmeright/buildtrace/src/config"
	"github.com/sofmeright/buildtrace/src/convert"
	"github.com/sofmeright/buildtrace/src/logging"
	"github.com/sofmeright/buildtrace/src/output"
	"github.com/sofmeright/buildtrace/src/trace"
)

var (
	cfgFile  string
	verbose  bool
	logLevel string
	showAll  bool
	outPath  string
	category string
	pretty   bool
	summary  bool
	cfg      *config.Config
)

// UsageError reports a command line that cannot be run.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

var rootCmd = &cobra.Command{
	Use:   "buildtrace [flags] <log>...",
	Short: "Convert build logs to trace events",
	Long: `Convert build-tool logs (# ninja log v5/v6) into a Trace Event Format JSON array
for chrome://tracing or Perfetto.

Each log becomes one process; concurrent steps are spread over reconstructed threads.
By default only the most recent build in each log is reported (--showall for all).`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			fmt.Fprint(cmd.OutOrStdout(), cmd.UsageString())
			return &UsageError{Msg: "at least one log file is required"}
		}
		return nil
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for commands that don't need it.
		if cmd.Name() == "version" {
			return nil
		}
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		level := cfg.LogLevel
		if cmd.Flags().Changed("log-level") {
			level = logLevel
		}
		if verbose {
			level = "debug"
		}
		logging.Init(cmd.ErrOrStderr(), logging.ParseLevel(level))
		return nil
	},
	RunE:          runRoot,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .buildtrace.yml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (same as --log-level debug)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default: from config, then warn)")

	rootCmd.Flags().BoolVarP(&showAll, "showall", "a", false, "report every build in each log, not only the last one")
	rootCmd.Flags().StringVarP(&outPath, "output", "o", "", "write the trace to a file instead of stdout")
	rootCmd.Flags().StringVar(&category, "category", "", "event category (default: from config, then targets)")
	rootCmd.Flags().BoolVar(&pretty, "pretty", false, "indent the JSON output")
	rootCmd.Flags().BoolVarP(&summary, "summary", "s", false, "print per-log statistics to stderr")
}

func runRoot(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	// CLI flag > config
	if !flags.Changed("showall") {
		showAll = cfg.Trace.ShowAll
	}
	if !flags.Changed("category") {
		category = cfg.Trace.Category
	}
	if !flags.Changed("pretty") {
		pretty = cfg.Trace.Pretty
	}
	if !flags.Changed("output") {
		outPath = cfg.Trace.Output
	}

	start := time.Now()
	conv := &convert.Converter{ShowAll: showAll, Category: category}
	res, err := conv.Run(args)
	if err != nil {
		return err
	}

	indent := ""
	if pretty {
		indent = "  "
	}
	if err := writeTrace(cmd.OutOrStdout(), outPath, res.Events, indent); err != nil {
		return err
	}

	if summary {
		errOut := cmd.ErrOrStderr()
		output.Summary(errOut, res.Logs, len(res.Events), time.Since(start), colorFor(errOut))
	}
	return nil
}

// writeTrace writes to path, or to stdout when path is empty. Files are
// written through a temporary sibling so a failed write leaves no partial trace.
func writeTrace(stdout io.Writer, path string, events []trace.Event, indent string) error {
	if path == "" {
		return trace.Write(stdout, events, indent)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmp, err)
	}
	if err := trace.Write(f, events, indent); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func colorFor(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return output.UseColor(f)
	}
	return false
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return err
	}
	return nil
}
