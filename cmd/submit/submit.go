// Package submit implements the submit command, which announces URLs to the
// resolved ping services and prints the log as it happens.
package submit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonesrussell/seo-pinger/cmd/common"
	"github.com/jonesrussell/seo-pinger/infrastructure/logger"
	"github.com/jonesrussell/seo-pinger/internal/domain"
	"github.com/jonesrussell/seo-pinger/internal/event"
	"github.com/jonesrussell/seo-pinger/internal/submission"
	"github.com/spf13/cobra"
)

const logFileMode = 0o644

// options holds the submit flags.
type options struct {
	files    []string
	dedup    string
	delay    time.Duration
	strategy string
	timeout  time.Duration
	logFile  string
	progress bool
}

// Command creates the submit command.
func Command(flags *common.GlobalFlags) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "submit [url...]",
		Short: "Announce URLs to search engine ping services",
		Long: `Submit one or more URLs (sitemaps, feeds or pages) to every resolved ping
service. URLs come from arguments, from --file, or from stdin when "-" is given
or input is piped. Items that fail are reported in the summary; only invalid
input makes the command exit non-zero.`,
		Example: `  seo-pinger submit https://example.com/sitemap.xml
  seo-pinger submit --file urls.txt --dedup unique --log-file submit.log
  cat urls.txt | seo-pinger submit --strategy catalog`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, flags, opts, args)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.files, "file", "f", nil, "read newline-delimited URLs from `path` (repeatable)")
	cmd.Flags().StringVar(&opts.dedup, "dedup", "", "duplicate handling: preserve or unique (default from config)")
	cmd.Flags().DurationVar(&opts.delay, "delay", 0, "pause between URLs; negative disables (default from config)")
	cmd.Flags().StringVar(&opts.strategy, "strategy", "", "endpoint source: catalog, suggested or hybrid (default from config)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "per-request ping timeout (default from config)")
	cmd.Flags().StringVar(&opts.logFile, "log-file", "", "write the submission log to `path` as plain text")
	cmd.Flags().BoolVar(&opts.progress, "progress", false, "print per-URL progress updates")

	return cmd
}

func run(cmd *cobra.Command, flags *common.GlobalFlags, opts *options, args []string) error {
	deps, err := common.NewCommandDeps(flags, true)
	if err != nil {
		return err
	}
	defer func() { _ = deps.Logger.Sync() }()

	cfg := deps.Config
	if opts.dedup != "" {
		cfg.Submission.Dedup = opts.dedup
	}
	if cmd.Flags().Changed("delay") {
		cfg.Submission.Delay = opts.delay
		if opts.delay == 0 {
			cfg.Submission.Delay = -1
		}
	}
	if opts.strategy != "" {
		cfg.Resolver.Strategy = opts.strategy
	}
	if opts.timeout > 0 {
		cfg.Ping.Timeout = opts.timeout
	}
	if validationErr := cfg.Validate(); validationErr != nil {
		return validationErr
	}

	urls, err := CollectURLs(args, opts.files, cmd.InOrStdin(), stdinPiped())
	if err != nil {
		return err
	}

	items, err := submission.Prepare(urls, submission.DedupPolicy(cfg.Submission.Dedup))
	if err != nil {
		printValidationError(cmd.ErrOrStderr(), err)
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, err := common.NewPipeline(ctx, cfg, deps.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = pipeline.Close() }()

	out := cmd.OutOrStdout()
	result, logs := Run(ctx, pipeline.Orchestrator, items, out, opts.progress)

	fmt.Fprintln(out)
	RenderSummary(out, result)

	if opts.logFile != "" {
		if writeErr := os.WriteFile(opts.logFile, []byte(domain.JoinLog(logs)+"\n"), logFileMode); writeErr != nil {
			deps.Logger.Error("Failed to write log file", logger.String("path", opts.logFile), logger.Error(writeErr))
			return fmt.Errorf("write log file: %w", writeErr)
		}
	}
	return nil
}

// Runner runs prepared items. *submission.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, items []domain.SubmissionItem, sink event.Sink) submission.Result
}

// Run submits items, streaming log lines to out, and returns the result with
// the complete log.
func Run(ctx context.Context, r Runner, items []domain.SubmissionItem, out io.Writer, progress bool) (submission.Result, []domain.LogEntry) {
	var collected event.Collector
	console := &consoleSink{out: out, progress: progress, urls: make(map[string]string, len(items))}
	for _, item := range items {
		console.urls[item.ID] = item.URL
	}

	result := r.Run(ctx, items, event.MultiSink{&collected, console})
	return result, collected.Logs()
}

// CollectURLs gathers URLs from args, files and stdin. File and stdin lines
// are trimmed and blank lines dropped. An argument of
// "-" reads stdin; stdin is also read when piped and nothing else was given.
func CollectURLs(args, files []string, stdin io.Reader, piped bool) ([]string, error) {
	var urls []string
	readStdin := piped && len(args) == 0 && len(files) == 0

	for _, arg := range args {
		if arg == "-" {
			readStdin = true
			continue
		}
		urls = append(urls, arg)
	}

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read url file: %w", err)
		}
		urls = append(urls, submission.ParseInput(string(data), submission.DedupPreserve)...)
	}

	if readStdin {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		urls = append(urls, submission.ParseInput(string(data), submission.DedupPreserve)...)
	}
	return urls, nil
}

func stdinPiped() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice == 0
}

func printValidationError(w io.Writer, err error) {
	var verr *submission.ValidationError
	if !errors.As(err, &verr) {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}

	fmt.Fprintln(w, "Error: invalid URLs, nothing was submitted:")
	for _, inv := range verr.Invalid {
		fmt.Fprintf(w, "  %s: %s\n", inv.URL, inv.Reason)
	}
}
