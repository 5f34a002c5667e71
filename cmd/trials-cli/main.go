package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/trialstats/internal/adapters/csvimport"
	"github.com/okian/trialstats/internal/domain/model"
	"github.com/okian/trialstats/internal/seed"
	"github.com/okian/trialstats/pkg/logger"
)

// Default configuration constants.
const (
	defaultURL     = "http://localhost:9080"
	defaultWorkers = 2 // multiplier for runtime.NumCPU()
	defaultTimeout = 30 * time.Second
)

var errUsage = errors.New("usage: trials-cli <seed|import> [flags]")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1) //nolint:gocritic // exitAfterDefer: nothing to flush yet
	}

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}

// run dispatches a subcommand and prints a summary to out.
func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "seed":
		return runSeed(ctx, args[1:], out)
	case "import":
		return runImport(ctx, args[1:], out)
	case "-h", "-help", "--help", "help":
		_, _ = fmt.Fprintln(out, errUsage)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

type clientFlags struct {
	url     *string
	workers *int
	timeout *time.Duration
}

func addClientFlags(fs *flag.FlagSet) clientFlags {
	return clientFlags{
		url:     fs.String("url", defaultURL, "Base URL of the service"),
		workers: fs.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent requests"),
		timeout: fs.Duration("timeout", defaultTimeout, "HTTP request timeout"),
	}
}

func (f clientFlags) client() *seed.Client {
	return seed.NewClient(*f.url, seed.WithWorkers(*f.workers), seed.WithHTTPClient(newHTTPClient(*f.timeout)))
}

func runSeed(ctx context.Context, args []string, out io.Writer) error {
	def := seed.DefaultConfig()
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(out)
	cf := addClientFlags(fs)
	runs := fs.Int("runs", def.Runs, "Number of runs to generate")
	characters := fs.Int("characters", def.Characters, "Number of distinct characters")
	seedValue := fs.Uint64("seed", def.Seed, "Generator seed; equal seeds give equal runs")
	noise := fs.Int("noise", def.Noise, "Maximum score noise either side of the model")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := def
	cfg.Runs, cfg.Characters, cfg.Seed, cfg.Noise = *runs, *characters, *seedValue, *noise
	records, err := seed.Generate(cfg)
	if err != nil {
		return err
	}
	return submit(ctx, cf.client(), records, out)
}

func runImport(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(out)
	cf := addClientFlags(fs)
	path := fs.String("file", "", "CSV file of runs")
	track := fs.String("track", "", "Only import runs on this track")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("%w: import needs -file", errUsage)
	}

	var opts []csvimport.Option
	t, err := model.ParseTrackType(*track)
	if err != nil {
		return err
	}
	if t != "" {
		opts = append(opts, csvimport.WithTrack(t))
	}

	f, err := os.Open(*path)
	if err != nil {
		return fmt.Errorf("open %s: %w", *path, err)
	}
	defer f.Close()

	records, err := csvimport.Read(f, opts...)
	if err != nil {
		return err
	}
	return submit(ctx, cf.client(), records, out)
}

func submit(ctx context.Context, c *seed.Client, records []model.RunRecord, out io.Writer) error {
	stats, err := c.Submit(ctx, records)
	_, _ = fmt.Fprintf(out, "submitted %d runs in %s: accepted %d, duplicate %d, failed %d\n",
		stats.Submitted, stats.Duration.Round(time.Millisecond), stats.Accepted, stats.Duplicate, stats.Failed)
	return err
}
