package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kuitang/storefront-e2e/internal/browser"
	"github.com/kuitang/storefront-e2e/internal/config"
	"github.com/kuitang/storefront-e2e/internal/diagnostics"
	"github.com/kuitang/storefront-e2e/internal/errs"
	"github.com/kuitang/storefront-e2e/internal/fakestore"
	"github.com/kuitang/storefront-e2e/internal/metrics"
	"github.com/kuitang/storefront-e2e/internal/obs"
	"github.com/kuitang/storefront-e2e/internal/resilient"
	"github.com/kuitang/storefront-e2e/internal/s3client"
	"github.com/kuitang/storefront-e2e/internal/steps"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run storefront scenarios",
	Long: `Runs one flow (search, cart, checkout) or all of them against the configured
storefront. Settings come from the environment, the YAML config file and the
flags below, in increasing precedence.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flow, _ := cmd.Flags().GetString("flow")
		term, _ := cmd.Flags().GetString("term")
		useFake, _ := cmd.Flags().GetBool("fake-store")

		scenarios, err := steps.Select(flow, term)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		overrides, err := overridesFromFlags(cmd)
		if err != nil {
			return err
		}
		if useFake {
			baseURL, shutdown, err := startFakeStore()
			if err != nil {
				return err
			}
			defer shutdown()
			overrides.BaseURL = &baseURL
		}

		cfg, err := config.LoadConfig(overrides)
		if err != nil {
			return errs.Wrap(errs.InvalidArgument, "invalid configuration", err)
		}
		return runScenarios(ctx, cfg, scenarios, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	f := runCmd.Flags()
	f.String("base-url", "", "Storefront base URL (overrides BASE_URL)")
	f.Bool("headless", true, "Run the browser headless (overrides HEADLESS)")
	f.String("browser", "", "Browser engine: chromium, firefox or webkit (overrides BROWSER)")
	f.Int("max-retries", 0, "Attempts per step (overrides MAX_RETRIES)")
	f.String("flow", steps.FlowAll, "Flow to run: all, search, cart or checkout")
	f.String("term", "pants", "Search term for the search and cart flows")
	f.Bool("fake-store", false, "Start an in-process fake storefront and run against it")
}

// overridesFromFlags returns only the flags the user actually set.
func overridesFromFlags(cmd *cobra.Command) (config.Overrides, error) {
	var ov config.Overrides
	flags := cmd.Flags()

	if path, err := cmd.Flags().GetString("config"); err == nil {
		ov.ConfigFile = path
	}
	if flags.Changed("base-url") {
		v, _ := flags.GetString("base-url")
		ov.BaseURL = &v
	}
	if flags.Changed("browser") {
		v, _ := flags.GetString("browser")
		ov.Browser = &v
	}
	if flags.Changed("headless") {
		v, _ := flags.GetBool("headless")
		ov.Headless = &v
	}
	if flags.Changed("max-retries") {
		v, _ := flags.GetInt("max-retries")
		if v < 1 {
			return ov, errs.New(errs.InvalidArgument, fmt.Sprintf("--max-retries must be at least 1, got %d", v))
		}
		ov.MaxRetries = &v
	}
	return ov, nil
}

func runScenarios(ctx context.Context, cfg *config.Config, scenarios []steps.Scenario, out io.Writer) error {
	logPath, closeLog, err := obs.InitWithFile(cfg.LogDir)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = closeLog() }()

	runID := uuid.NewString()
	ctx = obs.WithCorrelation(ctx, obs.Correlation{RunID: runID})
	log := obs.From(ctx).With("pkg", "cmd")
	cfg.PrintStartupSummary()
	log.Info("run started", "log_file", logPath, "scenarios", len(scenarios))

	sess, err := browser.Launch(ctx, browser.OptionsFromConfig(cfg))
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Warn("close browser failed", "error", err)
		}
	}()

	sink, err := buildSink(ctx, cfg, sess, runID)
	if err != nil {
		return err
	}

	recorder := metrics.NewRecorder()
	exec := resilient.New(sess,
		resilient.WithSink(sink),
		resilient.WithObserver(recorder),
		resilient.WithDefaultMaxRetries(cfg.MaxRetries),
		resilient.WithBaseDelay(cfg.RetryBaseDelay),
		resilient.WithSettleDelay(cfg.SettleDelay),
	)
	suite := steps.NewSuite(exec, sess)

	start := time.Now()
	results, runErr := steps.RunScenarios(ctx, suite, scenarios)
	printResults(out, results, time.Since(start))

	if err := recorder.WriteTextfile(cfg.MetricsTextfile); err != nil {
		log.Warn("write metrics textfile failed", "path", cfg.MetricsTextfile, "error", err)
	}
	if runErr != nil {
		log.Error("run failed", "error", runErr)
		return runErr
	}
	log.Info("run passed")
	return nil
}

// buildSink writes screenshots under ArtifactDir/<runID>, and to S3 too
// when a bucket is configured.
func buildSink(ctx context.Context, cfg *config.Config, sess *browser.Session, runID string) (resilient.Sink, error) {
	file := &diagnostics.FileSink{Source: sess, Dir: filepath.Join(cfg.ArtifactDir, runID)}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	if !cfg.UploadsArtifacts() {
		return file, nil
	}
	store, err := s3client.New(ctx, s3client.Config{
		Bucket:          cfg.ArtifactBucket,
		Region:          cfg.AWSRegion,
		Endpoint:        cfg.AWSEndpointS3,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("artifact store: %w", err)
	}
	if err := store.CheckBucket(ctx); err != nil {
		return nil, fmt.Errorf("artifact store: %w", err)
	}
	upload := &diagnostics.S3Sink{Source: sess, Store: store, RunID: runID}
	if err := upload.Validate(); err != nil {
		return nil, err
	}
	return diagnostics.MultiSink{file, upload}, nil
}

func printResults(out io.Writer, results []steps.Result, elapsed time.Duration) {
	passed := 0
	for _, r := range results {
		status := "PASS"
		if r.Err != nil {
			status = "FAIL"
		} else {
			passed++
		}
		fmt.Fprintf(out, "%s  %s\n", status, r.Scenario)
		if r.Err != nil {
			fmt.Fprintf(out, "      %v\n", r.Err)
		}
	}
	fmt.Fprintf(out, "\n%d/%d scenarios passed in %s\n", passed, len(results), elapsed.Round(time.Millisecond))
}

// startFakeStore serves the fake storefront on a loopback port.
func startFakeStore() (string, func(), error) {
	store, err := fakestore.New(nil)
	if err != nil {
		return "", nil, fmt.Errorf("build fake storefront: %w", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("listen for fake storefront: %w", err)
	}
	srv := &http.Server{Handler: store, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obs.Pkg("cmd").Error("fake storefront stopped", "error", err)
		}
	}()
	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
	return "http://" + ln.Addr().String() + "/", shutdown, nil
}
