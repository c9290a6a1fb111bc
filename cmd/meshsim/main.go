package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/signalsfoundry/mesh-simulator/internal/config"
	"github.com/signalsfoundry/mesh-simulator/internal/harness"
	"github.com/signalsfoundry/mesh-simulator/internal/logging"
	"github.com/signalsfoundry/mesh-simulator/internal/observability"
	"github.com/signalsfoundry/mesh-simulator/internal/report"
)

func main() {
	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, log); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Error(ctx, "meshsim failed", logging.Err(err))
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	seed        string
	rates       string
	messages    int
	workers     int
	radioRange  float64
	csvPath     string
	jsonPath    string
	sweepPath   string
	ratesPath   string
	metricsAddr string
	hold        time.Duration
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("meshsim", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "Path to a YAML scenario file (defaults apply when empty)")
	fs.StringVar(&o.seed, "seed", "", "Override rng_seed")
	fs.StringVar(&o.rates, "rates", "", "Override failure_rates, comma separated (e.g. 0,0.1,0.2)")
	fs.IntVar(&o.messages, "messages", -1, "Override message_count (negative keeps the config value)")
	fs.IntVar(&o.workers, "workers", 0, "Override workers (0 keeps the config value)")
	fs.Float64Var(&o.radioRange, "radio-range", 0, "Override radio_range (0 keeps the config value)")
	fs.StringVar(&o.csvPath, "csv", "", "Write per-message rows to this CSV file")
	fs.StringVar(&o.jsonPath, "json", "", "Write the aggregate report to this JSON file (stdout when empty)")
	fs.StringVar(&o.sweepPath, "sweep-csv", "", "Write the battery sweep to this CSV file")
	fs.StringVar(&o.ratesPath, "rates-csv", "", "Write the per-failure-rate comparison to this CSV file")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "HTTP address for Prometheus /metrics (disabled when empty)")
	fs.DurationVar(&o.hold, "hold", 0, "Keep the metrics endpoint up this long after the run")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return o, nil
}

func loadConfig(o options) (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return config.Config{}, err
		}
	}

	if o.seed != "" {
		seed, err := strconv.ParseUint(o.seed, 10, 64)
		if err != nil {
			return config.Config{}, fmt.Errorf("invalid -seed %q: %w", o.seed, err)
		}
		cfg.RNGSeed = &seed
	}
	if o.rates != "" {
		rates, err := parseRates(o.rates)
		if err != nil {
			return config.Config{}, err
		}
		cfg.FailureRates = rates
	}
	if o.messages >= 0 {
		n := o.messages
		cfg.MessageCount = &n
	}
	if o.workers > 0 {
		cfg.Workers = o.workers
	}
	if o.radioRange > 0 {
		cfg.RadioRange = o.radioRange
	}
	if o.csvPath != "" {
		cfg.Output.CSVPath = o.csvPath
	}
	if o.jsonPath != "" {
		cfg.Output.JSONPath = o.jsonPath
	}
	if o.sweepPath != "" {
		cfg.Output.SweepCSVPath = o.sweepPath
	}
	if o.ratesPath != "" {
		cfg.Output.RatesCSVPath = o.ratesPath
	}
	return cfg, nil
}

func parseRates(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	rates := make([]float64, 0, len(parts))
	for _, p := range parts {
		r, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid -rates entry %q: %w", p, err)
		}
		rates = append(rates, r)
	}
	return rates, nil
}

func run(ctx context.Context, args []string, stdout io.Writer, log logging.Logger) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}
	setup, err := harness.FromConfig(cfg)
	if err != nil {
		return err
	}

	shutdown, err := observability.InitTracing(ctx, tracingConfig(cfg), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	collector, err := observability.NewHarnessCollector(nil)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	var metricsSrv *http.Server
	if o.metricsAddr != "" {
		metricsSrv = serveMetrics(o.metricsAddr, collector, log)
	}

	h := harness.New(append(harness.HarnessOptions(cfg),
		harness.WithLogger(log),
		harness.WithMetricsRecorder(collector),
	)...)

	res, err := h.Run(ctx, setup.Scenario, setup.Topology, setup.Messages)
	if err != nil {
		return err
	}

	if err := writeTables(ctx, cfg.Output, res, log); err != nil {
		return err
	}
	if cfg.Output.JSONPath != "" {
		if err := report.WriteJSONFile(cfg.Output.JSONPath, res.Report); err != nil {
			return err
		}
		log.Info(ctx, "wrote report", logging.String("path", cfg.Output.JSONPath))
	} else if err := report.WriteJSON(stdout, res.Report); err != nil {
		return err
	}

	if metricsSrv != nil {
		if o.hold > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(o.hold):
			}
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return nil
}

// tracingConfig reads tracing settings from the environment and stamps the
// scenario's seed and topology onto the tracer resource.
func tracingConfig(cfg config.Config) observability.TracingConfig {
	config.ApplyDefaults(&cfg)
	return observability.TracingConfigFromEnv().WithScenario(observability.Scenario{
		Seed:          *cfg.RNGSeed,
		TopologyKind:  cfg.Topology.Kind,
		FailureRates:  cfg.FailureRates,
		MessageCount:  *cfg.MessageCount,
		DeriveDensity: cfg.DeriveDensity,
	})
}

// writeTables writes every configured CSV output of res.
func writeTables(ctx context.Context, out config.OutputConfig, res *harness.Result, log logging.Logger) error {
	tables := []struct {
		path  string
		rows  int
		write func(string) error
	}{
		{out.CSVPath, len(res.Records), func(p string) error { return report.WriteCSVFile(p, res.Records) }},
		{out.SweepCSVPath, len(res.Report.BatteryAdaptive.Sweep), func(p string) error {
			return report.WriteSweepCSVFile(p, res.Report.BatteryAdaptive.Sweep)
		}},
		{out.RatesCSVPath, len(res.Report.NetworkResilience.PerRate), func(p string) error {
			return report.WriteRatesCSVFile(p, res.Report.NetworkResilience.PerRate)
		}},
	}
	for _, tbl := range tables {
		if tbl.path == "" {
			continue
		}
		if err := tbl.write(tbl.path); err != nil {
			return err
		}
		log.Info(ctx, "wrote csv", logging.String("path", tbl.path), logging.Int("rows", tbl.rows))
	}
	return nil
}

func serveMetrics(addr string, collector *observability.HarnessCollector, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
