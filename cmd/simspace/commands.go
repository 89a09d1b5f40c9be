package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/klauspost/cpuid/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/sanonone/simspace/pkg/config"
	"github.com/sanonone/simspace/pkg/structure"
)

// app carries the state shared by the subcommands of one invocation.
type app struct {
	configPath  string
	logLevel    string
	logJSON     bool
	metricsAddr string
	prefix      string

	cfg     config.Config
	metrics *http.Server
}

// execute runs cmd and stops the metrics server afterwards, whether or not
// the command succeeded.
func (a *app) execute(cmd *cobra.Command) (err error) {
	defer func() {
		if terr := a.teardown(); terr != nil && err == nil {
			err = terr
		}
	}()
	return cmd.Execute()
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "simspace",
		Short: "Kernel-regression potentials on atomic descriptors",
		Long: `simspace builds descriptor ensembles from XYZ structures, dumps their
feature and kernel matrices, and relaxes structures on kernel potentials.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "YAML configuration file")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.BoolVar(&a.logJSON, "log-json", false, "emit JSON logs")
	flags.StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :2112)")
	flags.StringVarP(&a.prefix, "output", "o", "", "output file prefix")

	rootCmd.AddCommand(newTopologyCmd(a), newRelaxCmd(a))
	return rootCmd, a
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Log.JSON = a.logJSON
	}
	if a.prefix != "" {
		cfg.Output.Prefix = a.prefix
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	lvl, _ := cfg.Log.SlogLevel()
	slog.SetDefault(slog.New(newHandler(cmd.ErrOrStderr(), lvl, cfg.Log.JSON)))

	slog.Info("[Startup] compute capabilities",
		"cpu", cpuid.CPU.BrandName,
		"cores", cpuid.CPU.PhysicalCores,
		"avx2", cpuid.CPU.Has(cpuid.AVX2),
		"fma3", cpuid.CPU.Has(cpuid.FMA3))

	if a.metricsAddr != "" {
		a.startMetrics()
	}
	return nil
}

func newHandler(w io.Writer, lvl slog.Level, json bool) slog.Handler {
	opts := &slog.HandlerOptions{Level: lvl}
	if json {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func (a *app) startMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	a.metrics = &http.Server{Addr: a.metricsAddr, Handler: mux}

	go func() {
		slog.Info("[Metrics] serving Prometheus metrics", "addr", a.metricsAddr)
		if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("[Metrics] server error", "error", err)
		}
	}()
}

func (a *app) teardown() error {
	if a.metrics == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.metrics.Shutdown(ctx)
}

// readFrames loads every frame of every XYZ file in order.
func readFrames(paths ...string) ([]*structure.Structure, error) {
	var out []*structure.Structure
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open structures: %w", err)
		}
		frames, err := structure.ReadXYZ(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, frames...)
	}
	return out, nil
}
