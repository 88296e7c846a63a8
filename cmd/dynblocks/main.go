package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/san-kum/dynblocks/internal/config"
	"github.com/san-kum/dynblocks/internal/logging"
)

var (
	configFile string
	preset     string
	dataDir    string
	logLevel   string
	logFormat  string

	dt         float64
	duration   float64
	integrator string
	adaptive   bool
	tolerance  float64
	workers    int
	noSimplify bool
	noSave     bool

	firstStates []string
	firstInputs []string
	params      map[string]string
	initial     map[string]string
	inputs      map[string]string
	sweep       []string
	pid         map[string]string

	exportOut string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "dynblocks",
		Short:         "compose ODE blocks and generate simulation functions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "use preset configuration")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultDataDir, "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "text, json or auto")

	inspectCmd := &cobra.Command{
		Use:   "inspect [model.yaml]",
		Short: "flatten a model and print the generated function",
		Args:  cobra.ExactArgs(1),
		RunE:  inspectModel,
	}
	generateFlags(inspectCmd)

	simulateCmd := &cobra.Command{
		Use:   "simulate [model.yaml]",
		Short: "generate a model and integrate it",
		Args:  cobra.ExactArgs(1),
		RunE:  simulateModel,
	}
	generateFlags(simulateCmd)
	simulateCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	simulateCmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
	simulateCmd.Flags().StringVar(&integrator, "integrator", "rk4", "integrator")
	simulateCmd.Flags().BoolVar(&adaptive, "adaptive", false, "adaptive step size")
	simulateCmd.Flags().Float64Var(&tolerance, "tol", config.DefaultTolerance, "adaptive error tolerance")
	simulateCmd.Flags().IntVar(&workers, "workers", 0, "concurrent sweep runs (0 = unlimited)")
	simulateCmd.Flags().StringToStringVar(&params, "param", nil, "parameter value, name=value")
	simulateCmd.Flags().StringToStringVar(&initial, "init", nil, "initial state, name=value")
	simulateCmd.Flags().StringToStringVar(&inputs, "input", nil, "constant input, name=value")
	simulateCmd.Flags().StringArrayVar(&sweep, "sweep", nil, "sweep a parameter, name=v1,v2,...")
	simulateCmd.Flags().StringToStringVar(&pid, "pid", nil, "PID loop: state=,input=,kp=,ki=,kd=,target=")
	simulateCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "output file (default stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, p := range config.ListPresets() {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
		},
	}

	integratorsCmd := &cobra.Command{
		Use:   "integrators",
		Short: "list available integrators",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, n := range integratorNames() {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
		},
	}

	rootCmd.AddCommand(inspectCmd, simulateCmd, listCmd, exportCmd, presetsCmd, integratorsCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func generateFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&firstStates, "first-states", nil, "states to order first")
	cmd.Flags().StringSliceVar(&firstInputs, "first-inputs", nil, "inputs to order first")
	cmd.Flags().BoolVar(&noSimplify, "no-simplify", false, "skip simplification of the flattened equations")
}

// loadConfig layers defaults, preset, config file and explicitly set flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("adaptive") {
		cfg.Adaptive = adaptive
	}
	if flags.Changed("tol") {
		cfg.Tolerance = tolerance
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("first-states") {
		cfg.Generate.FirstStates = firstStates
	}
	if flags.Changed("first-inputs") {
		cfg.Generate.FirstInputs = firstInputs
	}
	if flags.Changed("no-simplify") {
		cfg.Generate.Simplify = !noSimplify
	}
	if flags.Changed("data") || cfg.DataDir == "" {
		cfg.DataDir = dataDir
	}
	if flags.Changed("log-level") || cfg.LogLevel == "" {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("log-format") || cfg.LogFormat == "" {
		cfg.LogFormat = logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
}
