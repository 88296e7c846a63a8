package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/dynblocks/internal/blocks"
	"github.com/san-kum/dynblocks/internal/codegen"
	"github.com/san-kum/dynblocks/internal/config"
	"github.com/san-kum/dynblocks/internal/integrators"
	"github.com/san-kum/dynblocks/internal/metrics"
	"github.com/san-kum/dynblocks/internal/modelfile"
	"github.com/san-kum/dynblocks/internal/report"
	"github.com/san-kum/dynblocks/internal/sim"
	"github.com/san-kum/dynblocks/internal/storage"
)

func integratorNames() []string { return integrators.Names() }

// generate loads path, flattens its root component and builds the model.
func generate(path string, cfg *config.Config) (*modelfile.Model, *codegen.Model, error) {
	logger := newLogger(cfg)
	mf, err := modelfile.Load(path, modelfile.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}

	flat, err := blocks.Flatten(mf.Root)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("flattened model",
		"component", flat.Name(),
		"equations", len(flat.Equations()),
		"eliminated", len(flat.Removed()))

	m, err := codegen.Generate(flat, cfg.Generate)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("generated model", "model", m.Name, "states", len(m.States), "mass", m.Mass.String())
	return mf, m, nil
}

func inspectModel(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	_, m, err := generate(args[0], cfg)
	if err != nil {
		return err
	}
	return report.Model(cmd.OutOrStdout(), m)
}

func simulateModel(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	mf, m, err := generate(args[0], cfg)
	if err != nil {
		return err
	}

	factory, err := integrators.Factory(cfg.Integrator)
	if err != nil {
		return err
	}

	base := sim.Job{
		Name:   m.Name,
		Params: merge(mf.Params, nil),
		X0:     merge(mf.Initial, nil),
		Inputs: merge(mf.Inputs, nil),
	}
	for _, kv := range []struct {
		dst map[string]float64
		src map[string]string
	}{{base.Params, params}, {base.X0, initial}, {base.Inputs, inputs}} {
		if err := parseValues(kv.dst, kv.src); err != nil {
			return err
		}
	}

	var ctrl *storage.ControlInfo
	if len(pid) > 0 {
		if base.Controller, ctrl, err = pidController(m, pid); err != nil {
			return err
		}
		logger.Info("closed loop", "state", ctrl.State, "input", ctrl.Input, "target", ctrl.Target)
	}

	jobs, err := sweepJobs(base, sweep)
	if err != nil {
		return err
	}

	simCfg := cfg.Sim()
	start := time.Now()

	var results []*sim.Result
	if len(jobs) == 1 {
		res, err := runOne(cmd, m, factory(), jobs[0], simCfg, cfg)
		if err != nil {
			return err
		}
		results = []*sim.Result{res}
	} else {
		logger.Info("running sweep", "jobs", len(jobs), "workers", cfg.Workers)
		results, err = sim.Sweep(cmd.Context(), m, factory, jobs, simCfg, cfg.Workers)
		if err != nil {
			return err
		}
	}
	elapsed := time.Since(start)

	var st *storage.Store
	if !noSave {
		st = storage.New(cfg.DataDir)
		if err := st.Init(); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	for i, res := range results {
		sys, err := sim.FromModel(m, jobs[i].Params)
		if err != nil {
			return err
		}
		set := metrics.Default(sys)
		metrics.Replay(set, res)
		values := set.Values()

		if len(jobs) > 1 {
			fmt.Fprintf(out, "\n%s\n", jobs[i].Name)
		}
		if err := report.Result(out, m, res, values, elapsed); err != nil {
			return err
		}
		if st == nil {
			continue
		}
		runID, err := save(st, sys, jobs[i], res, values, ctrl, cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "run id: %s\n", runID)
	}
	return nil
}

func runOne(cmd *cobra.Command, m *codegen.Model, integ sim.Integrator, job sim.Job, simCfg sim.Config, cfg *config.Config) (*sim.Result, error) {
	sys, err := sim.FromModel(m, job.Params)
	if err != nil {
		return nil, err
	}
	x0, err := sys.InitialState(job.X0)
	if err != nil {
		return nil, err
	}
	u, err := sys.Inputs(job.Inputs)
	if err != nil {
		return nil, err
	}

	s := sim.New(sys, integ, job.NewController(u))
	s.SetLogger(newLogger(cfg))
	return s.Run(cmd.Context(), x0, simCfg)
}

func save(st *storage.Store, sys *sim.ModelSystem, job sim.Job, res *sim.Result, values map[string]float64, ctrl *storage.ControlInfo, cfg *config.Config) (string, error) {
	m := sys.Model()

	var observed [][]float64
	if len(m.Observed) > 0 {
		observed = make([][]float64, len(res.States))
		for i, x := range res.States {
			var u sim.Control
			switch {
			case i < len(res.Controls):
				u = res.Controls[i]
			case len(res.Controls) > 0:
				u = res.Controls[len(res.Controls)-1]
			default:
				u = make(sim.Control, len(m.Inputs))
			}
			observed[i] = sys.Observe(x, u, res.Times[i])
		}
	}

	meta := storage.RunMetadata{
		Model:      m.Name,
		Dt:         cfg.Dt,
		Duration:   cfg.Duration,
		Integrator: cfg.Integrator,
		Adaptive:   cfg.Adaptive,
		Steps:      res.StepsTaken,
		Params:     job.Params,
		States:     codegen.Names(m.States),
		Inputs:     codegen.Names(m.Inputs),
		Observed:   m.ObservedNames(),
		Metrics:    values,
		Controller: ctrl,
	}
	return st.Save(meta, res, observed)
}

// pidController turns the --pid options into a per-run controller factory.
// The state and input are named as in the generated model; gains and target
// default to 0.
func pidController(m *codegen.Model, opts map[string]string) (func(sim.Control) sim.Controller, *storage.ControlInfo, error) {
	info := &storage.ControlInfo{Kind: "pid"}
	gains := map[string]*float64{"kp": &info.Kp, "ki": &info.Ki, "kd": &info.Kd, "target": &info.Target}
	for k, v := range opts {
		switch k {
		case "state":
			info.State = strings.TrimSpace(v)
		case "input":
			info.Input = strings.TrimSpace(v)
		default:
			dst, ok := gains[k]
			if !ok {
				return nil, nil, fmt.Errorf("unknown pid option %q", k)
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid pid %s: %q", k, v)
			}
			*dst = f
		}
	}

	state := indexOf(codegen.Names(m.States), info.State)
	if state < 0 {
		return nil, nil, fmt.Errorf("pid state %q is not a model state (have %v)", info.State, codegen.Names(m.States))
	}
	input := indexOf(codegen.Names(m.Inputs), info.Input)
	if input < 0 {
		return nil, nil, fmt.Errorf("pid input %q is not a model input (have %v)", info.Input, codegen.Names(m.Inputs))
	}

	kp, ki, kd, target := info.Kp, info.Ki, info.Kd, info.Target
	return func(u sim.Control) sim.Controller {
		return sim.NewPID(kp, ki, kd, target, state, input, u)
	}, info, nil
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

func listRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	runs, err := storage.New(cfg.DataDir).List()
	if err != nil {
		return err
	}
	return report.Runs(cmd.OutOrStdout(), runs, time.Now())
}

func exportRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st := storage.New(cfg.DataDir)

	if exportOut == "" {
		return st.Export(cmd.OutOrStdout(), args[0])
	}
	f, err := os.Create(exportOut)
	if err != nil {
		return err
	}
	if err := st.Export(f, args[0]); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported %s to %s\n", args[0], exportOut)
	return nil
}

func merge(a, b map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func parseValues(dst map[string]float64, src map[string]string) error {
	for name, s := range src {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %q", name, s)
		}
		dst[name] = v
	}
	return nil
}

// sweepJobs expands name=v1,v2 definitions into the cartesian product over base.
// Without definitions it returns base alone.
func sweepJobs(base sim.Job, defs []string) ([]sim.Job, error) {
	jobs := []sim.Job{base}
	for _, def := range defs {
		name, list, ok := strings.Cut(def, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" || list == "" {
			return nil, fmt.Errorf("invalid sweep %q, want name=v1,v2,...", def)
		}
		var values []float64
		for _, s := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid sweep value for %s: %q", name, s)
			}
			values = append(values, v)
		}

		next := make([]sim.Job, 0, len(jobs)*len(values))
		for _, job := range jobs {
			for _, v := range values {
				j := job
				j.Params = merge(job.Params, map[string]float64{name: v})
				j.Name = job.Name + " " + name + "=" + strconv.FormatFloat(v, 'g', -1, 64)
				next = append(next, j)
			}
		}
		jobs = next
	}
	return jobs, nil
}
