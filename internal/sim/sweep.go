package sim

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/dynblocks/internal/codegen"
)

// Job is one run of a parameter sweep.
type Job struct {
	Name   string
	Params map[string]float64
	X0     map[string]float64
	Inputs map[string]float64

	// Controller builds the controller of the run from the constant inputs.
	// Nil applies the inputs unchanged.
	Controller func(u Control) Controller
}

// NewController returns a fresh controller for one run of j.
func (j Job) NewController(u Control) Controller {
	if j.Controller == nil {
		return NewConstant(u)
	}
	return j.Controller(u)
}

// Sweep runs one simulation per job on the same generated model. Runs share
// nothing but the model, which is read-only. newIntegrator is called once per
// job since integrators may keep scratch space. Results keep the job order.
// The first failing job cancels the others.
func Sweep(ctx context.Context, m *codegen.Model, newIntegrator func() Integrator, jobs []Job, cfg Config, workers int) ([]*Result, error) {
	results := make([]*Result, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			sys, err := FromModel(m, job.Params)
			if err != nil {
				return errors.Wrapf(err, "job %q", job.Name)
			}
			x0, err := sys.InitialState(job.X0)
			if err != nil {
				return errors.Wrapf(err, "job %q", job.Name)
			}
			u, err := sys.Inputs(job.Inputs)
			if err != nil {
				return errors.Wrapf(err, "job %q", job.Name)
			}
			res, err := New(sys, newIntegrator(), job.NewController(u)).Run(ctx, x0, cfg)
			if err != nil {
				return errors.Wrapf(err, "job %q", job.Name)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
