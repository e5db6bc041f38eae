package fixture

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"onlytests-e2e/internal/interact"
	"onlytests-e2e/internal/pages"
)

// Job is an independent page check run in its own browser.
type Job struct {
	Name string
	Run  func(ctx context.Context, p *pages.Factory) error
}

// Result is the outcome of one Job.
type Result struct {
	Name       string
	Err        error
	Duration   time.Duration
	Screenshot string
}

// Limit is the number of jobs RunParallel keeps in flight: one in CI or with
// parallelism off, the configured worker count otherwise.
func (s *Setup) Limit() int {
	if s.cfg.IsCI() || !s.cfg.Parallel() {
		return 1
	}
	return s.cfg.Workers()
}

// BoundTestParallelism caps go test's -parallel at Limit, so parallel tests
// respect the worker bound too. Call it from TestMain after flag.Parse.
func (s *Setup) BoundTestParallelism() error {
	return flag.Set("test.parallel", strconv.Itoa(s.Limit()))
}

// RunParallel runs jobs with at most Limit in flight. A failing job does not
// stop the others. Results keep the order of jobs; the returned error joins
// every job failure.
func RunParallel(ctx context.Context, setup *Setup, jobs []Job, opts ...interact.Option) ([]Result, error) {
	if err := setup.Initialize(); err != nil {
		return nil, err
	}

	results := make([]Result, len(jobs))
	g := new(errgroup.Group)
	g.SetLimit(setup.Limit())

	for i, job := range jobs {
		g.Go(func() error {
			results[i] = runJob(ctx, setup, job, opts)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name, r.Err))
		}
	}
	return results, errors.Join(errs...)
}

// Attempts is how many times RunParallel runs a failing job: the configured
// Retries on top of the first run in CI, a single run elsewhere.
func (s *Setup) Attempts() int {
	if !s.cfg.IsCI() {
		return 1
	}
	return s.cfg.Retries() + 1
}

// runJob runs job in a fresh browser per attempt. Artifacts are kept only for
// the final failed attempt.
func runJob(ctx context.Context, setup *Setup, job Job, opts []interact.Option) Result {
	log := setup.Logger()
	cfg := setup.Config()
	start := time.Now()
	res := Result{Name: job.Name}
	log.TestStart(job.Name)

	policy := interact.Policy{MaxAttempts: setup.Attempts()}
	out := interact.Retry(ctx, policy, func(ctx context.Context, attempt int) (struct{}, error) {
		d, err := setup.Launch(ctx)
		if err != nil {
			return struct{}{}, fmt.Errorf("launch browser: %w", err)
		}
		keep := false
		defer func() { setup.Release(d, job.Name, keep) }()

		base := []interact.Option{
			interact.WithLogger(log),
			interact.WithTestName(job.Name),
			interact.WithScreenshotDir(setup.Dir(ScreenshotsDir)),
		}
		ix := interact.New(d, cfg, append(base, opts...)...)
		err = job.Run(ctx, pages.NewFactory(ix))
		keep = err != nil && attempt == policy.MaxAttempts
		if keep && cfg.ScreenshotOnFailure() {
			if path, shotErr := ix.TakeScreenshot(context.WithoutCancel(ctx), ArtifactName(job.Name)); shotErr == nil {
				res.Screenshot = path
			}
		}
		return struct{}{}, err
	}, interact.OnRetry(func(n int, err error) { log.Retry(job.Name, n, err) }))

	res.Err = out.Err
	res.Duration = time.Since(start)
	log.TestEnd(job.Name, res.Duration, res.Err == nil)
	setup.RecordResult(job.Name, res.Err == nil, res.Duration)
	return res
}
