package fixture

import (
	"context"
	"errors"
	"fmt"

	"onlytests-e2e/internal/pages"
)

var errNoContent = errors.New("main content not visible")

// SmokeJobs returns one job per page: open it and check that its main content
// renders.
func SmokeJobs() []Job {
	names := []string{"about", "home", "testCases", "textGenerator", "tools", "userData"}

	jobs := make([]Job, 0, len(names))
	for _, name := range names {
		jobs = append(jobs, Job{
			Name: "smoke/" + name,
			Run: func(ctx context.Context, f *pages.Factory) error {
				p, ok := f.All()[name]
				if !ok {
					return fmt.Errorf("no page named %q", name)
				}
				if err := p.Navigate(ctx); err != nil {
					return err
				}
				visible, err := p.IsContentVisible(ctx)
				if err != nil {
					return err
				}
				if !visible {
					return errNoContent
				}
				return nil
			},
		})
	}
	return jobs
}
