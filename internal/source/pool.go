package source

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Job is one document to fetch. Key identifies it to the caller.
type Job struct {
	Key string
	URL string
}

// Result is the outcome of one Job. Exactly one of Doc and Err is set.
type Result struct {
	Job Job
	Doc *Document
	Err error
}

// FetchAll fetches jobs with at most concurrency requests in flight. Results
// are returned in job order. A failed job records its error and never stops
// its siblings; only cancellation of ctx ends the run early, and jobs not
// started by then carry ctx's error.
func (c *Client) FetchAll(ctx context.Context, jobs []Job, concurrency int) []Result {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	results := make([]Result, len(jobs))

	g := new(errgroup.Group)
	g.SetLimit(concurrency)
	for i, job := range jobs {
		i, job := i, job
		results[i].Job = job
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			doc, err := c.Get(ctx, job.URL)
			if err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Doc = doc
			return nil
		})
	}
	_ = g.Wait()
	return results
}
