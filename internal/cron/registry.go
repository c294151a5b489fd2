package cron

import "context"

// Job is a scheduled maintenance task.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds the jobs a cron worker cycles through, in registration
// order.
type Registry struct {
	jobs []Job
}

// NewRegistry builds a registry preloaded with the given jobs. Nil entries
// are dropped.
func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{}
	for _, job := range jobs {
		r.Register(job)
	}
	return r
}

// Register appends a job to the run order.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	r.jobs = append(r.jobs, job)
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}
