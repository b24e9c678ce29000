package storage

import (
	"DefectScope/internal/entity"
	"sort"
	"time"
)

// RetainedJob is the unit of retention: a job's output video and frames
// directory are kept or evicted together. Size is their sum, CreatedAt the
// earliest creation and LastAccess the latest access of any of them.
type RetainedJob struct {
	JobID      string
	Artifacts  []entity.TempArtifact
	Size       int64
	CreatedAt  time.Time
	LastAccess time.Time
}

// GroupByJob folds artifacts into retention units. Inputs belong to running
// jobs and are never retention candidates.
func GroupByJob(artifacts []entity.TempArtifact) []RetainedJob {
	byID := make(map[string]*RetainedJob)
	var order []string
	for _, a := range artifacts {
		if a.Kind == entity.ArtifactInput {
			continue
		}
		j, ok := byID[a.JobID]
		if !ok {
			j = &RetainedJob{JobID: a.JobID, CreatedAt: a.CreatedAt, LastAccess: a.LastAccess}
			byID[a.JobID] = j
			order = append(order, a.JobID)
		}
		j.Artifacts = append(j.Artifacts, a)
		j.Size += a.Size
		if a.CreatedAt.Before(j.CreatedAt) {
			j.CreatedAt = a.CreatedAt
		}
		if a.LastAccess.After(j.LastAccess) {
			j.LastAccess = a.LastAccess
		}
	}

	sort.Strings(order)
	jobs := make([]RetainedJob, 0, len(order))
	for _, id := range order {
		jobs = append(jobs, *byID[id])
	}
	return jobs
}

// ArtifactsOf flattens jobs back into their artifacts.
func ArtifactsOf(jobs []RetainedJob) []entity.TempArtifact {
	var out []entity.TempArtifact
	for _, j := range jobs {
		out = append(out, j.Artifacts...)
	}
	return out
}

// RetentionPolicy picks the jobs to delete from the current set.
type RetentionPolicy interface {
	Select(jobs []RetainedJob, now time.Time) []RetainedJob
}

type KeepAll struct{}

func (KeepAll) Select([]RetainedJob, time.Time) []RetainedJob { return nil }

// MaxAge evicts jobs created more than Age ago.
type MaxAge struct {
	Age time.Duration
}

func (p MaxAge) Select(jobs []RetainedJob, now time.Time) []RetainedJob {
	if p.Age <= 0 {
		return nil
	}
	var victims []RetainedJob
	for _, j := range jobs {
		if now.Sub(j.CreatedAt) > p.Age {
			victims = append(victims, j)
		}
	}
	return victims
}

// DiskBudget evicts least recently accessed jobs until the total size fits
// MaxBytes.
type DiskBudget struct {
	MaxBytes int64
}

func (p DiskBudget) Select(jobs []RetainedJob, _ time.Time) []RetainedJob {
	if p.MaxBytes <= 0 {
		return nil
	}

	var total int64
	for _, j := range jobs {
		total += j.Size
	}
	if total <= p.MaxBytes {
		return nil
	}

	lru := make([]RetainedJob, len(jobs))
	copy(lru, jobs)
	sort.SliceStable(lru, func(i, j int) bool {
		return lru[i].LastAccess.Before(lru[j].LastAccess)
	})

	var victims []RetainedJob
	for _, j := range lru {
		if total <= p.MaxBytes {
			break
		}
		victims = append(victims, j)
		total -= j.Size
	}
	return victims
}

// Chain applies policies in order, each to what the previous ones kept.
type Chain []RetentionPolicy

func (c Chain) Select(jobs []RetainedJob, now time.Time) []RetainedJob {
	remaining := jobs
	var victims []RetainedJob
	for _, policy := range c {
		selected := policy.Select(remaining, now)
		if len(selected) == 0 {
			continue
		}
		victims = append(victims, selected...)

		gone := make(map[string]bool, len(selected))
		for _, v := range selected {
			gone[v.JobID] = true
		}
		kept := make([]RetainedJob, 0, len(remaining))
		for _, j := range remaining {
			if !gone[j.JobID] {
				kept = append(kept, j)
			}
		}
		remaining = kept
	}
	return victims
}

// NewPolicy builds the policy for the configured limits. Zero limits disable
// the corresponding rule.
func NewPolicy(maxAge time.Duration, maxBytes int64) RetentionPolicy {
	var chain Chain
	if maxAge > 0 {
		chain = append(chain, MaxAge{Age: maxAge})
	}
	if maxBytes > 0 {
		chain = append(chain, DiskBudget{MaxBytes: maxBytes})
	}
	if len(chain) == 0 {
		return KeepAll{}
	}
	return chain
}
