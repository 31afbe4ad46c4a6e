package operations

import (
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "github.com/kosonkh7/SOPO-Dashboard/internal/errors"
)

// JobStore persists job state
type JobStore interface {
	CreateJob(job *Job) error
	GetJob(id string) (*Job, error)
	UpdateJob(job *Job) error
	ListJobs(filter JobFilter) ([]*Job, error)
	DeleteJob(id string) error
}

// JobFilter for querying jobs
type JobFilter struct {
	Status JobStatus
	Since  time.Time
	Limit  int
}

// MemoryJobStore is an in-memory implementation of JobStore. Jobs are copied
// on the way in and out so callers never share state with the store.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewMemoryJobStore creates a new in-memory job store
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]*Job)}
}

// CreateJob creates a new job
func (s *MemoryJobStore) CreateJob(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}

	s.jobs[job.ID] = job.clone()
	return nil
}

// GetJob retrieves a job by ID
func (s *MemoryJobStore) GetJob(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return nil, fmt.Errorf("job %s: %w", id, apperrors.ErrJobNotFound)
	}
	return job.clone(), nil
}

// UpdateJob updates an existing job
func (s *MemoryJobStore) UpdateJob(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; !exists {
		return fmt.Errorf("job %s: %w", job.ID, apperrors.ErrJobNotFound)
	}

	s.jobs[job.ID] = job.clone()
	return nil
}

// ListJobs returns jobs matching the filter, newest first
func (s *MemoryJobStore) ListJobs(filter JobFilter) ([]*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Job
	for _, job := range s.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if !filter.Since.IsZero() && job.CreatedAt.Before(filter.Since) {
			continue
		}
		result = append(result, job.clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// DeleteJob removes a job from the store
func (s *MemoryJobStore) DeleteJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[id]; !exists {
		return fmt.Errorf("job %s: %w", id, apperrors.ErrJobNotFound)
	}

	delete(s.jobs, id)
	return nil
}

// CleanupOldJobs removes finished jobs created before now minus olderThan
func (s *MemoryJobStore) CleanupOldJobs(olderThan time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	deleted := 0
	for id, job := range s.jobs {
		if job.Status.Finished() && job.CreatedAt.Before(cutoff) {
			delete(s.jobs, id)
			deleted++
		}
	}
	return deleted
}

// GetStats returns job counts per status
func (s *MemoryJobStore) GetStats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]int{
		"total_jobs":               len(s.jobs),
		string(JobStatusPending):   0,
		string(JobStatusRunning):   0,
		string(JobStatusCompleted): 0,
		string(JobStatusFailed):    0,
		string(JobStatusCancelled): 0,
	}
	for _, job := range s.jobs {
		stats[string(job.Status)]++
	}
	return stats
}
