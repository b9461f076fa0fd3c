package storage

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
)

const minCleanupInterval = time.Second

// JobStore provides in-memory storage for asynchronous extraction jobs.
// Jobs are automatically cleaned up after a TTL.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*domain.ExtractionJob
	ttl  time.Duration
	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

// NewJobStore creates a new in-memory job store with the given TTL
func NewJobStore(ttl time.Duration) *JobStore {
	s := &JobStore{
		jobs: make(map[string]*domain.ExtractionJob),
		ttl:  ttl,
		now:  time.Now,
		stop: make(chan struct{}),
	}
	if ttl > 0 {
		go s.cleanupLoop()
	}
	return s
}

// Create stores a new pending job and returns a snapshot of it
func (s *JobStore) Create(label domain.Category) domain.ExtractionJob {
	now := s.now()
	job := &domain.ExtractionJob{
		JobID:     uuid.NewString(),
		Status:    domain.StatusPending,
		Label:     label,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.JobID] = job
	return *job
}

// Get returns a snapshot of the job
func (s *JobStore) Get(jobID string) (domain.ExtractionJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.ExtractionJob{}, false
	}
	return *job, true
}

// Update applies fn to the stored job. It reports whether the job existed.
func (s *JobStore) Update(jobID string, fn func(*domain.ExtractionJob)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return false
	}
	fn(job)
	job.UpdatedAt = s.now()
	return true
}

// Delete removes a job from storage
func (s *JobStore) Delete(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, jobID)
}

// Close stops the cleanup loop
func (s *JobStore) Close() {
	s.once.Do(func() { close(s.stop) })
}

// cleanupLoop periodically removes expired jobs
func (s *JobStore) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval(s.ttl))
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stop:
			return
		}
	}
}

func (s *JobStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.ttl)
	for id, job := range s.jobs {
		if job.CreatedAt.Before(cutoff) {
			delete(s.jobs, id)
		}
	}
}

// cleanupInterval sweeps at half the TTL, never more often than once a second
func cleanupInterval(ttl time.Duration) time.Duration {
	return max(ttl/2, minCleanupInterval)
}
