package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
)

func TestJobStore_Lifecycle(t *testing.T) {
	s := NewJobStore(0)
	defer s.Close()

	job := s.Create(domain.CategoryLicense)
	assert.NotEmpty(t, job.JobID)
	assert.Equal(t, domain.StatusPending, job.Status)

	ok := s.Update(job.JobID, func(j *domain.ExtractionJob) {
		j.Status = domain.StatusCompleted
		j.Outcome = &domain.Outcome{Fields: domain.NewFields([]string{"nome"}, map[string]string{"nome": "ANA"})}
	})
	require.True(t, ok)

	got, ok := s.Get(job.JobID)
	require.True(t, ok)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, "ANA", got.Outcome.Fields.Get("nome"))

	s.Delete(job.JobID)
	_, ok = s.Get(job.JobID)
	assert.False(t, ok)

	assert.False(t, s.Update("missing", func(*domain.ExtractionJob) {}))
}

func TestJobStore_TinyTTL(t *testing.T) {
	assert.Equal(t, minCleanupInterval, cleanupInterval(time.Nanosecond))
	assert.Equal(t, time.Minute, cleanupInterval(2*time.Minute))

	s := NewJobStore(time.Nanosecond)
	s.Close()
}

func TestJobStore_Cleanup(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := &JobStore{
		jobs: make(map[string]*domain.ExtractionJob),
		ttl:  time.Minute,
		now:  func() time.Time { return now },
		stop: make(chan struct{}),
	}

	old := s.Create(domain.CategoryScreen)
	now = now.Add(2 * time.Minute)
	fresh := s.Create(domain.CategoryScreen)

	s.cleanup()

	_, ok := s.Get(old.JobID)
	assert.False(t, ok)
	_, ok = s.Get(fresh.JobID)
	assert.True(t, ok)
}

func TestFingerprint(t *testing.T) {
	a, err := Fingerprint(strings.NewReader("documento"))
	require.NoError(t, err)
	b, err := Fingerprint(strings.NewReader("documento"))
	require.NoError(t, err)
	c, err := Fingerprint(strings.NewReader("outro"))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)

	_, err = FingerprintFile("/nonexistent/file.pdf")
	assert.Error(t, err)
}
