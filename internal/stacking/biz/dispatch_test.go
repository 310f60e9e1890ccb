package biz

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"

	apperrors "github.com/astronomyk/CrowdSky/internal/pkg/errors"
	"github.com/astronomyk/CrowdSky/internal/stacking/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedJobs finalizes a session with n distinct chunk keys, yielding n
// pending jobs.
func seedJobs(t *testing.T, e *env, n int) []int64 {
	t.Helper()
	ctx := context.Background()

	info, err := e.sessionUC.Open(ctx, 1)
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		card := fmt.Sprintf("DATE-OBS= '2025-01-15T%02d:00:00'", i)
		_, err := e.sessionUC.Ingest(ctx, info.Token, 1, "f.fits", bytes.NewReader(fitsFrame(card)))
		require.NoError(t, err)
	}

	result, err := e.sessionUC.Finalize(ctx, info.Token, 1)
	require.NoError(t, err)
	require.Equal(t, n, result.JobCount)
	return result.JobIDs
}

func TestClaimReturnsOldestPending(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	ids := seedJobs(t, e, 3)

	job, err := e.dispatchUC.Claim(ctx, "worker-1")
	require.NoError(t, err)
	require.NotNil(t, job)

	assert.Equal(t, ids[0], job.ID)
	stored, err := e.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobProcessing, stored.Status)
	require.NotNil(t, stored.WorkerID)
	assert.Equal(t, "worker-1", *stored.WorkerID)
	assert.NotNil(t, stored.StartedAt)
}

func TestClaimNoWork(t *testing.T) {
	e := newEnv()

	job, err := e.dispatchUC.Claim(context.Background(), "worker-1")
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestClaimRequiresWorkerID(t *testing.T) {
	e := newEnv()

	_, err := e.dispatchUC.Claim(context.Background(), "")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParams))
}

// Each job goes to exactly one claimant even when claimants outnumber
// jobs.
func TestConcurrentClaimsAreExclusive(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	const jobCount = 8
	const claimants = 24
	seedJobs(t, e, jobCount)

	var mu sync.Mutex
	seen := make(map[int64]string)
	var empty int

	var wg sync.WaitGroup
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func(worker string) {
			defer wg.Done()
			job, err := e.dispatchUC.Claim(ctx, worker)
			if !assert.NoError(t, err) {
				return
			}

			mu.Lock()
			defer mu.Unlock()
			if job == nil {
				empty++
				return
			}
			prev, dup := seen[job.ID]
			assert.False(t, dup, "job %d claimed by both %s and %s", job.ID, prev, worker)
			seen[job.ID] = worker
		}(fmt.Sprintf("worker-%d", i))
	}
	wg.Wait()

	assert.Len(t, seen, jobCount)
	assert.Equal(t, claimants-jobCount, empty)
}

func TestClaimPrefersPendingOverRetry(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	ids := seedJobs(t, e, 2)

	// Put the first job into retry.
	job, err := e.dispatchUC.Claim(ctx, "w1")
	require.NoError(t, err)
	require.Equal(t, ids[0], job.ID)
	_, err = e.jobUC.Fail(ctx, job.ID, "transient")
	require.NoError(t, err)

	// The remaining pending job wins over the older retry one.
	job, err = e.dispatchUC.Claim(ctx, "w2")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, ids[1], job.ID)

	// With the pending pool drained the retry job is served.
	job, err = e.dispatchUC.Claim(ctx, "w3")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, ids[0], job.ID)
	assert.Equal(t, 1, job.RetryCount)
}
