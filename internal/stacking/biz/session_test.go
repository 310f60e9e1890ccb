package biz

import (
	"bytes"
	"context"
	"testing"

	apperrors "github.com/astronomyk/CrowdSky/internal/pkg/errors"
	"github.com/astronomyk/CrowdSky/internal/stacking/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSession(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	info, err := e.sessionUC.Open(ctx, 7)
	require.NoError(t, err)

	assert.NotEmpty(t, info.Token)
	assert.Equal(t, types.SessionUploading, info.Status)
	assert.Zero(t, info.FileCount)

	other, err := e.sessionUC.Open(ctx, 7)
	require.NoError(t, err)
	assert.NotEqual(t, info.Token, other.Token)
}

func TestIngestAcceptsFrameAndAssignsChunkKey(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	info, err := e.sessionUC.Open(ctx, 7)
	require.NoError(t, err)

	frame := fitsFrame(
		"DATE-OBS= '2025-01-15T19:30:00'",
		"OBJECT  = 'M 42'",
		"RA      =               83.633",
		"DEC     =              22.0145",
	)
	result, err := e.sessionUC.Ingest(ctx, info.Token, 7, "light_001.fits", bytes.NewReader(frame))
	require.NoError(t, err)

	require.NotNil(t, result.ChunkKey)
	assert.Equal(t, "20250115.78_83.6_+22.0", *result.ChunkKey)
	require.NotNil(t, result.Object)
	assert.Equal(t, "M 42", *result.Object)

	status, err := e.sessionUC.Status(ctx, info.Token, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), status.FileCount)
	assert.Equal(t, int64(len(frame)), status.TotalBytes)
	require.NotNil(t, status.Object)
	assert.Equal(t, "M 42", *status.Object)
}

func TestIngestNullChunkKeyWhenTimestampMissing(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	info, err := e.sessionUC.Open(ctx, 7)
	require.NoError(t, err)

	result, err := e.sessionUC.Ingest(ctx, info.Token, 7, "a.fits", bytes.NewReader(fitsFrame()))
	require.NoError(t, err)
	assert.Nil(t, result.ChunkKey)
}

func TestIngestValidation(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	info, err := e.sessionUC.Open(ctx, 7)
	require.NoError(t, err)

	_, err = e.sessionUC.Ingest(ctx, info.Token, 7, "notes.txt", bytes.NewReader(fitsFrame()))
	assert.True(t, apperrors.Is(err, apperrors.ErrFileTypeInvalid))

	// Only .fit and .fits pass the allow-list; near-miss extensions do not.
	_, err = e.sessionUC.Ingest(ctx, info.Token, 7, "frame.fts", bytes.NewReader(fitsFrame()))
	assert.True(t, apperrors.Is(err, apperrors.ErrFileTypeInvalid))

	_, err = e.sessionUC.Ingest(ctx, info.Token, 7, "junk.fits", bytes.NewReader([]byte("not a frame")))
	assert.True(t, apperrors.Is(err, apperrors.ErrFrameInvalid))

	// Rejected frames leave nothing staged.
	assert.Zero(t, e.staging.liveCount())

	_, err = e.sessionUC.Ingest(ctx, "no-such-token", 7, "a.fits", bytes.NewReader(fitsFrame()))
	assert.True(t, apperrors.Is(err, apperrors.ErrSessionNotFound))

	_, err = e.sessionUC.Ingest(ctx, info.Token, 99, "a.fits", bytes.NewReader(fitsFrame()))
	assert.True(t, apperrors.Is(err, apperrors.ErrSessionNotFound))
}

func TestIngestRejectsOversizeFrame(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	e.sessionUC.maxFileSize = 2880

	info, err := e.sessionUC.Open(ctx, 7)
	require.NoError(t, err)

	big := append(fitsFrame(), make([]byte, 2880)...)
	_, err = e.sessionUC.Ingest(ctx, info.Token, 7, "big.fits", bytes.NewReader(big))
	assert.True(t, apperrors.Is(err, apperrors.ErrFileTooLarge))
	assert.Zero(t, e.staging.liveCount())
}

func TestIngestRejectedAfterFinalize(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	info, err := e.sessionUC.Open(ctx, 7)
	require.NoError(t, err)

	_, err = e.sessionUC.Ingest(ctx, info.Token, 7, "a.fits", bytes.NewReader(fitsFrame("DATE-OBS= '2025-01-15T19:30:00'")))
	require.NoError(t, err)
	_, err = e.sessionUC.Finalize(ctx, info.Token, 7)
	require.NoError(t, err)

	_, err = e.sessionUC.Ingest(ctx, info.Token, 7, "b.fits", bytes.NewReader(fitsFrame()))
	assert.True(t, apperrors.Is(err, apperrors.ErrSessionNotUploading))
}

func TestFinalizeGroupsByChunkKey(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	info, err := e.sessionUC.Open(ctx, 7)
	require.NoError(t, err)

	// Two frames in bucket A, one in bucket B, one unparseable.
	frames := [][]byte{
		fitsFrame("DATE-OBS= '2025-01-15T19:30:00'", "OBJECT  = 'M 42'"),
		fitsFrame("DATE-OBS= '2025-01-15T19:31:00'"),
		fitsFrame("DATE-OBS= '2025-01-15T21:00:00'"),
		fitsFrame("OBJECT  = 'no timestamp'"),
	}
	for i, f := range frames {
		_, err := e.sessionUC.Ingest(ctx, info.Token, 7, "f.fits", bytes.NewReader(f))
		require.NoError(t, err, "frame %d", i)
	}

	result, err := e.sessionUC.Finalize(ctx, info.Token, 7)
	require.NoError(t, err)
	assert.Equal(t, 3, result.JobCount)
	assert.Len(t, result.JobIDs, 3)

	counts := map[string]int{}
	for _, id := range result.JobIDs {
		job, err := e.jobs.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, types.JobPending, job.Status)
		counts[job.ChunkKey] = job.FrameCount
	}
	assert.Equal(t, map[string]int{
		"20250115.78":         2,
		"20250115.84":         1,
		types.UnknownChunkKey: 1,
	}, counts)
}

func TestFinalizeNotIdempotent(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	info, err := e.sessionUC.Open(ctx, 7)
	require.NoError(t, err)
	_, err = e.sessionUC.Ingest(ctx, info.Token, 7, "a.fits", bytes.NewReader(fitsFrame("DATE-OBS= '2025-01-15T19:30:00'")))
	require.NoError(t, err)

	_, err = e.sessionUC.Finalize(ctx, info.Token, 7)
	require.NoError(t, err)

	_, err = e.sessionUC.Finalize(ctx, info.Token, 7)
	assert.True(t, apperrors.Is(err, apperrors.ErrSessionNotUploading))
}

func TestFinalizeEmptySession(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	info, err := e.sessionUC.Open(ctx, 7)
	require.NoError(t, err)

	_, err = e.sessionUC.Finalize(ctx, info.Token, 7)
	assert.True(t, apperrors.Is(err, apperrors.ErrSessionEmpty))

	// The failed finalize rolled back; the session still accepts
	// uploads.
	_, err = e.sessionUC.Ingest(ctx, info.Token, 7, "a.fits", bytes.NewReader(fitsFrame("DATE-OBS= '2025-01-15T19:30:00'")))
	require.NoError(t, err)
	_, err = e.sessionUC.Finalize(ctx, info.Token, 7)
	require.NoError(t, err)
}
