package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReaper struct {
	maxAge time.Duration
	calls  int
}

func (f *fakeReaper) ReapStale(_ context.Context, maxAge time.Duration) (int64, error) {
	f.calls++
	f.maxAge = maxAge
	return 3, nil
}

type fakeCloser struct{ err error }

func (f fakeCloser) CloseIncomplete(context.Context) (int64, error) { return 0, f.err }

func TestNewRejectsBadSpec(t *testing.T) {
	_, err := New(time.UTC, Job{Name: "bad", Spec: "every tuesday", Run: func(context.Context) error { return nil }})
	assert.Error(t, err)
}

func TestJobsRunWithTimeout(t *testing.T) {
	r := &fakeReaper{}
	job := ReapTokensJob("15 2 * * *", r, 90*24*time.Hour)
	wrap(job)()
	assert.Equal(t, 1, r.calls)
	assert.Equal(t, 90*24*time.Hour, r.maxAge)

	var deadline bool
	wrap(Job{Name: "deadline-check", Run: func(ctx context.Context) error {
		_, deadline = ctx.Deadline()
		return nil
	}})()
	assert.True(t, deadline)

	assert.Error(t, CloseIncompleteJob("5 0 * * *", fakeCloser{err: errors.New("db down")}).Run(context.Background()))
}

func TestStartStop(t *testing.T) {
	s, err := New(time.UTC, CloseIncompleteJob("5 0 * * *", fakeCloser{}))
	require.NoError(t, err)
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	assert.NoError(t, ctx.Err())
}
