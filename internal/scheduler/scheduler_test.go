package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/magicfactory/internal/database"
	"github.com/aristath/magicfactory/internal/modules/results"
	"github.com/aristath/magicfactory/internal/modules/search"
	testutil "github.com/aristath/magicfactory/internal/testing"
)

var quiet = zerolog.New(nil).Level(zerolog.Disabled)

type countingJob struct {
	name string
	runs int
	err  error
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run() error {
	j.runs++
	return j.err
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(quiet)
	require.NoError(t, s.AddJob("0 */5 * * * *", &countingJob{name: "six-field"}))
	require.NoError(t, s.AddJob("*/5 * * * *", &countingJob{name: "five-field"}))
	require.NoError(t, s.AddJob("@hourly", &countingJob{name: "descriptor"}))
	assert.Error(t, s.AddJob("every so often", &countingJob{name: "bad"}))

	s.Start()
	defer s.Stop()
	jobs := s.Jobs()
	assert.Len(t, jobs, 3)
	for _, j := range jobs {
		assert.NotEmpty(t, j.Next, j.Name)
	}
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(quiet)
	job := &countingJob{name: "job", err: errors.New("boom")}
	assert.EqualError(t, s.RunNow(job), "boom")
	assert.Equal(t, 1, job.runs)
}

func TestWALCheckpointJob(t *testing.T) {
	job := NewWALCheckpointJob(quiet,
		testutil.NewTestDB(t, database.ResultsName),
		nil,
		testutil.NewTestDB(t, database.CacheName),
	)
	assert.Equal(t, "wal_checkpoint", job.Name())
	assert.NoError(t, job.Run())
	assert.NoError(t, NewWALCheckpointJob(quiet).Run())
}

type fakeExporter struct {
	exports []results.Export
	err     error
	calls   int
}

func (f *fakeExporter) ExportPending(context.Context) ([]results.Export, error) {
	f.calls++
	return f.exports, f.err
}

func TestExportResultsJob(t *testing.T) {
	exp := &fakeExporter{exports: []results.Export{{RunID: "a"}}}
	job := NewExportResultsJob(exp, quiet)
	assert.Equal(t, "export_results", job.Name())
	assert.NoError(t, job.Run())
	assert.Equal(t, 1, exp.calls)

	exp.err = testutil.ErrMockFailure
	assert.ErrorIs(t, job.Run(), testutil.ErrMockFailure)
}

func TestScheduledSearchJob(t *testing.T) {
	est := &testutil.FakeEstimator{}
	runner := search.NewRunner(est, nil, nil, search.RunnerConfig{Workers: 2}, quiet)

	job := NewScheduledSearchJob(runner, search.PresetOneLevel, quiet)
	assert.Equal(t, "scheduled_search", job.Name())
	require.NoError(t, job.Run())
	assert.Equal(t, 160, est.Calls())

	assert.Error(t, NewScheduledSearchJob(runner, "three-level", quiet).Run())
}
