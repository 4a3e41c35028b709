package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobgraph-crawler/internal/crawler"
)

func sampleRun() (crawler.Run, crawler.Result) {
	submitted := time.Unix(1700000000, 0).UTC()
	started := submitted.Add(time.Second)
	finished := submitted.Add(time.Minute)
	age := 2
	run := crawler.Run{
		ID:        "crawl-1",
		Status:    crawler.RunStatusSucceeded,
		Submitted: submitted,
		Started:   &started,
		Finished:  &finished,
		Request:   crawler.Request{Query: "python developer", Keywords: []string{"python"}, MaxDepth: 2},
	}
	result := crawler.Result{
		Seed: "seed",
		Records: []crawler.JobRecord{
			{Title: "Python Dev", URL: "https://www.linkedin.com/jobs/view/python-1", PostingAgeDays: &age, Source: "seed"},
		},
		Edges: []crawler.Edge{
			{Source: "seed", Target: "https://www.linkedin.com/jobs/view/python-1"},
			{Source: "seed", Target: "https://www.linkedin.com/jobs/search/python"},
		},
		Levels: 2,
	}
	return run, result
}

func TestStoreResultWritesRowsInTransaction(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewResultStoreWithPool(mock, "jg_")
	require.NoError(t, err)

	run, result := sampleRun()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO jg_crawls").
		WithArgs(
			run.ID,
			run.Request.Query,
			run.Request.Keywords,
			run.Request.MaxDepth,
			string(run.Status),
			result.Seed,
			result.Levels,
			1,
			2,
			run.Submitted,
			run.Started,
			run.Finished,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("DELETE FROM jg_job_records").WithArgs(run.ID).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("DELETE FROM jg_crawl_edges").WithArgs(run.ID).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"jg_job_records"}, recordColumns).WillReturnResult(1)
	mock.ExpectCopyFrom(pgx.Identifier{"jg_crawl_edges"}, edgeColumns).WillReturnResult(2)
	mock.ExpectCommit()

	require.NoError(t, store.StoreResult(context.Background(), run, result))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreResultSkipsCopyForEmptyResult(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewResultStoreWithPool(mock, "")
	require.NoError(t, err)

	run, _ := sampleRun()
	run.Status = crawler.RunStatusEmpty
	run.Request.Keywords = nil

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO crawls").
		WithArgs(
			run.ID, run.Request.Query, []string{}, run.Request.MaxDepth, "no_results",
			"", 0, 0, 0, run.Submitted, run.Started, run.Finished,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("DELETE FROM job_records").WithArgs(run.ID).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("DELETE FROM crawl_edges").WithArgs(run.ID).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCommit()

	require.NoError(t, store.StoreResult(context.Background(), run, crawler.Result{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreResultRollsBackOnError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewResultStoreWithPool(mock, "")
	require.NoError(t, err)

	run, result := sampleRun()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO crawls").
		WithArgs(
			run.ID, run.Request.Query, run.Request.Keywords, run.Request.MaxDepth, "succeeded",
			result.Seed, result.Levels, 1, 2, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnError(errors.New("unique violation"))
	mock.ExpectRollback()

	err = store.StoreResult(context.Background(), run, result)
	require.ErrorContains(t, err, "unique violation")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewResultStoreWithPool(mock, "jg_")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS jg_crawls").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewResultStoreValidation(t *testing.T) {
	t.Parallel()

	_, err := NewResultStoreWithPool(nil, "")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewResultStoreWithPool(mock, "bad-prefix;")
	require.Error(t, err)

	_, err = NewResultStore(context.Background(), ResultStoreConfig{})
	require.Error(t, err)

	var nilStore *ResultStore
	require.Error(t, nilStore.StoreResult(context.Background(), crawler.Run{ID: "x"}, crawler.Result{}))
	nilStore.Close()
}
