package app_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobgraph-crawler/internal/app"
	"github.com/JakeFAU/jobgraph-crawler/internal/clock/system"
	"github.com/JakeFAU/jobgraph-crawler/internal/config"
	"github.com/JakeFAU/jobgraph-crawler/internal/crawler"
	memorystorage "github.com/JakeFAU/jobgraph-crawler/internal/storage/memory"
)

const (
	seedURL = "https://jobs.example/search?keywords=python"
	jobURL  = "https://jobs.example/jobs/view/python-dev-1"
)

type siteFetcher map[string]string

func (s siteFetcher) Fetch(_ context.Context, rawURL string) (string, error) {
	markup, ok := s[rawURL]
	if !ok {
		return "", &crawler.FetchFailure{URL: rawURL, StatusCode: 404, Err: fmt.Errorf("not found")}
	}
	return markup, nil
}

func testSite() siteFetcher {
	return siteFetcher{
		seedURL: `<html><body>
<a href="https://jobs.example/jobs/view/python-dev-1?trk=search">  Python
   Developer </a>
<a href="https://jobs.example/jobs/search/python-remote">More python jobs</a>
<a href="https://other.example/python">Elsewhere</a>
</body></html>`,
		jobURL: `<html><head><script type="application/ld+json">
{"@type":"JobPosting","description":"Write Python services.","datePosted":"2026-10-10T08:00:00Z"}
</script></head><body></body></html>`,
	}
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Storage.Backend = config.BackendMemory
	cfg.Search.URLTemplate = "https://jobs.example/search"
	cfg.Search.Location = ""
	cfg.Search.Origin = ""
	cfg.Filter.ListingMarkers = []string{"jobs.example/jobs"}
	cfg.Filter.ViewMarker = "jobs.example/jobs/view"
	cfg.Crawler.RetryAttempts = 1
	return cfg
}

func TestNewRunnerCrawlsAndExports(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a, err := app.New(ctx, testConfig(t), zap.NewNop(),
		app.WithPageFetcher(testSite()),
		app.WithClock(system.Fixed(time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC))),
	)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.ResultStore(), "no DSN configured")
	assert.Nil(t, a.Publisher(), "no topic configured")

	result, err := a.NewRunner(nil).Run(ctx, crawler.Request{Query: "python", MaxDepth: 1})
	require.NoError(t, err)
	require.Equal(t, seedURL, result.Seed)
	require.Len(t, result.Records, 1)

	record := result.Records[0]
	assert.Equal(t, "Python Developer", record.Title)
	assert.Equal(t, jobURL, record.URL)
	assert.Equal(t, "Write Python services.", record.Description)
	require.NotNil(t, record.PostingAgeDays)
	assert.Equal(t, 7, *record.PostingAgeDays)
	assert.Equal(t, []crawler.Edge{
		{Source: seedURL, Target: jobURL},
		{Source: seedURL, Target: "https://jobs.example/jobs/search/python-remote"},
	}, result.Edges)

	artifacts, err := a.Exporter().Export(ctx, "", "python", result)
	require.NoError(t, err)
	assert.Equal(t, "memory://python.csv", artifacts.CSV)

	blobs, ok := a.BlobStore().(*memorystorage.BlobStore)
	require.True(t, ok)
	csv, ok := blobs.Get("python.csv")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(string(csv), "Title,Link,Description,Posting Age\n"))
	assert.Contains(t, string(csv), "7 days ago")

	graphJSON, ok := blobs.Get("python_graph.json")
	require.True(t, ok)
	assert.Contains(t, string(graphJSON), `"kind": "job"`)
}

func TestNewRunnerReportsNoResults(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Crawler.RetryAttempts = 2
	a, err := app.New(context.Background(), cfg, nil, app.WithPageFetcher(siteFetcher{}))
	require.NoError(t, err)
	defer a.Close()

	_, err = a.NewRunner(nil).Run(context.Background(), crawler.Request{Query: "python", MaxDepth: 1})
	require.ErrorIs(t, err, crawler.ErrNoResults)
}

func TestNewEngineValidatesRequests(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(t), nil, app.WithPageFetcher(testSite()))
	require.NoError(t, err)
	defer a.Close()

	_, err = a.NewEngine(nil).Start(crawler.Request{Query: "  "})
	require.ErrorIs(t, err, crawler.ErrConfiguration)
	assert.Equal(t, "jobs.example/jobs/view", a.GraphOptions().ViewMarker)
}

func TestNewLocalBackend(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Storage.Backend = config.BackendLocal
	cfg.Storage.BaseDir = t.TempDir()
	a, err := app.New(context.Background(), cfg, nil, app.WithPageFetcher(testSite()))
	require.NoError(t, err)
	defer a.Close()

	uri, err := a.BlobStore().PutObject(context.Background(), "x/report.csv", "text/csv", strings.NewReader("a,b\n"))
	require.NoError(t, err)
	assert.Contains(t, uri, "report.csv")
}

func TestNewUnknownBackend(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Storage.Backend = "tape"
	_, err := app.New(context.Background(), cfg, nil, app.WithPageFetcher(testSite()))
	require.ErrorContains(t, err, "unknown storage backend")
}
