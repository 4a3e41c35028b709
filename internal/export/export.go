// Package export writes crawl results as artifacts: a CSV of job records and
// a JSON document of the crawl graph.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobgraph-crawler/internal/crawler"
	"github.com/JakeFAU/jobgraph-crawler/internal/graph"
)

// DefaultSummaryLimit is the number of description runes kept in the CSV.
const DefaultSummaryLimit = 100

// CSVHeader is the column order of the records CSV.
var CSVHeader = []string{"Title", "Link", "Description", "Posting Age"}

// Options configures an Exporter.
type Options struct {
	// Prefix is prepended to every artifact path.
	Prefix       string
	SummaryLimit int
	Graph        graph.Options
}

// Artifacts lists the URIs returned by the blob store.
type Artifacts struct {
	CSV   string `json:"csv"`
	Graph string `json:"graph"`
}

// Exporter renders results and hands them to a BlobStore.
type Exporter struct {
	store  crawler.BlobStore
	opts   Options
	logger *zap.Logger
}

// New builds an Exporter.
func New(store crawler.BlobStore, opts Options, logger *zap.Logger) *Exporter {
	if opts.SummaryLimit <= 0 {
		opts.SummaryLimit = DefaultSummaryLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{store: store, opts: opts, logger: logger}
}

// Export writes both artifacts for result. crawlID, when set, becomes a path
// segment so service crawls of the same query do not overwrite each other.
func (e *Exporter) Export(ctx context.Context, crawlID, query string, result crawler.Result) (Artifacts, error) {
	base := BaseName(query)
	if base == "" {
		return Artifacts{}, fmt.Errorf("cannot derive artifact name from query %q", query)
	}
	dir := path.Join(e.opts.Prefix, crawlID)

	var csvBuf bytes.Buffer
	if err := WriteCSV(&csvBuf, result.Records, e.opts.SummaryLimit); err != nil {
		return Artifacts{}, err
	}
	csvURI, err := e.store.PutObject(ctx, path.Join(dir, base+".csv"), "text/csv", &csvBuf)
	if err != nil {
		return Artifacts{}, fmt.Errorf("store csv: %w", err)
	}

	var graphBuf bytes.Buffer
	if err := WriteGraph(&graphBuf, graph.FromResult(result, e.opts.Graph)); err != nil {
		return Artifacts{}, err
	}
	graphURI, err := e.store.PutObject(ctx, path.Join(dir, base+"_graph.json"), "application/json", &graphBuf)
	if err != nil {
		return Artifacts{}, fmt.Errorf("store graph: %w", err)
	}

	e.logger.Info("artifacts exported",
		zap.String("crawl_id", crawlID),
		zap.String("csv", csvURI),
		zap.String("graph", graphURI),
	)
	return Artifacts{CSV: csvURI, Graph: graphURI}, nil
}

// separators keeps the artifact name a single path element.
var separators = strings.NewReplacer("/", "_", "\\", "_")

// BaseName derives the artifact name from a search query: newlines removed,
// trimmed, spaces and path separators replaced by underscores.
func BaseName(query string) string {
	name := strings.ReplaceAll(query, "\n", "")
	name = strings.TrimSpace(name)
	return separators.Replace(strings.ReplaceAll(name, " ", "_"))
}

// FileName returns the CSV file name for query.
func FileName(query string) string {
	return BaseName(query) + ".csv"
}

// WriteCSV writes the header and one row per record, in record order.
func WriteCSV(w io.Writer, records []crawler.JobRecord, summaryLimit int) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range records {
		row := []string{rec.Title, rec.URL, rec.Summary(summaryLimit), rec.PostingAge()}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", rec.URL, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteGraph encodes g as indented JSON.
func WriteGraph(w io.Writer, g graph.Graph) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(g); err != nil {
		return fmt.Errorf("encode graph: %w", err)
	}
	return nil
}
