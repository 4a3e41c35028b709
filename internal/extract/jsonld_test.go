package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func jobPage(block string) string {
	return `<html><head><script type="application/ld+json">` + block + `</script></head><body><h1>Job</h1></body></html>`
}

func TestParseJobPosting(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		markup      string
		wantDesc    string
		wantDate    time.Time
		wantErr     bool
		wantNoBlock bool
	}{
		{
			name:     "object with date and time",
			markup:   jobPage(`{"@type":"JobPosting","description":"  Build things.  ","datePosted":"2024-05-01T10:30:00.000Z"}`),
			wantDesc: "Build things.",
			wantDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "array picks first object",
			markup:   jobPage(`[1, {"description":"From array","datePosted":"2024-01-02"}]`),
			wantDesc: "From array",
			wantDate: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "malformed date keeps description",
			markup:   jobPage(`{"description":"Still here","datePosted":"yesterday"}`),
			wantDesc: "Still here",
		},
		{
			name:     "non-string fields are ignored",
			markup:   jobPage(`{"description":42}`),
			wantDesc: "",
		},
		{
			name:    "invalid json",
			markup:  jobPage(`{"description":`),
			wantErr: true,
		},
		{
			name:    "scalar payload",
			markup:  jobPage(`"just a string"`),
			wantErr: true,
		},
		{
			name:        "no block",
			markup:      `<html><body>nothing</body></html>`,
			wantErr:     true,
			wantNoBlock: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			posting, err := ParseJobPosting(tc.markup)
			if tc.wantErr {
				require.Error(t, err)
				if tc.wantNoBlock {
					require.ErrorIs(t, err, ErrNoStructuredData)
				}
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantDesc, posting.Description)
			require.Equal(t, !tc.wantDate.IsZero(), posting.HasDate())
			if posting.HasDate() {
				require.True(t, tc.wantDate.Equal(posting.DatePosted))
			}
		})
	}
}

func TestParseDatePosted(t *testing.T) {
	t.Parallel()

	date, err := ParseDatePosted("2023-12-31T23:59:59+05:30")
	require.NoError(t, err)
	require.Equal(t, "2023-12-31", date.Format(time.DateOnly))

	_, err = ParseDatePosted("")
	require.Error(t, err)
	_, err = ParseDatePosted("31/12/2023")
	require.Error(t, err)
}
