package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSeedTemplateBuild(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		tmpl  SeedTemplate
		query string
		want  string
	}{
		{
			name:  "default site",
			tmpl:  DefaultSeedTemplate(),
			query: " python developer ",
			want:  "https://www.linkedin.com/jobs/search/?keywords=python%20developer&location=India&origin=JOB_SEARCH_PAGE_SEARCH_BUTTON",
		},
		{
			name:  "no location or origin",
			tmpl:  SeedTemplate{BaseURL: "https://site.example/jobs/search"},
			query: "c++ dev",
			want:  "https://site.example/jobs/search?keywords=c%2B%2B%20dev",
		},
		{
			name:  "base already has query",
			tmpl:  SeedTemplate{BaseURL: "https://site.example/search?lang=en", Location: "New York"},
			query: "go",
			want:  "https://site.example/search?lang=en&keywords=go&location=New%20York",
		},
		{
			name:  "empty base falls back",
			tmpl:  SeedTemplate{},
			query: "go",
			want:  DefaultSearchURL + "?keywords=go",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, tt.tmpl.Build(tt.query))
		})
	}
}

func TestDefaultKeywords(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"python", "developer"}, DefaultKeywords("  Python   Developer python "))
	require.Empty(t, DefaultKeywords("   "))
}

func TestParseKeywords(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"python", "django", "rest api"}, ParseKeywords("Python, Django,, rest api ,python"))
	require.Empty(t, ParseKeywords(" , ,"))
}
