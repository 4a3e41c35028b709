package crawler

import "testing"

func TestHostBlocklist(t *testing.T) {
	t.Parallel()

	t.Run("exact host", func(t *testing.T) {
		bl := newHostBlocklist([]string{"Ads.Example.com"})
		if bl == nil {
			t.Fatalf("expected blocklist")
		}
		if !bl.blocksHost("ads.example.com") {
			t.Fatalf("expected ads.example.com to be blocked")
		}
		if bl.blocksHost("x.ads.example.com") {
			t.Fatalf("exact entries must not match subdomains")
		}
	})

	t.Run("suffix patterns", func(t *testing.T) {
		bl := newHostBlocklist([]string{"*.tracker.io", ".spam.net", "*."})
		cases := []struct {
			href    string
			blocked bool
		}{
			{"https://tracker.io/jobs/1", true},
			{"https://a.b.tracker.io/jobs/1", true},
			{"http://spam.net:8080/jobs", true},
			{"https://mytracker.io/jobs", false},
			{"/relative/jobs/view/1", false},
			{"%zz", false},
		}
		for _, tc := range cases {
			if got := bl.blocksLink(tc.href); got != tc.blocked {
				t.Fatalf("blocksLink(%q) = %v, want %v", tc.href, got, tc.blocked)
			}
		}
	})

	t.Run("empty patterns", func(t *testing.T) {
		bl := newHostBlocklist([]string{" ", ""})
		if bl != nil {
			t.Fatalf("expected nil blocklist for empty patterns")
		}
		if bl.blocksLink("https://anything.example/jobs") {
			t.Fatalf("nil blocklist should never block")
		}
	})
}
