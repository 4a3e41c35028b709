package memory

import (
	"bytes"
	"context"
	"testing"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("Title,Link\n")
	uri, err := store.PutObject(context.Background(), "exports/go.csv", "text/csv", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if uri != "memory://exports/go.csv" {
		t.Fatalf("unexpected uri %s", uri)
	}
	payload[0] = 'X'
	stored, ok := store.Get("exports/go.csv")
	if !ok || string(stored) != "Title,Link\n" {
		t.Fatalf("expected stored copy to be immutable, got %q", stored)
	}
	stored[0] = 'Y'
	again, _ := store.Get("exports/go.csv")
	if string(again) != "Title,Link\n" {
		t.Fatalf("expected Get to return a copy, got %q", again)
	}
}

func TestBlobStorePaths(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	ctx := context.Background()
	for _, p := range []string{"b.json", "a.csv"} {
		if _, err := store.PutObject(ctx, p, "", bytes.NewReader(nil)); err != nil {
			t.Fatalf("PutObject(%s) error = %v", p, err)
		}
	}
	got := store.Paths()
	if len(got) != 2 || got[0] != "a.csv" || got[1] != "b.json" {
		t.Fatalf("Paths() = %v", got)
	}
	if _, ok := store.Get("missing"); ok {
		t.Fatal("expected missing path to be absent")
	}
}
