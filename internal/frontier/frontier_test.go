package frontier

import (
	"context"
	"testing"
	"time"
)

func drain(t *testing.T, f *Frontier) []string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var out []string
	for {
		path, ok := f.Next(ctx)
		if !ok {
			return out
		}
		out = append(out, path)
	}
}

func TestDedupPreservesOrder(t *testing.T) {
	f := New(nil)
	defer f.Close()

	f.Offer([]string{"/a", "/b", "/a", "/c"})
	got := drain(t, f)
	want := []string{"/a", "/b", "/c"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestSeenSurvivesDrain(t *testing.T) {
	f := New([]string{"/a"})
	defer f.Close()

	if got := drain(t, f); len(got) != 1 {
		t.Fatalf("expected one path, got %v", got)
	}
	f.Offer([]string{"/a"})
	if got := drain(t, f); len(got) != 0 {
		t.Fatalf("a path is enqueued at most once per lifetime, got %v", got)
	}
}

func TestNextOnEmpty(t *testing.T) {
	f := New(nil)
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, ok := f.Next(ctx); ok {
		t.Fatalf("empty frontier must report no path")
	}
}

func TestClosedFrontier(t *testing.T) {
	f := New([]string{"/a"})
	f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, ok := f.Next(ctx); ok {
		t.Fatalf("closed frontier must report no path")
	}
	f.Offer([]string{"/b"}) // must not block or panic
}

func TestCancelledContext(t *testing.T) {
	f := New([]string{"/a"})
	defer f.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := f.Next(ctx); ok {
		t.Fatalf("cancelled context must report no path")
	}
}
