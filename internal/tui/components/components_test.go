package components

import (
	"strings"
	"testing"
	"time"

	"github.com/tessro/weradio/internal/core"
)

func testListing() *core.Listing {
	return &core.Listing{Tracks: []core.TrackRef{
		{Filepath: "/m/a.mp3", Filename: "a.mp3", Title: "Alpha", Artist: "One"},
		{Filepath: "/m/b.mp3", Filename: "b.mp3", Title: "Bravo", Artist: "Two", InQueue: true},
		{Filepath: "/m/c.mp3", Filename: "c.mp3", Title: "Charlie", Artist: "One"},
	}, Total: 3}
}

func TestLibrarySelectedUsesListingIndex(t *testing.T) {
	l := NewLibrary()
	listing := testListing()

	l.SetFilter("one")
	l.SelectNext()

	i, ref, ok := l.Selected(listing)
	if !ok {
		t.Fatal("Selected() ok = false")
	}
	if i != 2 || ref.Filepath != "/m/c.mp3" {
		t.Errorf("Selected() = %d, %q, want 2, /m/c.mp3", i, ref.Filepath)
	}
}

func TestLibrarySelectionClampsAfterShrink(t *testing.T) {
	l := NewLibrary()
	listing := testListing()
	for range 5 {
		l.SelectNext()
	}

	i, _, ok := l.Selected(listing)
	if !ok || i != 2 {
		t.Errorf("Selected() = %d, %v, want 2, true", i, ok)
	}

	listing.Remove("/m/c.mp3")
	i, ref, ok := l.Selected(listing)
	if !ok || i != 1 || ref.Filepath != "/m/b.mp3" {
		t.Errorf("Selected() after remove = %d, %q, %v", i, ref.Filepath, ok)
	}
}

func TestLibraryEmpty(t *testing.T) {
	l := NewLibrary()
	if _, _, ok := l.Selected(&core.Listing{}); ok {
		t.Error("Selected() ok = true on empty listing")
	}
	if out := l.Render(&core.Listing{}, 40, 10, true); !strings.Contains(out, "No tracks") {
		t.Errorf("Render() = %q, want empty notice", out)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0:00"},
		{59 * time.Second, "0:59"},
		{200 * time.Second, "3:20"},
		{61*time.Minute + 500*time.Millisecond, "61:01"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFitPair(t *testing.T) {
	title, artist := fitPair("A very long title indeed", "Somebody", 20, 8)
	if len(title)+len(artist) > 20 {
		t.Errorf("fitPair() = %q, %q, exceeds 20 columns", title, artist)
	}
	title, artist = fitPair("Short", "Band", 20, 8)
	if title != "Short" || artist != "Band" {
		t.Errorf("fitPair() = %q, %q, want untouched", title, artist)
	}
}

func TestHistoryRender(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := &History{now: func() time.Time { return now }}

	entries := []core.HistoryEntry{
		{Track: &core.Track{Title: "Alpha", Artist: "One"}, PlayedAt: now.Add(-10 * time.Second)},
		{Track: nil, PlayedAt: now},
		{Track: &core.Track{Title: "Bravo", Artist: "Two"}, PlayedAt: now.Add(-5 * time.Minute)},
	}
	out := h.Render(entries, 60, 10, false)
	for _, want := range []string{"History", "Alpha", "now", "Bravo", "5m"} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() missing %q:\n%s", want, out)
		}
	}

	if out := h.Render(nil, 60, 10, false); !strings.Contains(out, "Nothing aired yet") {
		t.Errorf("Render(empty) = %q, want placeholder", out)
	}
	_ = h.Render(entries, 10, 2, true)
}

func TestAired(t *testing.T) {
	at := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{30 * time.Second, "now"},
		{3 * time.Minute, "3m"},
		{2 * time.Hour, "2h"},
		{48 * time.Hour, "Jan 2"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := aired(tt.ago, at); got != tt.want {
				t.Errorf("aired(%v) = %q, want %q", tt.ago, got, tt.want)
			}
		})
	}
}
