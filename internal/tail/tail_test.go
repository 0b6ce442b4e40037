package tail

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/tessro/weradio/internal/core"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func snapshot(title string, elapsed time.Duration, at time.Time, queue ...string) *core.StatusSnapshot {
	s := &core.StatusSnapshot{CapturedAt: at, ServerElapsed: elapsed}
	if title != "" {
		s.Current = &core.Track{Title: title, Artist: "Band", Duration: 200 * time.Second, Filepath: "/m/" + title + ".mp3"}
	}
	for _, q := range queue {
		s.Queue = append(s.Queue, core.TrackRef{Title: q, Artist: "Band", InQueue: true})
	}
	return s
}

func eventTypes(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func TestDiffSnapshots(t *testing.T) {
	tests := []struct {
		name string
		prev *core.StatusSnapshot
		curr *core.StatusSnapshot
		want []EventType
	}{
		{
			name: "first poll",
			curr: snapshot("A", 0, t0),
			want: []EventType{EventTrackChange},
		},
		{
			name: "first poll idle",
			curr: snapshot("", 0, t0),
			want: []EventType{},
		},
		{
			name: "no change",
			prev: snapshot("A", 10*time.Second, t0),
			curr: snapshot("A", 15*time.Second, t0.Add(5*time.Second)),
			want: []EventType{},
		},
		{
			name: "played out",
			prev: snapshot("A", 195*time.Second, t0),
			curr: snapshot("B", 1*time.Second, t0.Add(5*time.Second)),
			want: []EventType{EventTrackComplete, EventTrackChange},
		},
		{
			name: "cut short",
			prev: snapshot("A", 20*time.Second, t0),
			curr: snapshot("B", 1*time.Second, t0.Add(5*time.Second)),
			want: []EventType{EventTrackChange},
		},
		{
			name: "queue grew",
			prev: snapshot("A", 10*time.Second, t0),
			curr: snapshot("A", 15*time.Second, t0.Add(5*time.Second), "C"),
			want: []EventType{EventQueueChange},
		},
		{
			name: "went idle",
			prev: snapshot("A", 100*time.Second, t0),
			curr: snapshot("", 0, t0.Add(5*time.Second)),
			want: []EventType{EventStationIdle},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := eventTypes(diffSnapshots(tt.prev, tt.curr))
			if len(got) != len(tt.want) {
				t.Fatalf("diffSnapshots() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("diffSnapshots()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestUpNextChange(t *testing.T) {
	prev := snapshot("A", 0, t0)
	curr := snapshot("A", 3*time.Second, t0.Add(3*time.Second))
	curr.Next = &core.TrackRef{Title: "N", Artist: "M", Filepath: "/m/n.mp3"}

	got := eventTypes(diffSnapshots(prev, curr))
	if len(got) != 1 || got[0] != EventUpNextChange {
		t.Errorf("diffSnapshots() = %v, want [up_next_change]", got)
	}
}

func TestFormatter(t *testing.T) {
	curr := snapshot("B", 0, t0, "C", "D")
	curr.Next = &core.TrackRef{Title: "C", Artist: "Band"}
	prev := snapshot("A", 199*time.Second, t0)

	tests := []struct {
		name string
		f    *Formatter
		e    Event
		want string
	}{
		{"change", NewFormatter(WithEmoji(false)), Event{Type: EventTrackChange, Current: curr}, "On air: Band - B"},
		{"complete", NewFormatter(WithEmoji(false)), Event{Type: EventTrackComplete, Previous: prev, Current: curr}, "Finished: Band - A"},
		{"queue", NewFormatter(WithEmoji(false)), Event{Type: EventQueueChange, Current: curr}, "Queue: 2 tracks"},
		{"up next", NewFormatter(WithEmoji(false)), Event{Type: EventUpNextChange, Current: curr}, "Up next: Band - C"},
		{"emoji", NewFormatter(), Event{Type: EventStationIdle, Previous: prev, Current: snapshot("", 0, t0)}, "🔇 Off air"},
		{"timestamp", NewFormatter(WithEmoji(false), WithTimestamp(true)), Event{Type: EventStationIdle, Timestamp: t0}, "12:00:00 Off air"},
		{"template", NewFormatter(WithTemplate("{{.Type}}|{{.Artist}}|{{.Title}}|{{.Duration}}|{{.QueueLength}}")), Event{Type: EventTrackChange, Current: curr}, "track_change|Band|B|3:20|2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.f.Format(tt.e); got != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecordJSON(t *testing.T) {
	curr := snapshot("B", 0, t0)
	data, err := json.Marshal(NewRecord(Event{Type: EventTrackChange, Timestamp: t0, Current: curr}))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(data), `"type":"track_change"`) {
		t.Errorf("record = %s, want type track_change", data)
	}
	if !strings.Contains(string(data), `"title":"B"`) {
		t.Errorf("record = %s, want title B", data)
	}
}

type scriptedSource struct {
	snaps []*core.StatusSnapshot
	i     int
}

func (s *scriptedSource) Poll(ctx context.Context) (*core.StatusSnapshot, error) {
	snap := s.snaps[min(s.i, len(s.snaps)-1)]
	s.i++
	return snap, nil
}

func TestWatcher(t *testing.T) {
	src := &scriptedSource{snaps: []*core.StatusSnapshot{
		snapshot("A", 195*time.Second, t0),
		snapshot("B", 0, t0.Add(10*time.Second)),
	}}
	w := NewWatcher(src, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx) }()

	var got []EventType
	timeout := time.After(2 * time.Second)
	for len(got) < 3 {
		select {
		case e := <-w.Events():
			got = append(got, e.Type)
		case <-timeout:
			t.Fatalf("events = %v, want 3", got)
		}
	}
	want := []EventType{EventTrackChange, EventTrackComplete, EventTrackChange}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %v, want %v", i, got[i], want[i])
		}
	}
}
