package tail

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/tessro/weradio/internal/core"
)

// Formatter formats events for output.
type Formatter struct {
	showEmoji     bool
	showTimestamp bool
	template      *template.Template
}

// FormatterOption configures a Formatter.
type FormatterOption func(*Formatter)

// WithEmoji enables emoji output.
func WithEmoji(enabled bool) FormatterOption {
	return func(f *Formatter) {
		f.showEmoji = enabled
	}
}

// WithTimestamp enables timestamp output.
func WithTimestamp(enabled bool) FormatterOption {
	return func(f *Formatter) {
		f.showTimestamp = enabled
	}
}

// WithTemplate sets a custom format template.
func WithTemplate(tmpl string) FormatterOption {
	return func(f *Formatter) {
		if tmpl != "" {
			t, err := template.New("format").Parse(tmpl)
			if err == nil {
				f.template = t
			}
		}
	}
}

// NewFormatter creates a new formatter with the given options.
func NewFormatter(opts ...FormatterOption) *Formatter {
	f := &Formatter{
		showEmoji:     true,
		showTimestamp: false,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format formats an event as a string.
func (f *Formatter) Format(e Event) string {
	if f.template != nil {
		return f.formatTemplate(e)
	}
	return f.formatLine(e)
}

// formatLine formats an event as a simple line.
func (f *Formatter) formatLine(e Event) string {
	var parts []string

	// Timestamp
	if f.showTimestamp {
		parts = append(parts, e.Timestamp.Format("15:04:05"))
	}

	// Emoji
	if f.showEmoji {
		parts = append(parts, eventEmoji(e.Type))
	}

	// Event description
	parts = append(parts, f.eventDescription(e))

	return strings.Join(parts, " ")
}

// formatTemplate formats an event using a custom template.
func (f *Formatter) formatTemplate(e Event) string {
	data := templateData{
		Type:      eventTypeName(e.Type),
		Emoji:     eventEmoji(e.Type),
		Timestamp: e.Timestamp,
		Time:      e.Timestamp.Format("15:04:05"),
	}

	snap := e.Current
	if e.Type == EventTrackComplete || e.Type == EventStationIdle {
		snap = e.Previous
	}
	if snap.HasTrack() {
		data.Title = snap.Current.Title
		data.Artist = snap.Current.Artist
		data.Duration = formatDuration(snap.Current.Duration)
	}
	if e.Current != nil {
		data.QueueLength = len(e.Current.Queue)
		if e.Current.Next != nil {
			data.UpNext = e.Current.Next.DisplayName()
		}
	}

	var buf bytes.Buffer
	if err := f.template.Execute(&buf, data); err != nil {
		return f.formatLine(e)
	}
	return buf.String()
}

type templateData struct {
	Type        string
	Emoji       string
	Timestamp   time.Time
	Time        string
	Title       string
	Artist      string
	Duration    string
	UpNext      string
	QueueLength int
}

// eventDescription returns a human-readable description of the event.
func (f *Formatter) eventDescription(e Event) string {
	switch e.Type {
	case EventTrackChange:
		if e.Current.HasTrack() {
			return "On air: " + e.Current.Current.DisplayName()
		}
		return "Track changed"

	case EventTrackComplete:
		if e.Previous.HasTrack() {
			return "Finished: " + e.Previous.Current.DisplayName()
		}
		return "Track completed"

	case EventQueueChange:
		if e.Current != nil {
			return fmt.Sprintf("Queue: %d %s", len(e.Current.Queue), plural(len(e.Current.Queue), "track", "tracks"))
		}
		return "Queue changed"

	case EventUpNextChange:
		if e.Current != nil && e.Current.Next != nil {
			return "Up next: " + e.Current.Next.DisplayName()
		}
		return "Up next: nothing scheduled"

	case EventStationIdle:
		return "Off air"

	default:
		return "Unknown event"
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func formatDuration(d time.Duration) string {
	s := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

// eventEmoji returns an emoji for the event type.
func eventEmoji(t EventType) string {
	switch t {
	case EventTrackChange:
		return "📻"
	case EventTrackComplete:
		return "✅"
	case EventQueueChange:
		return "📋"
	case EventUpNextChange:
		return "⏭️"
	case EventStationIdle:
		return "🔇"
	default:
		return "❓"
	}
}

// eventTypeName returns the name of the event type.
func eventTypeName(t EventType) string {
	switch t {
	case EventTrackChange:
		return "track_change"
	case EventTrackComplete:
		return "track_complete"
	case EventQueueChange:
		return "queue_change"
	case EventUpNextChange:
		return "up_next_change"
	case EventStationIdle:
		return "station_idle"
	default:
		return "unknown"
	}
}

// MarshalText renders the event type name in JSON output.
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(eventTypeName(t)), nil
}

func (t EventType) String() string {
	return eventTypeName(t)
}

// Record is the JSON form of an event.
type Record struct {
	Type   EventType       `json:"type"`
	Time   time.Time       `json:"time"`
	Track  *core.Track     `json:"track,omitempty"`
	UpNext *core.TrackRef  `json:"up_next,omitempty"`
	Queue  []core.TrackRef `json:"queue,omitempty"`
}

// NewRecord builds the JSON record for e.
func NewRecord(e Event) Record {
	r := Record{Type: e.Type, Time: e.Timestamp}
	switch e.Type {
	case EventTrackComplete, EventStationIdle:
		if e.Previous != nil {
			r.Track = e.Previous.Current
		}
	default:
		if e.Current != nil {
			r.Track = e.Current.Current
		}
	}
	if e.Current != nil {
		r.UpNext = e.Current.Next
		if e.Type == EventQueueChange {
			r.Queue = e.Current.Queue
		}
	}
	return r
}
