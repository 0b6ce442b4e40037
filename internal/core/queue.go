package core

// Listing is the local, ordered copy of the station library.
// Entries are addressed by index for display, but every mutation
// resolves its target by filepath.
type Listing struct {
	Tracks []TrackRef `json:"tracks"`
	Total  int        `json:"total"`
}

// Len returns the number of entries.
func (l *Listing) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Tracks)
}

// IsEmpty returns true if the listing has no entries.
func (l *Listing) IsEmpty() bool {
	return l.Len() == 0
}

// IndexOf returns the index of the entry with the given filepath, or -1.
func (l *Listing) IndexOf(filepath string) int {
	if l == nil {
		return -1
	}
	for i, t := range l.Tracks {
		if t.Filepath == filepath {
			return i
		}
	}
	return -1
}

// At returns the entry at index i, bounds-checked.
func (l *Listing) At(i int) (TrackRef, bool) {
	if l == nil || i < 0 || i >= len(l.Tracks) {
		return TrackRef{}, false
	}
	return l.Tracks[i], true
}

// SetInQueue flips the in-queue flag of the entry with the given filepath.
func (l *Listing) SetInQueue(filepath string, inQueue bool) bool {
	i := l.IndexOf(filepath)
	if i < 0 {
		return false
	}
	l.Tracks[i].InQueue = inQueue
	return true
}

// Remove splices out the entry with the given filepath.
func (l *Listing) Remove(filepath string) bool {
	i := l.IndexOf(filepath)
	if i < 0 {
		return false
	}
	l.Tracks = append(l.Tracks[:i:i], l.Tracks[i+1:]...)
	if l.Total > 0 {
		l.Total--
	}
	return true
}

// Clone returns a copy that shares no backing storage.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return &Listing{}
	}
	tracks := make([]TrackRef, len(l.Tracks))
	copy(tracks, l.Tracks)
	return &Listing{Tracks: tracks, Total: l.Total}
}

// Queued returns the entries currently flagged as queued.
func (l *Listing) Queued() []TrackRef {
	if l == nil {
		return nil
	}
	var out []TrackRef
	for _, t := range l.Tracks {
		if t.InQueue {
			out = append(out, t)
		}
	}
	return out
}
