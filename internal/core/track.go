package core

import "time"

// Track is the program currently on air.
type Track struct {
	Title    string        `json:"title"`
	Artist   string        `json:"artist"`
	Duration time.Duration `json:"duration"`
	Filepath string        `json:"filepath,omitempty"`
}

// DisplayName renders the track the way the station lists it.
func (t *Track) DisplayName() string {
	if t == nil {
		return ""
	}
	if t.Artist == "" {
		return t.Title
	}
	return t.Artist + " - " + t.Title
}

// TrackRef is one library entry. Filepath is its identity.
type TrackRef struct {
	Filepath string        `json:"filepath"`
	Filename string        `json:"filename,omitempty"`
	Title    string        `json:"title"`
	Artist   string        `json:"artist"`
	Duration time.Duration `json:"duration"`
	InQueue  bool          `json:"in_queue"`
}

// DisplayName renders the entry as "artist - title".
func (r TrackRef) DisplayName() string {
	if r.Artist == "" {
		if r.Title == "" {
			return r.Filename
		}
		return r.Title
	}
	return r.Artist + " - " + r.Title
}

// HistoryEntry is a track observed on air.
type HistoryEntry struct {
	Track    *Track    `json:"track"`
	PlayedAt time.Time `json:"played_at"`
}
