package client

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// TrackMetadata is the backend's description of one audio file.
// Duration and times are seconds.
type TrackMetadata struct {
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	Duration float64 `json:"duration"`
	Filepath string  `json:"filepath"`
}

// Status is the /status payload.
type Status struct {
	Playing         bool           `json:"playing"`
	Metadata        *TrackMetadata `json:"metadata"`
	CurrentTime     float64        `json:"current_time"`
	NextTrack       *TrackMetadata `json:"next_track"`
	AvailableTracks int            `json:"available_tracks"`
	QueueLength     int            `json:"queue_length"`
	Queue           []QueueEntry   `json:"queue"`
}

// QueueEntry is one queued item. The backend sends display strings
// ("artist - title"); object entries are accepted too.
type QueueEntry struct {
	Display string
	Track   *TrackMetadata
}

// UnmarshalJSON accepts either a string or a track object.
func (q *QueueEntry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &q.Display)
	}
	var meta TrackMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("queue entry: %w", err)
	}
	q.Track = &meta
	if meta.Artist != "" {
		q.Display = meta.Artist + " - " + meta.Title
	} else {
		q.Display = meta.Title
	}
	return nil
}

// MarshalJSON writes the display form.
func (q QueueEntry) MarshalJSON() ([]byte, error) {
	if q.Track != nil {
		return json.Marshal(q.Track)
	}
	return json.Marshal(q.Display)
}

// LibraryTrack is one /tracks entry.
type LibraryTrack struct {
	Filepath string  `json:"filepath"`
	Filename string  `json:"filename"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	Duration float64 `json:"duration"`
	InQueue  bool    `json:"in_queue"`
}

// TrackList is the /tracks payload.
type TrackList struct {
	Tracks []LibraryTrack `json:"tracks"`
	Total  int            `json:"total"`
}

// Result is the common mutation response.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// AddResult is the /queue/add response.
type AddResult struct {
	Result
	Metadata    *TrackMetadata `json:"metadata"`
	QueueLength int            `json:"queue_length"`
}

// UploadResult is the /upload response.
type UploadResult struct {
	Result
	Filename string         `json:"filename"`
	Metadata *TrackMetadata `json:"metadata"`
}

// User is an account as reported by the auth endpoints.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// LoginResult is the /auth/login response.
type LoginResult struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	User    User   `json:"user"`
}

// VerifyResult is the /auth/verify response.
type VerifyResult struct {
	Valid bool   `json:"valid"`
	User  *User  `json:"user"`
	Error string `json:"error"`
}
