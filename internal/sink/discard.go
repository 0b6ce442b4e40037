package sink

import (
	"context"
	"sync"
)

// Discard accepts segments and throws them away. It backs --output null
// and tests.
type Discard struct {
	mu       sync.Mutex
	playing  bool
	volume   int
	segments int
	bytes    int64

	// PlayErr, when set, is returned by Play.
	PlayErr error
}

var _ Sink = (*Discard)(nil)

func (d *Discard) Write(ctx context.Context, segment []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.segments++
	d.bytes += int64(len(segment))
	return nil
}

func (d *Discard) Play(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.PlayErr != nil {
		return d.PlayErr
	}
	d.playing = true
	return nil
}

func (d *Discard) Pause() error {
	d.mu.Lock()
	d.playing = false
	d.mu.Unlock()
	return nil
}

func (d *Discard) SetVolume(percent int) error {
	d.mu.Lock()
	d.volume = clampVolume(percent)
	d.mu.Unlock()
	return nil
}

func (d *Discard) Close() error {
	return d.Pause()
}

// Playing reports whether Play succeeded more recently than Pause.
func (d *Discard) Playing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playing
}

// Stats returns the number of segments and bytes received.
func (d *Discard) Stats() (segments int, bytes int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.segments, d.bytes
}

// Volume returns the last volume set.
func (d *Discard) Volume() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.volume
}
