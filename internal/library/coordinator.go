// Package library keeps the local copy of the station library and
// coordinates queue and library mutations against the backend.
package library

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tessro/weradio/internal/core"
	werrors "github.com/tessro/weradio/internal/errors"
	"github.com/tessro/weradio/internal/weradio/client"
)

// DefaultSettleDelay is the wait before a mutation is reconciled.
const DefaultSettleDelay = 5 * time.Second

// Fallback messages for failures that carry no server text.
const (
	MsgAddFailed    = "Could not add track to queue"
	MsgRemoveFailed = "Could not remove track from queue"
	MsgDeleteFailed = "Could not delete track"
	MsgUploadFailed = "Upload failed"
)

// API is the subset of the backend client the coordinator calls.
type API interface {
	GetTracks(ctx context.Context) (*client.TrackList, error)
	AddToQueue(ctx context.Context, filepath string) (*client.AddResult, error)
	RemoveFromQueue(ctx context.Context, filepath string) (*client.Result, error)
	RemoveTrack(ctx context.Context, filepath string) (*client.Result, error)
	Upload(ctx context.Context, path string) (*client.UploadResult, error)
}

// Credentials reports whether a caller may mutate.
type Credentials interface {
	IsAuthenticated() bool
}

// AuthPrompter is told when a mutation needs a login first.
type AuthPrompter interface {
	PromptLogin(action string)
}

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// AlwaysConfirm answers yes without asking.
var AlwaysConfirm = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })

// ActionError is a failed mutation. Error returns the text to show the user.
type ActionError struct {
	Action  string
	Message string
	Err     error
}

func (e *ActionError) Error() string {
	return e.Message
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// Options configures a Coordinator.
type Options struct {
	SettleDelay time.Duration
	Prompter    AuthPrompter
	Confirmer   Confirmer
	Logger      *zap.Logger
}

// Coordinator owns the local listing.
type Coordinator struct {
	api       API
	creds     Credentials
	prompter  AuthPrompter
	confirmer Confirmer
	settle    time.Duration
	logger    *zap.Logger

	// ops serializes mutations so each one resolves against a listing no
	// other mutation is editing.
	ops sync.Mutex

	mu          sync.RWMutex
	listing     *core.Listing
	refreshedAt time.Time
	settleTimer *time.Timer
	closed      bool

	subsMu sync.Mutex
	subs   []chan *core.Listing
}

// New creates a coordinator with an empty listing.
func New(api API, creds Credentials, opts Options) *Coordinator {
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Coordinator{
		api:       api,
		creds:     creds,
		prompter:  opts.Prompter,
		confirmer: opts.Confirmer,
		settle:    opts.SettleDelay,
		logger:    opts.Logger.Named("library"),
		listing:   &core.Listing{},
	}
}

// Refresh replaces the listing with the server's.
func (c *Coordinator) Refresh(ctx context.Context) (*core.Listing, error) {
	list, err := c.api.GetTracks(ctx)
	if err != nil {
		c.logger.Debug("library refresh failed", zap.Error(err))
		return c.Tracks(), err
	}

	next := &core.Listing{Tracks: make([]core.TrackRef, 0, len(list.Tracks)), Total: list.Total}
	for _, t := range list.Tracks {
		next.Tracks = append(next.Tracks, core.TrackRef{
			Filepath: t.Filepath,
			Filename: t.Filename,
			Title:    t.Title,
			Artist:   t.Artist,
			Duration: time.Duration(t.Duration * float64(time.Second)),
			InQueue:  t.InQueue,
		})
	}
	if next.Total == 0 {
		next.Total = len(next.Tracks)
	}

	c.mu.Lock()
	c.listing = next
	c.refreshedAt = time.Now()
	c.mu.Unlock()

	c.publish()
	return next.Clone(), nil
}

// Tracks returns a copy of the current listing.
func (c *Coordinator) Tracks() *core.Listing {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.listing.Clone()
}

// RefreshedAt returns when the listing was last fetched.
func (c *Coordinator) RefreshedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshedAt
}

// Resolve finds a track by 1-based position, filepath, or filename and
// returns its 0-based index.
func (c *Coordinator) Resolve(ref string) (int, core.TrackRef, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ref = strings.TrimSpace(ref)
	if n, err := strconv.Atoi(ref); err == nil {
		if t, ok := c.listing.At(n - 1); ok {
			return n - 1, t, nil
		}
		return -1, core.TrackRef{}, fmt.Errorf("%w: no track at position %d", werrors.ErrInvalidTrack, n)
	}
	if i := c.listing.IndexOf(ref); i >= 0 {
		return i, c.listing.Tracks[i], nil
	}
	for i, t := range c.listing.Tracks {
		if t.Filename == ref || filepath.Base(t.Filepath) == ref {
			return i, t, nil
		}
	}
	return -1, core.TrackRef{}, fmt.Errorf("%w: %q", werrors.ErrInvalidTrack, ref)
}

// AddToQueue queues the track at index, which must still hold filepath.
func (c *Coordinator) AddToQueue(ctx context.Context, index int, filepath string) (*client.AddResult, error) {
	var res *client.AddResult
	err := c.mutate(ctx, "add to queue", index, filepath, false, func(ctx context.Context) error {
		r, err := c.api.AddToQueue(ctx, filepath)
		if err != nil {
			return c.actionError("add to queue", MsgAddFailed, err)
		}
		res = r
		return nil
	}, func(l *core.Listing) {
		l.SetInQueue(filepath, true)
	})
	return res, err
}

// RemoveFromQueue dequeues the track at index without deleting it.
func (c *Coordinator) RemoveFromQueue(ctx context.Context, index int, filepath string) error {
	return c.mutate(ctx, "remove from queue", index, filepath, false, func(ctx context.Context) error {
		if _, err := c.api.RemoveFromQueue(ctx, filepath); err != nil {
			return c.actionError("remove from queue", MsgRemoveFailed, err)
		}
		return nil
	}, func(l *core.Listing) {
		l.SetInQueue(filepath, false)
	})
}

// DeleteTrack removes the track at index from the library after
// confirmation.
func (c *Coordinator) DeleteTrack(ctx context.Context, index int, filepath string) error {
	return c.mutate(ctx, "delete track", index, filepath, true, func(ctx context.Context) error {
		if _, err := c.api.RemoveTrack(ctx, filepath); err != nil {
			return c.actionError("delete track", MsgDeleteFailed, err)
		}
		return nil
	}, func(l *core.Listing) {
		l.Remove(filepath)
	})
}

// mutate runs one mutation: auth check, identity check, optional
// confirmation, request, optimistic edit, and settle scheduling.
func (c *Coordinator) mutate(ctx context.Context, action string, index int, filepath string, confirm bool, send func(context.Context) error, apply func(*core.Listing)) error {
	if err := c.requireAuth(action); err != nil {
		return err
	}

	c.ops.Lock()
	defer c.ops.Unlock()

	track, err := c.lookup(index, filepath)
	if err != nil {
		return err
	}

	if confirm {
		if err := c.confirm(ctx, fmt.Sprintf("Delete %q from the library?", track.DisplayName())); err != nil {
			return err
		}
		// The listing may have been refreshed while the prompt was open.
		if _, err := c.lookup(index, filepath); err != nil {
			return err
		}
	}

	err = send(ctx)
	if err == nil {
		c.mu.Lock()
		apply(c.listing)
		c.mu.Unlock()
		c.publish()
		c.logger.Info("track mutated", zap.String("action", action), zap.String("filepath", filepath))
	}

	// Reconcile after every mutation, failed or not.
	c.scheduleSettle()
	return err
}

func (c *Coordinator) requireAuth(action string) error {
	if c.creds != nil && c.creds.IsAuthenticated() {
		return nil
	}
	if c.prompter != nil {
		c.prompter.PromptLogin(action)
	}
	return werrors.WithSuggestion(werrors.ErrNotAuthenticated, "Run 'weradio auth login' first")
}

// lookup bounds-checks index against the current listing and verifies the
// entry there is still the one the caller saw.
func (c *Coordinator) lookup(index int, filepath string) (core.TrackRef, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.listing.At(index)
	if !ok || t.Filepath != filepath {
		return core.TrackRef{}, werrors.ErrInvalidTrack
	}
	return t, nil
}

func (c *Coordinator) confirm(ctx context.Context, prompt string) error {
	if c.confirmer == nil {
		return werrors.ErrDeclined
	}
	ok, err := c.confirmer.Confirm(ctx, prompt)
	if err != nil {
		return err
	}
	if !ok {
		return werrors.ErrDeclined
	}
	return nil
}

func (c *Coordinator) actionError(action, fallback string, err error) error {
	c.logger.Warn("mutation failed", zap.String("action", action), zap.Error(err))
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &ActionError{Action: action, Message: client.UserMessage(err, fallback), Err: err}
}

// Upload sends a local file and refreshes the listing on success.
func (c *Coordinator) Upload(ctx context.Context, path string) (*client.UploadResult, error) {
	if err := c.requireAuth("upload"); err != nil {
		return nil, err
	}

	res, err := c.api.Upload(ctx, path)
	if err != nil {
		msg := client.UserMessage(err, MsgUploadFailed)
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Details != "" {
			msg += ": " + apiErr.Details
		}
		c.logger.Warn("upload failed", zap.String("path", path), zap.Error(err))
		return nil, &ActionError{Action: "upload", Message: msg, Err: errors.Join(werrors.ErrUploadFailed, err)}
	}

	if _, err := c.Refresh(ctx); err != nil {
		c.logger.Debug("refresh after upload failed", zap.Error(err))
	}
	return res, nil
}

func (c *Coordinator) scheduleSettle() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if c.settleTimer != nil {
		c.settleTimer.Stop()
	}
	c.settleTimer = time.AfterFunc(c.settle, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := c.Refresh(ctx); err != nil {
			c.logger.Debug("settle refresh failed", zap.Error(err))
		}
	})
}

// SettlePending reports whether a settle refetch is scheduled.
func (c *Coordinator) SettlePending() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settleTimer != nil && !c.closed
}

// Close cancels any pending settle refetch.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.settleTimer != nil {
		c.settleTimer.Stop()
		c.settleTimer = nil
	}
}

// Subscribe returns a channel receiving a copy of the listing on every change.
func (c *Coordinator) Subscribe() <-chan *core.Listing {
	ch := make(chan *core.Listing, 4)
	c.subsMu.Lock()
	c.subs = append(c.subs, ch)
	c.subsMu.Unlock()
	return ch
}

func (c *Coordinator) publish() {
	l := c.Tracks()
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- l:
		default:
		}
	}
}
