package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

// Backend paths.
const (
	PathStatus      = "/status"
	PathTracks      = "/tracks"
	PathQueueAdd    = "/queue/add"
	PathQueueRemove = "/queue/remove"
	PathTrackRemove = "/track/remove"
	PathUpload      = "/upload"
	PathLogin       = "/auth/login"
	PathVerify      = "/auth/verify"
)

type filepathBody struct {
	Filepath string `json:"filepath"`
}

// GetStatus fetches the authoritative playback snapshot.
func (c *Client) GetStatus(ctx context.Context) (*Status, error) {
	var status Status
	if err := c.Get(ctx, PathStatus, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetTracks fetches the library listing.
func (c *Client) GetTracks(ctx context.Context) (*TrackList, error) {
	var list TrackList
	if err := c.Get(ctx, PathTracks, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// AddToQueue queues the track as the next to play.
func (c *Client) AddToQueue(ctx context.Context, filepath string) (*AddResult, error) {
	var res AddResult
	if err := c.Post(ctx, PathQueueAdd, filepathBody{filepath}, &res); err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, &APIError{StatusCode: http.StatusOK, Message: res.Message}
	}
	return &res, nil
}

// RemoveFromQueue removes the track from the queue without deleting it.
func (c *Client) RemoveFromQueue(ctx context.Context, filepath string) (*Result, error) {
	return c.mutate(ctx, PathQueueRemove, filepath)
}

// RemoveTrack deletes the track from the library.
func (c *Client) RemoveTrack(ctx context.Context, filepath string) (*Result, error) {
	return c.mutate(ctx, PathTrackRemove, filepath)
}

func (c *Client) mutate(ctx context.Context, path, filepath string) (*Result, error) {
	var res Result
	if err := c.Post(ctx, path, filepathBody{filepath}, &res); err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, &APIError{StatusCode: http.StatusOK, Message: res.Message}
	}
	return &res, nil
}

// Upload sends a local audio file as multipart field "file".
func (c *Client) Upload(ctx context.Context, path string) (*UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(PathUpload), &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	// Server-side conversion can outlast DefaultTimeout; ctx bounds the call.
	uploader := *c
	uploader.httpClient = &http.Client{Transport: c.httpClient.Transport}

	body, status, err := uploader.do(req)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, parseAPIError(status, body)
	}

	var res UploadResult
	if err := decode(body, &res); err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, &APIError{StatusCode: status, Message: res.Message}
	}
	return &res, nil
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	var res LoginResult
	body := map[string]string{"username": username, "password": password}
	if err := c.Post(ctx, PathLogin, body, &res); err != nil {
		return nil, err
	}
	if !res.Success || res.Token == "" {
		return nil, &APIError{StatusCode: http.StatusOK, Message: "login did not return a token"}
	}
	return &res, nil
}

// Verify checks the current bearer token with the backend.
func (c *Client) Verify(ctx context.Context) (*VerifyResult, error) {
	var res VerifyResult
	if err := c.Get(ctx, PathVerify, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
