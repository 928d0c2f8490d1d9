// Package mojang implements the client for the Mojang session authority,
// which proves a connecting client's ownership of its claimed username.
package mojang

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// DefaultBaseURL is the production session server.
const DefaultBaseURL = "https://sessionserver.mojang.com"

// hasJoinedPath is the join-proof endpoint under the base URL.
const hasJoinedPath = "/session/minecraft/hasJoined"

// Sentinel errors for session authentication.
var (
	// ErrNotJoined indicates the authority has no join record for the
	// (username, server id) pair: the client never proved ownership.
	ErrNotJoined = errors.New("session server has no join record")

	// ErrMalformedProfile indicates the authority's response JSON is
	// missing or has an unparsable profile id.
	ErrMalformedProfile = errors.New("malformed session server profile")
)

// profile is the subset of the hasJoined response the gate consumes.
type profile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Client calls the session authority over HTTPS. The zero value is not
// usable; construct with NewClient. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a Client for the authority at baseURL (DefaultBaseURL
// for production). The timeout bounds the whole HTTP exchange.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// HasJoined asks the authority whether username has joined a server with
// this session's key material, and returns the player's profile UUID.
//
// The server id sent is Digest("", sharedSecret, publicKeyDER). Any
// outcome other than HTTP 2xx with a parsable profile id is an error;
// callers treat that as fatal for the connection.
func (c *Client) HasJoined(ctx context.Context, username string, sharedSecret, publicKeyDER []byte) (uuid.UUID, error) {
	q := url.Values{}
	q.Set("username", username)
	q.Set("serverId", Digest("", sharedSecret, publicKeyDER))

	reqURL := c.baseURL + hasJoinedPath + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("build hasJoined request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("query session server: %w", err)
	}
	defer resp.Body.Close()

	// The authority answers 204 with an empty body when no join record
	// exists.
	if resp.StatusCode == http.StatusNoContent {
		return uuid.UUID{}, ErrNotJoined
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return uuid.UUID{}, fmt.Errorf("session server returned %s: %w", resp.Status, ErrNotJoined)
	}

	var p profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return uuid.UUID{}, fmt.Errorf("decode session server response: %w", err)
	}
	if p.ID == "" {
		return uuid.UUID{}, ErrMalformedProfile
	}

	id, err := uuid.Parse(p.ID)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("parse profile id %q: %w", p.ID, ErrMalformedProfile)
	}

	return id, nil
}
