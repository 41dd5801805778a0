// Package aiagent implements the HTTP client contract for the external AI
// generation service (see spec §6: POST /generate).
package aiagent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"kidscanvas/internal/domain"
)

// RequestTimeout is the per-request timeout the turn processor's client is
// bound to (spec §4.3/§5).
const RequestTimeout = 10 * time.Second

// Client wraps an *http.Client bound to the AI-agent base URL.
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient builds a client pointed at baseURL with the spec-mandated
// per-request timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		http:    &http.Client{Timeout: RequestTimeout},
		baseURL: baseURL,
	}
}

// anchorRegion mirrors the wire shape of §6's anchorRegion object.
type anchorRegion struct {
	Inner domain.BBox `json:"inner"`
	Outer domain.BBox `json:"outer"`
}

type generateRequest struct {
	RoomID       string       `json:"roomId"`
	ObjectID     string       `json:"objectId"`
	AnchorRegion anchorRegion `json:"anchorRegion"`
}

// GenerateResponse is the decoded /generate response body.
type GenerateResponse struct {
	Patch    map[string]any `json:"patch"`
	CacheDir *string        `json:"cacheDir"`
}

// StatusError wraps a non-2xx /generate response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("generate: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Generate calls POST {baseURL}/generate with the object's anchor ring and
// decodes the response. Any transport error or non-2xx response is
// returned as an error for the caller to route through the blocked-with-
// error path.
func (c *Client) Generate(ctx context.Context, roomID, objectID uuid.UUID, anchor domain.AnchorRing) (*GenerateResponse, error) {
	body, err := json.Marshal(generateRequest{
		RoomID:   roomID.String(),
		ObjectID: objectID.String(),
		AnchorRegion: anchorRegion{
			Inner: anchor.Inner,
			Outer: anchor.Outer,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call generate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var out GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode generate response: %w", err)
	}
	if out.Patch == nil {
		out.Patch = map[string]any{}
	}
	return &out, nil
}

// Close releases the client's idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}
