package replication

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// PeerClient fetches events from a remote node's replication endpoint.
type PeerClient interface {
	PullEvents(ctx context.Context, endpoint string, request PullRequest) (PullResponse, error)
}

// HTTPPeerClient implements PeerClient against the peerserver's
// GET /replication/events endpoint.
type HTTPPeerClient struct {
	httpClient *http.Client
}

// NewHTTPPeerClient builds a client using the given *http.Client, or
// http.DefaultClient if nil.
func NewHTTPPeerClient(httpClient *http.Client) *HTTPPeerClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPPeerClient{httpClient: httpClient}
}

func (c *HTTPPeerClient) PullEvents(ctx context.Context, endpoint string, request PullRequest) (PullResponse, error) {
	u := strings.TrimRight(endpoint, "/") + "/replication/events"
	query := url.Values{}
	query.Set("since_seq", strconv.FormatUint(request.SinceSeq, 10))
	if request.Limit > 0 {
		query.Set("limit", strconv.Itoa(request.Limit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+query.Encode(), nil)
	if err != nil {
		return PullResponse{}, fmt.Errorf("replication: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return PullResponse{}, fmt.Errorf("replication: request to %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PullResponse{}, fmt.Errorf("replication: peer %s returned status %d", endpoint, resp.StatusCode)
	}

	var pullResponse PullResponse
	if err := json.NewDecoder(resp.Body).Decode(&pullResponse); err != nil {
		return PullResponse{}, fmt.Errorf("replication: decode response from %s: %w", endpoint, err)
	}
	return pullResponse, nil
}
