package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	ythttp "ytresolve/http"
)

// DefaultOEmbedEndpoint is YouTube's public, keyless oEmbed lookup.
const DefaultOEmbedEndpoint = "https://www.youtube.com/oembed"

// OEmbedMetadata is the subset of the oEmbed payload the classifier uses.
type OEmbedMetadata struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	AuthorURL    string `json:"author_url"`
	ThumbnailURL string `json:"thumbnail_url"`
	ProviderName string `json:"provider_name"`
}

// OEmbedClient performs metadata lookups against the oEmbed endpoint.
// The lookup succeeds only for generally accessible, embeddable content,
// which makes it a cheap positive embeddability signal.
type OEmbedClient struct {
	http     *ythttp.Client
	endpoint string
}

// NewOEmbedClient creates an oEmbed client on top of the shared HTTP client.
// A nil client gets the default configuration.
func NewOEmbedClient(client *ythttp.Client) *OEmbedClient {
	if client == nil {
		client = ythttp.New(nil)
	}
	return &OEmbedClient{http: client, endpoint: DefaultOEmbedEndpoint}
}

// SetEndpoint overrides the oEmbed endpoint. Used by tests.
func (c *OEmbedClient) SetEndpoint(endpoint string) {
	c.endpoint = endpoint
}

// Fetch looks up oEmbed metadata for a video by its canonical watch URL.
// A payload without both title and author is reported as malformed.
func (c *OEmbedClient) Fetch(ctx context.Context, watchURL string) (*OEmbedMetadata, error) {
	reqURL := c.endpoint + "?url=" + url.QueryEscape(watchURL) + "&format=json"

	resp, err := c.http.Get(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var meta OEmbedMetadata
	if err := json.Unmarshal(resp.Body, &meta); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMetadata, err)
	}
	if meta.Title == "" || meta.AuthorName == "" {
		return nil, ErrMalformedMetadata
	}

	return &meta, nil
}
