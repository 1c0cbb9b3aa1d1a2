package youtube

import (
	"context"

	"ytresolve/internal/retry"
)

// DefaultSearchResults is the number of replacement candidates fetched per
// search.
const DefaultSearchResults = 6

// SearchCandidate is one result from the replacement search.
type SearchCandidate struct {
	ID           string
	Title        string
	Description  string
	ChannelTitle string
	Thumbnail    string
}

// SearchVideos looks up candidate videos by free-text query, for the repair
// flow's replacement search. Results are restricted to videos with moderate
// safe-search filtering.
func (a *DataAPIClient) SearchVideos(ctx context.Context, query string, maxResults int64) ([]SearchCandidate, error) {
	if maxResults <= 0 {
		maxResults = DefaultSearchResults
	}

	// A search burns 100 quota units; don't spend them when the budget is
	// already gone.
	if a.GetQuotaExhausted() {
		return nil, ErrQuotaExceeded
	}

	var candidates []SearchCandidate

	err := retry.Do(ctx, a.retryConfig(), apiErrorClassifier, func(ctx context.Context) error {
		call := a.service.Search.List([]string{"snippet"}).
			Q(query).
			Type("video").
			SafeSearch("moderate").
			MaxResults(maxResults).
			Context(ctx)

		resp, err := call.Do()
		if err != nil {
			if ctx.Err() != nil {
				return ErrNetworkTimeout
			}
			return err
		}

		a.trackQuotaUsage(100) // search.list uses 100 units

		candidates = candidates[:0]
		for _, item := range resp.Items {
			if item.Id == nil || item.Id.VideoId == "" {
				continue
			}

			candidate := SearchCandidate{ID: item.Id.VideoId}
			if item.Snippet != nil {
				candidate.Title = item.Snippet.Title
				candidate.Description = item.Snippet.Description
				candidate.ChannelTitle = item.Snippet.ChannelTitle
				candidate.Thumbnail = bestThumbnail(item.Snippet.Thumbnails)
			}

			candidates = append(candidates, candidate)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return candidates, nil
}
