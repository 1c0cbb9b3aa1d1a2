package youtube

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"ytresolve/internal/retry"
)

// statusFieldMask limits videos.list responses to the fields the classifier
// reads.
const statusFieldMask = "items(id," +
	"status(embeddable,privacyStatus)," +
	"contentDetails(regionRestriction,contentRating/ytRating)," +
	"snippet(title,channelTitle,liveBroadcastContent,thumbnails/high,thumbnails/default))"

// dailyQuotaUnits is the default Data API daily quota.
const dailyQuotaUnits = 10000

// VideoStatus is the status-probe view of a single video.
type VideoStatus struct {
	ID            string
	Embeddable    bool
	PrivacyStatus string
	AgeRestricted bool
	// LiveBroadcast is the snippet liveBroadcastContent value: "none",
	// "live" or "upcoming".
	LiveBroadcast string
	RegionAllowed []string
	RegionBlocked []string
	Title         string
	ChannelTitle  string
	Thumbnail     string
}

// DataAPIClient wraps the YouTube Data API v3 for status and search lookups.
// It tracks estimated quota usage so callers can observe exhaustion before
// the API starts rejecting requests.
type DataAPIClient struct {
	service *youtube.Service
	apiKey  string

	mu             sync.Mutex
	estimatedQuota int
	lastQuotaReset time.Time
	quotaExhausted bool

	RetryConfig *retry.Config
}

// NewDataAPIClient creates a Data API client with the given API key.
func NewDataAPIClient(apiKey string) (*DataAPIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key required")
	}

	service, err := youtube.NewService(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	cfg := retry.DefaultConfig()
	return &DataAPIClient{
		service:        service,
		apiKey:         apiKey,
		estimatedQuota: dailyQuotaUnits,
		lastQuotaReset: time.Now(),
		RetryConfig:    &cfg,
	}, nil
}

// FetchStatus looks up the status-probe fields for a video by id.
// Returns ErrVideoNotFound when the API has no record of the id.
func (a *DataAPIClient) FetchStatus(ctx context.Context, id string) (*VideoStatus, error) {
	var status *VideoStatus

	err := retry.Do(ctx, a.retryConfig(), apiErrorClassifier, func(ctx context.Context) error {
		call := a.service.Videos.List([]string{"status", "contentDetails", "snippet"}).
			Id(id).
			Fields(googleapi.Field(statusFieldMask)).
			Context(ctx)

		resp, err := call.Do()
		if err != nil {
			if ctx.Err() != nil {
				return ErrNetworkTimeout
			}
			return err
		}

		a.trackQuotaUsage(1) // videos.list uses 1 unit

		if len(resp.Items) == 0 {
			return ErrVideoNotFound
		}

		status = videoStatusFromItem(resp.Items[0])
		return nil
	})

	if err != nil {
		return nil, err
	}

	return status, nil
}

func videoStatusFromItem(item *youtube.Video) *VideoStatus {
	vs := &VideoStatus{ID: item.Id, Embeddable: true}

	if item.Status != nil {
		vs.Embeddable = item.Status.Embeddable
		vs.PrivacyStatus = item.Status.PrivacyStatus
	}

	if item.ContentDetails != nil {
		if item.ContentDetails.ContentRating != nil {
			vs.AgeRestricted = item.ContentDetails.ContentRating.YtRating == "ytAgeRestricted"
		}
		if item.ContentDetails.RegionRestriction != nil {
			vs.RegionAllowed = item.ContentDetails.RegionRestriction.Allowed
			vs.RegionBlocked = item.ContentDetails.RegionRestriction.Blocked
		}
	}

	if item.Snippet != nil {
		vs.Title = item.Snippet.Title
		vs.ChannelTitle = item.Snippet.ChannelTitle
		vs.LiveBroadcast = item.Snippet.LiveBroadcastContent
		vs.Thumbnail = bestThumbnail(item.Snippet.Thumbnails)
	}

	return vs
}

func bestThumbnail(details *youtube.ThumbnailDetails) string {
	if details == nil {
		return ""
	}
	if details.High != nil {
		return details.High.Url
	}
	if details.Default != nil {
		return details.Default.Url
	}
	return ""
}

func (a *DataAPIClient) retryConfig() retry.Config {
	if a.RetryConfig != nil {
		return *a.RetryConfig
	}
	return retry.DefaultConfig()
}

// trackQuotaUsage updates the estimated quota and checks if we've exhausted it.
func (a *DataAPIClient) trackQuotaUsage(units int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Reset quota if a day has passed
	if time.Since(a.lastQuotaReset) > 24*time.Hour {
		a.estimatedQuota = dailyQuotaUnits
		a.lastQuotaReset = time.Now()
		a.quotaExhausted = false
		log.Printf("youtube: quota reset (new day)")
	}

	a.estimatedQuota -= units

	if a.estimatedQuota <= 0 && !a.quotaExhausted {
		log.Printf("youtube: quota exhausted (remaining: %d units)", a.estimatedQuota)
		a.quotaExhausted = true
	}
}

// GetEstimatedQuota returns the estimated remaining quota units.
func (a *DataAPIClient) GetEstimatedQuota() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.estimatedQuota
}

// GetQuotaExhausted returns whether the quota has been exhausted.
func (a *DataAPIClient) GetQuotaExhausted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.quotaExhausted
}

// apiErrorClassifier determines if a Data API error is retryable.
func apiErrorClassifier(err error) bool {
	if err == nil {
		return false
	}

	// Don't retry specific sentinel errors
	switch err {
	case ErrVideoNotFound, ErrInvalidURL, ErrQuotaExceeded:
		return false
	}

	// Rate limit errors are retryable
	if strings.Contains(err.Error(), "quotaExceeded") {
		return true
	}
	if strings.Contains(err.Error(), "rateLimitExceeded") {
		return true
	}

	// Timeout errors are retryable
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Default to retryable for unknown errors
	return true
}
