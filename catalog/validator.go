package catalog

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"ytresolve/youtube"
)

// Default validator tuning.
const (
	// DefaultLinkTimeout bounds each link reachability check.
	DefaultLinkTimeout = 6 * time.Second
	// DefaultConcurrency is the number of items validated at once.
	DefaultConcurrency = 3
)

// methodFallbackStatuses are the responses to a HEAD request that warrant a
// retry with GET: the server rejected the method, not the resource.
var methodFallbackStatuses = map[int]bool{
	http.StatusForbidden:        true,
	http.StatusMethodNotAllowed: true,
	http.StatusNotImplemented:   true,
}

// Classifier is the embeddability check applied to video items.
type Classifier interface {
	Classify(ctx context.Context, rawURL string) youtube.Classification
}

// Validator re-checks every catalog item: videos through the embeddability
// classifier, links through a lightweight reachability check.
type Validator struct {
	classifier  Classifier
	links       *http.Client
	timeout     time.Duration
	concurrency int
	now         func() time.Time
}

// ValidatorOptions configures a Validator.
type ValidatorOptions struct {
	// LinkTimeout bounds each link check. Default: DefaultLinkTimeout.
	LinkTimeout time.Duration
	// Concurrency caps in-flight item checks. Default: DefaultConcurrency.
	Concurrency int
	// LinkClient overrides the HTTP client used for link checks. Redirects
	// must be followed; the default client does.
	LinkClient *http.Client
}

// NewValidator creates a validator around the given classifier.
func NewValidator(classifier Classifier, opts ValidatorOptions) *Validator {
	if opts.LinkTimeout <= 0 {
		opts.LinkTimeout = DefaultLinkTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	links := opts.LinkClient
	if links == nil {
		links = &http.Client{Timeout: opts.LinkTimeout}
	}

	return &Validator{
		classifier:  classifier,
		links:       links,
		timeout:     opts.LinkTimeout,
		concurrency: opts.Concurrency,
		now:         time.Now,
	}
}

// Validate re-checks all items and returns the updated catalog. Output item
// i always corresponds to input item i. One item's failure never aborts the
// batch; failures are recorded as Broken, not returned. Every processed item
// gets a fresh LastCheckedAt.
func (v *Validator) Validate(ctx context.Context, items []Item) []Item {
	out := make([]Item, len(items))

	var g errgroup.Group
	g.SetLimit(v.concurrency)

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			out[i] = v.validateItem(ctx, item)
			return nil
		})
	}

	// Workers never return errors; all outcomes are data.
	g.Wait()

	return out
}

func (v *Validator) validateItem(ctx context.Context, item Item) Item {
	switch item.Type {
	case TypeVideo:
		item = v.validateVideo(ctx, item)
	default:
		item = v.validateLink(ctx, item)
	}

	item.LastCheckedAt = v.now()
	return item
}

func (v *Validator) validateVideo(ctx context.Context, item Item) Item {
	result := v.classifier.Classify(ctx, item.URL)
	if result.Embeddable {
		item.URL = result.WatchURL
		item.NormalizedURL = result.EmbedURL
		item.Broken = false
		return item
	}

	// URL left at its last-known value for the degraded link-out presentation.
	item.Broken = true
	return item
}

func (v *Validator) validateLink(ctx context.Context, item Item) Item {
	sanitized := youtube.SanitizeURL(item.URL)

	resp, err := v.checkLink(ctx, sanitized)
	if err != nil {
		item.URL = sanitized
		item.Broken = true
		return item
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		item.URL = sanitized
		item.Broken = true
		return item
	}

	// The final resolved URL after redirects; the sanitized input is the
	// fallback when the response carries no request record (test doubles).
	finalURL := sanitized
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	item.URL = finalURL
	item.Broken = false
	return item
}

// checkLink issues a HEAD request first and retries with GET when the server
// rejects the method itself.
func (v *Validator) checkLink(ctx context.Context, url string) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	resp, err := v.doLink(ctx, http.MethodHead, url)
	if err != nil {
		return nil, err
	}

	if methodFallbackStatuses[resp.StatusCode] {
		resp.Body.Close()
		return v.doLink(ctx, http.MethodGet, url)
	}

	return resp, nil
}

func (v *Validator) doLink(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	return v.links.Do(req)
}
