package youtube

import (
	"context"
	"errors"
	"time"

	ythttp "ytresolve/http"
)

// Reason explains a classification outcome. Exactly one reason per result;
// ReasonOK if and only if the video is embeddable.
type Reason string

const (
	ReasonOK            Reason = "ok"
	ReasonInvalidURL    Reason = "invalid_url"
	ReasonShorts        Reason = "shorts"
	ReasonLive          Reason = "live"
	ReasonPrivate       Reason = "private"
	ReasonAgeRestricted Reason = "age_restricted"
	ReasonEmbedDisabled Reason = "embed_disabled"
	ReasonRegionBlocked Reason = "region_blocked"
	ReasonNotFound      Reason = "not_found"
	ReasonUnknown       Reason = "unknown"
)

// DefaultProbeTimeout bounds each individual probe call.
const DefaultProbeTimeout = 5 * time.Second

// Classification is the outcome of an embeddability check. EmbedURL is empty
// when the video is not embeddable.
type Classification struct {
	Embeddable bool
	ID         string
	WatchURL   string
	EmbedURL   string
	Reason     Reason
	Title      string
	Author     string
	Thumbnail  string
}

// MetadataProber is the keyless oEmbed lookup.
type MetadataProber interface {
	Fetch(ctx context.Context, watchURL string) (*OEmbedMetadata, error)
}

// StatusProber is the credentialed Data API lookup.
type StatusProber interface {
	FetchStatus(ctx context.Context, id string) (*VideoStatus, error)
}

// Classifier reconciles the metadata and status probes into a single
// embeddability verdict with a reason. The precedence between signals is an
// explicit ordered rule table, first match wins.
type Classifier struct {
	metadata     MetadataProber
	status       StatusProber
	probeTimeout time.Duration
	embedOpts    EmbedOptions
}

// ClassifierOptions configures a Classifier.
type ClassifierOptions struct {
	// ProbeTimeout bounds each probe call. Default: DefaultProbeTimeout.
	ProbeTimeout time.Duration
	// Embed carries the player parameters for canonical embed URLs.
	Embed EmbedOptions
}

// NewClassifier creates a classifier. A nil metadata prober gets the default
// oEmbed client. A nil status prober means no API credential is configured
// and the status probe is skipped.
func NewClassifier(metadata MetadataProber, status StatusProber, opts ClassifierOptions) *Classifier {
	if metadata == nil {
		metadata = NewOEmbedClient(nil)
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = DefaultProbeTimeout
	}
	return &Classifier{
		metadata:     metadata,
		status:       status,
		probeTimeout: opts.ProbeTimeout,
		embedOpts:    opts.Embed,
	}
}

// evidence is the structured record the precedence rules run over.
type evidence struct {
	meta    *OEmbedMetadata
	metaErr error

	status    *VideoStatus
	statusErr error
	statusRan bool
}

// reconcileRule is one row of the precedence table.
type reconcileRule struct {
	reason Reason
	match  func(ev evidence) bool
}

// reconcileRules in precedence order. The status probe's explicit signals
// come first: only it can distinguish why a video is unembeddable. The
// not_found fallback fires when neither probe produced usable data.
var reconcileRules = []reconcileRule{
	{ReasonEmbedDisabled, func(ev evidence) bool {
		return ev.status != nil && !ev.status.Embeddable
	}},
	{ReasonPrivate, func(ev evidence) bool {
		return ev.status != nil && ev.status.PrivacyStatus == "private"
	}},
	{ReasonAgeRestricted, func(ev evidence) bool {
		return ev.status != nil && ev.status.AgeRestricted
	}},
	{ReasonLive, func(ev evidence) bool {
		return ev.status != nil && ev.status.LiveBroadcast != "" && ev.status.LiveBroadcast != "none"
	}},
	{ReasonRegionBlocked, func(ev evidence) bool {
		// Any restriction list, even partial, is treated as blocking: the
		// server does not know the caller's region.
		return ev.status != nil && (len(ev.status.RegionAllowed) > 0 || len(ev.status.RegionBlocked) > 0)
	}},
	{ReasonNotFound, func(ev evidence) bool {
		return ev.metaErr != nil && ev.status == nil
	}},
}

// Classify checks a raw URL and never returns an error: every failure mode
// maps to a Classification with a reason.
func (c *Classifier) Classify(ctx context.Context, rawURL string) Classification {
	result, _ := c.classify(ctx, rawURL)
	return result
}

// ClassifyStrict behaves like Classify but additionally surfaces
// transport-level probe failures (timeouts, connection errors) so callers
// can retry. Semantic rejections (private, embed disabled, missing videos)
// are never returned as errors.
func (c *Classifier) ClassifyStrict(ctx context.Context, rawURL string) (Classification, error) {
	return c.classify(ctx, rawURL)
}

func (c *Classifier) classify(ctx context.Context, rawURL string) (Classification, error) {
	// Shape-based rejections are cheap and checked before any network I/O.
	id, ok := ExtractVideoID(rawURL)
	if !ok {
		return Classification{Reason: ReasonInvalidURL}, nil
	}
	if IsShortsURL(rawURL) {
		return c.rejected(id, ReasonShorts), nil
	}
	if IsLiveURL(rawURL) {
		return c.rejected(id, ReasonLive), nil
	}

	ev := c.gather(ctx, id)
	return c.reconcile(id, ev), transportErr(ev)
}

func (c *Classifier) rejected(id string, reason Reason) Classification {
	return Classification{
		ID:       id,
		WatchURL: WatchURL(id),
		Reason:   reason,
	}
}

func (c *Classifier) gather(ctx context.Context, id string) evidence {
	var ev evidence

	// The metadata probe is always attempted. Its failure is a negative
	// signal for that probe only, never fatal.
	metaCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	ev.meta, ev.metaErr = c.metadata.Fetch(metaCtx, WatchURL(id))
	cancel()

	// The status probe runs only with a configured credential.
	if c.status != nil {
		ev.statusRan = true
		statusCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
		ev.status, ev.statusErr = c.status.FetchStatus(statusCtx, id)
		cancel()
	}

	return ev
}

func (c *Classifier) reconcile(id string, ev evidence) Classification {
	result := Classification{
		ID:       id,
		WatchURL: WatchURL(id),
	}

	if ev.meta != nil {
		result.Title = ev.meta.Title
		result.Author = ev.meta.AuthorName
		result.Thumbnail = ev.meta.ThumbnailURL
	} else if ev.status != nil {
		result.Title = ev.status.Title
		result.Author = ev.status.ChannelTitle
		result.Thumbnail = ev.status.Thumbnail
	}

	for _, rule := range reconcileRules {
		if rule.match(ev) {
			result.Reason = rule.reason
			return result
		}
	}

	result.Embeddable = true
	result.Reason = ReasonOK
	result.EmbedURL = CanonicalEmbedURL(id, c.embedOpts)
	return result
}

// transportErr extracts a transport-level probe failure worth retrying.
// One healthy probe answer is enough to trust the verdict.
func transportErr(ev evidence) error {
	if ev.meta != nil || ev.status != nil {
		return nil
	}

	if ev.statusRan {
		if err := transportLevel(ev.statusErr); err != nil {
			return err
		}
	}
	return transportLevel(ev.metaErr)
}

// transportLevel filters out semantic failures: missing videos, malformed
// payloads and 4xx probe statuses are classification outcomes, not faults.
func transportLevel(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrVideoNotFound) || errors.Is(err, ErrMalformedMetadata) {
		return nil
	}

	var httpErr *ythttp.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode < 500 {
		return nil
	}

	return err
}
