// Package repair turns failed video references into usable ones. A repair
// request never errors out toward the caller: every outcome is data with a
// reason string, degrading to a plain watch link when nothing better exists.
package repair

import (
	"context"
	"log"
	"strings"
	"time"

	"ytresolve/internal/retry"
	"ytresolve/storage"
	"ytresolve/youtube"
)

// Reasons the resolver adds on top of the classifier's verdicts.
const (
	ReasonDisabled         = "repair_disabled"
	ReasonUnauthorized     = "unauthorized"
	ReasonRateLimited      = "rate_limited"
	ReasonMissingURL       = "missing_url"
	ReasonInvalidURL       = "invalid_url"
	ReasonPlaylist         = "playlist"
	ReasonValidationFailed = "validation_failed"
	ReasonMethodNotAllowed = "method_not_allowed"
	ReasonInvalidBody      = "invalid_body"
)

// Defaults for Config fields left zero.
const (
	DefaultRateLimit        = 10
	DefaultRateWindow       = time.Minute
	DefaultBatchConcurrency = 3
)

// Classifier produces embeddability verdicts for YouTube URLs.
type Classifier interface {
	// Classify never returns an error; failures fold into the verdict.
	Classify(ctx context.Context, rawURL string) youtube.Classification
	// ClassifyStrict additionally surfaces transport-level failures so the
	// caller can retry them.
	ClassifyStrict(ctx context.Context, rawURL string) (youtube.Classification, error)
}

// Searcher finds candidate videos by free-text query.
type Searcher interface {
	SearchVideos(ctx context.Context, query string, maxResults int64) ([]youtube.SearchCandidate, error)
}

// ReplacementLogger records replacement decisions to the audit log.
type ReplacementLogger interface {
	AppendReplacement(ctx context.Context, rec *storage.Replacement) error
}

// Config controls resolver policy.
type Config struct {
	// Enabled gates the whole feature. When false every request gets a
	// repair_disabled outcome.
	Enabled bool
	// AdminToken must match the request token exactly. An empty configured
	// token rejects all requests.
	AdminToken string
	// RateLimit is the number of requests allowed per client per RateWindow.
	RateLimit int
	// RateWindow is the sliding window for the rate limit.
	RateWindow time.Duration
	// SearchResults caps replacement search candidates.
	SearchResults int64
	// BatchConcurrency bounds concurrent items in RepairBatch.
	BatchConcurrency int
	// Retry overrides the classification retry policy. Nil uses 3 attempts
	// with 1s then 2s backoff.
	Retry *retry.Config
}

// Resolver implements the repair flow: policy pre-checks, classification
// with retry, and replacement-by-search for unembeddable videos.
type Resolver struct {
	cfg        Config
	classifier Classifier
	search     Searcher
	limiter    ClientLimiter
	auditLog   ReplacementLogger
}

// NewResolver creates a resolver. search and auditLog may be nil, which
// disables replacement search and audit logging respectively.
func NewResolver(cfg Config, classifier Classifier, search Searcher, auditLog ReplacementLogger) *Resolver {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = DefaultRateWindow
	}
	if cfg.SearchResults <= 0 {
		cfg.SearchResults = youtube.DefaultSearchResults
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = DefaultBatchConcurrency
	}

	return &Resolver{
		cfg:        cfg,
		classifier: classifier,
		search:     search,
		limiter:    NewSlidingWindowLimiter(cfg.RateLimit, cfg.RateWindow),
		auditLog:   auditLog,
	}
}

// Request is one repair request.
type Request struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`

	// Token and ClientKey come from transport headers, not the body.
	Token     string `json:"-"`
	ClientKey string `json:"-"`
}

// Outcome is the uniform repair response shape. OK means the request was
// handled, not that the video is embeddable; Reason carries the verdict.
type Outcome struct {
	OK        bool   `json:"ok"`
	Reason    string `json:"reason"`
	EmbedURL  string `json:"embedUrl"`
	OpenURL   string `json:"openUrl"`
	Title     string `json:"title,omitempty"`
	Author    string `json:"author,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Note      string `json:"note,omitempty"`
	Replaced  bool   `json:"replaced,omitempty"`
}

// Repair resolves a single reference. It never returns an error; policy
// rejections and upstream failures all come back as Outcome data.
func (r *Resolver) Repair(ctx context.Context, req Request) Outcome {
	if !r.cfg.Enabled {
		return fallbackOutcome(req.URL, ReasonDisabled, "Video repair feature is currently disabled")
	}

	if req.Token == "" || req.Token != r.cfg.AdminToken {
		return fallbackOutcome(req.URL, ReasonUnauthorized, "Authentication required for video repair")
	}

	if !r.limiter.Allow(req.ClientKey) {
		return fallbackOutcome(req.URL, ReasonRateLimited, "Rate limit exceeded, try again later")
	}

	if strings.TrimSpace(req.URL) == "" {
		return Outcome{OK: false, Reason: ReasonMissingURL}
	}

	if !youtube.IsYouTubeURL(req.URL) {
		return Outcome{OK: false, Reason: ReasonInvalidURL, OpenURL: req.URL}
	}

	if youtube.IsPlaylistURL(req.URL) {
		return Outcome{
			OK:      true,
			Reason:  ReasonPlaylist,
			OpenURL: req.URL,
			Note:    "Playlists cannot be embedded",
		}
	}

	return r.resolve(ctx, req, storage.StatusApplied)
}

// resolve runs the main path: classify with retry, then attempt replacement
// when the verdict is not embeddable.
func (r *Resolver) resolve(ctx context.Context, req Request, logStatus storage.ReplacementStatus) Outcome {
	log.Printf("repair: attempt url=%s title=%q", req.URL, req.Title)

	verdict, err := r.classifyWithRetry(ctx, req.URL)
	if err != nil {
		log.Printf("repair: validation failed for %s: %v", req.URL, err)
		out := Outcome{
			OK:      true,
			Reason:  ReasonValidationFailed,
			OpenURL: watchOrOriginal(req.URL),
			Title:   req.Title,
			Note:    "Could not validate video, external link provided",
		}
		if out.Title == "" {
			out.Title = "Video"
		}
		return out
	}

	if verdict.Embeddable {
		return Outcome{
			OK:        true,
			Reason:    string(youtube.ReasonOK),
			EmbedURL:  verdict.EmbedURL,
			OpenURL:   verdict.WatchURL,
			Title:     verdict.Title,
			Author:    verdict.Author,
			Thumbnail: verdict.Thumbnail,
		}
	}

	if out, ok := r.findReplacement(ctx, req, verdict, logStatus); ok {
		return out
	}

	out := Outcome{
		OK:        true,
		Reason:    string(verdict.Reason),
		OpenURL:   verdict.WatchURL,
		Title:     verdict.Title,
		Author:    verdict.Author,
		Thumbnail: verdict.Thumbnail,
		Note:      "Video cannot be embedded, external link provided",
	}
	if out.OpenURL == "" {
		out.OpenURL = req.URL
	}
	if out.Title == "" {
		out.Title = req.Title
	}
	return out
}

// classifyWithRetry retries transport-level classification failures. A
// semantic verdict (not found, embed disabled) returns on the first attempt.
func (r *Resolver) classifyWithRetry(ctx context.Context, rawURL string) (youtube.Classification, error) {
	cfg := retry.Config{
		MaxRetries:     2,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     2 * time.Second,
		Multiplier:     2.0,
	}
	if r.cfg.Retry != nil {
		cfg = *r.cfg.Retry
	}

	var verdict youtube.Classification
	err := retry.Do(ctx, cfg, nil, func(ctx context.Context) error {
		v, err := r.classifier.ClassifyStrict(ctx, rawURL)
		if err != nil {
			return err
		}
		verdict = v
		return nil
	})
	return verdict, err
}

// findReplacement searches for an embeddable alternative by title and
// re-classifies each candidate. The first embeddable candidate wins and is
// written to the audit log.
func (r *Resolver) findReplacement(ctx context.Context, req Request, verdict youtube.Classification, logStatus storage.ReplacementStatus) (Outcome, bool) {
	if r.search == nil {
		return Outcome{}, false
	}
	query := req.Title
	if query == "" {
		query = verdict.Title
	}
	if query == "" {
		return Outcome{}, false
	}

	candidates, err := r.search.SearchVideos(ctx, query, r.cfg.SearchResults)
	if err != nil {
		log.Printf("repair: replacement search for %q failed: %v", query, err)
		return Outcome{}, false
	}

	for _, c := range candidates {
		cv := r.classifier.Classify(ctx, youtube.WatchURL(c.ID))
		if !cv.Embeddable {
			continue
		}

		title := cv.Title
		if title == "" {
			title = c.Title
		}
		out := Outcome{
			OK:        true,
			Reason:    string(verdict.Reason),
			EmbedURL:  cv.EmbedURL,
			OpenURL:   cv.WatchURL,
			Title:     title,
			Author:    cv.Author,
			Thumbnail: cv.Thumbnail,
			Note:      "Original video replaced with an embeddable alternative",
			Replaced:  true,
		}
		r.recordReplacement(ctx, req, verdict, cv, logStatus)
		return out, true
	}

	return Outcome{}, false
}

func (r *Resolver) recordReplacement(ctx context.Context, req Request, verdict, chosen youtube.Classification, status storage.ReplacementStatus) {
	if r.auditLog == nil {
		return
	}
	rec := &storage.Replacement{
		OriginalURL:         req.URL,
		OriginalID:          verdict.ID,
		Reason:              string(verdict.Reason),
		ReplacementID:       chosen.ID,
		ReplacementTitle:    chosen.Title,
		ReplacementAuthor:   chosen.Author,
		ReplacementWatchURL: chosen.WatchURL,
		ContextTitle:        req.Title,
		Status:              status,
	}
	if err := r.auditLog.AppendReplacement(ctx, rec); err != nil {
		log.Printf("repair: append replacement record: %v", err)
	}
}

// fallbackOutcome is the shape used by policy pre-checks: the caller still
// gets working links when the video ID is recoverable from the URL.
func fallbackOutcome(rawURL, reason, note string) Outcome {
	out := Outcome{OK: true, Reason: reason, Note: note}
	if id, ok := youtube.ExtractVideoID(rawURL); ok {
		out.EmbedURL = youtube.EmbedURL(id)
		out.OpenURL = youtube.WatchURL(id)
	} else {
		out.OpenURL = rawURL
	}
	return out
}

// watchOrOriginal builds a watch link from the URL's video ID, keeping the
// original URL when no ID can be extracted.
func watchOrOriginal(rawURL string) string {
	if id, ok := youtube.ExtractVideoID(rawURL); ok {
		return youtube.WatchURL(id)
	}
	return rawURL
}
