package repair

import (
	"context"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"

	"ytresolve/storage"
	"ytresolve/youtube"
)

// BatchItem is one reference inside a batch repair request.
type BatchItem struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// BatchRequest repairs many references in one call. Policy pre-checks run
// once for the whole batch.
type BatchRequest struct {
	Items []BatchItem `json:"items"`

	Token     string `json:"-"`
	ClientKey string `json:"-"`
}

// ItemOutcome pairs an input reference with its repair outcome.
type ItemOutcome struct {
	OriginalURL string `json:"originalUrl"`
	Outcome
}

// BatchOutcome is the uniform batch response shape. Results[i] always
// corresponds to Items[i].
type BatchOutcome struct {
	OK      bool          `json:"ok"`
	Reason  string        `json:"reason,omitempty"`
	Results []ItemOutcome `json:"results"`
	Note    string        `json:"note,omitempty"`
}

// RepairBatch resolves every item with bounded concurrency. Replacements
// found during a batch run are logged as pending rather than applied, so an
// operator reviews them before the catalog changes.
func (r *Resolver) RepairBatch(ctx context.Context, req BatchRequest) BatchOutcome {
	if !r.cfg.Enabled {
		return batchFallback(req.Items, ReasonDisabled, "Video repair feature is currently disabled")
	}

	if req.Token == "" || req.Token != r.cfg.AdminToken {
		return batchFallback(req.Items, ReasonUnauthorized, "Authentication required for video repair")
	}

	if !r.limiter.Allow(req.ClientKey) {
		return batchFallback(req.Items, ReasonRateLimited, "Rate limit exceeded, try again later")
	}

	if req.Items == nil {
		return BatchOutcome{
			OK:      false,
			Reason:  ReasonInvalidBody,
			Results: []ItemOutcome{},
			Note:    "Body must include array: items",
		}
	}

	log.Printf("repair: batch attempt count=%d", len(req.Items))

	out := make([]ItemOutcome, len(req.Items))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.BatchConcurrency)

	for i, item := range req.Items {
		i, item := i, item
		g.Go(func() error {
			out[i] = r.repairBatchItem(ctx, item)
			return nil
		})
	}

	// Workers never return errors; Wait only joins them.
	g.Wait()

	return BatchOutcome{OK: true, Results: out}
}

func (r *Resolver) repairBatchItem(ctx context.Context, item BatchItem) ItemOutcome {
	url := strings.TrimSpace(item.URL)

	if !youtube.IsYouTubeURL(url) {
		return ItemOutcome{
			OriginalURL: item.URL,
			Outcome:     Outcome{OK: true, Reason: ReasonInvalidURL, OpenURL: url, Title: item.Title},
		}
	}
	if youtube.IsPlaylistURL(url) {
		return ItemOutcome{
			OriginalURL: item.URL,
			Outcome:     Outcome{OK: true, Reason: ReasonPlaylist, OpenURL: url, Title: item.Title},
		}
	}

	res := r.resolve(ctx, Request{URL: url, Title: item.Title}, storage.StatusPending)
	return ItemOutcome{OriginalURL: item.URL, Outcome: res}
}

// batchFallback applies one pre-check reason to every item.
func batchFallback(items []BatchItem, reason, note string) BatchOutcome {
	results := make([]ItemOutcome, len(items))
	for i, item := range items {
		out := fallbackOutcome(item.URL, reason, note)
		out.Title = item.Title
		results[i] = ItemOutcome{OriginalURL: item.URL, Outcome: out}
	}
	return BatchOutcome{OK: true, Results: results}
}
