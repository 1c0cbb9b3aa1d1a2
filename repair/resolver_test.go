package repair

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"ytresolve/internal/retry"
	"ytresolve/storage"
	"ytresolve/youtube"
)

type classifierStub struct {
	mu            sync.Mutex
	strictCalls   int
	classifyCalls int
	failFirst     int
	verdicts      map[string]youtube.Classification
}

func (s *classifierStub) ClassifyStrict(ctx context.Context, rawURL string) (youtube.Classification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strictCalls++
	if s.strictCalls <= s.failFirst {
		return youtube.Classification{Reason: youtube.ReasonNotFound}, errors.New("connection reset by peer")
	}
	return s.verdicts[rawURL], nil
}

func (s *classifierStub) Classify(ctx context.Context, rawURL string) youtube.Classification {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classifyCalls++
	return s.verdicts[rawURL]
}

func (s *classifierStub) calls() (strict, classify int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strictCalls, s.classifyCalls
}

type searcherStub struct {
	query      string
	candidates []youtube.SearchCandidate
	err        error
}

func (s *searcherStub) SearchVideos(ctx context.Context, query string, maxResults int64) ([]youtube.SearchCandidate, error) {
	s.query = query
	return s.candidates, s.err
}

type logStub struct {
	mu   sync.Mutex
	recs []*storage.Replacement
}

func (l *logStub) AppendReplacement(ctx context.Context, rec *storage.Replacement) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recs = append(l.recs, rec)
	return nil
}

func fastRetry() *retry.Config {
	return &retry.Config{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func testConfig() Config {
	return Config{Enabled: true, AdminToken: "secret", Retry: fastRetry()}
}

func okVerdict(id string) youtube.Classification {
	return youtube.Classification{
		Embeddable: true,
		ID:         id,
		WatchURL:   youtube.WatchURL(id),
		EmbedURL:   youtube.CanonicalEmbedURL(id, youtube.EmbedOptions{}),
		Reason:     youtube.ReasonOK,
		Title:      "Some Video",
		Author:     "Some Channel",
	}
}

func authedRequest(url, title string) Request {
	return Request{URL: url, Title: title, Token: "secret", ClientKey: "1.2.3.4"}
}

func TestRepairDisabled(t *testing.T) {
	stub := &classifierStub{}
	cfg := testConfig()
	cfg.Enabled = false
	r := NewResolver(cfg, stub, nil, nil)

	out := r.Repair(context.Background(), authedRequest("https://youtu.be/dQw4w9WgXcQ", ""))

	if !out.OK {
		t.Error("disabled repair should still be OK")
	}
	if out.Reason != ReasonDisabled {
		t.Errorf("Reason = %q, want %q", out.Reason, ReasonDisabled)
	}
	if out.EmbedURL != "https://www.youtube-nocookie.com/embed/dQw4w9WgXcQ" {
		t.Errorf("EmbedURL = %q, want bare embed fallback", out.EmbedURL)
	}
	if out.OpenURL != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Errorf("OpenURL = %q, want watch fallback", out.OpenURL)
	}
	if strict, _ := stub.calls(); strict != 0 {
		t.Errorf("classifier called %d times, want 0", strict)
	}
}

func TestRepairUnauthorized(t *testing.T) {
	stub := &classifierStub{}
	r := NewResolver(testConfig(), stub, nil, nil)

	req := authedRequest("https://youtu.be/dQw4w9WgXcQ", "")
	req.Token = "wrong"
	out := r.Repair(context.Background(), req)

	if out.Reason != ReasonUnauthorized {
		t.Errorf("Reason = %q, want %q", out.Reason, ReasonUnauthorized)
	}
	if out.OpenURL != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Errorf("OpenURL = %q, want watch fallback", out.OpenURL)
	}
	if strict, _ := stub.calls(); strict != 0 {
		t.Errorf("classifier called %d times, want 0", strict)
	}
}

func TestRepairEmptyTokenAlwaysRejected(t *testing.T) {
	cfg := testConfig()
	cfg.AdminToken = ""
	r := NewResolver(cfg, &classifierStub{}, nil, nil)

	req := authedRequest("https://youtu.be/dQw4w9WgXcQ", "")
	req.Token = ""
	out := r.Repair(context.Background(), req)

	if out.Reason != ReasonUnauthorized {
		t.Errorf("empty token with empty configured token should be unauthorized, got %q", out.Reason)
	}
}

func TestRepairRateLimited(t *testing.T) {
	stub := &classifierStub{verdicts: map[string]youtube.Classification{
		"https://youtu.be/dQw4w9WgXcQ": okVerdict("dQw4w9WgXcQ"),
	}}
	cfg := testConfig()
	cfg.RateLimit = 1
	r := NewResolver(cfg, stub, nil, nil)

	first := r.Repair(context.Background(), authedRequest("https://youtu.be/dQw4w9WgXcQ", ""))
	if first.Reason != string(youtube.ReasonOK) {
		t.Fatalf("first request Reason = %q, want ok", first.Reason)
	}

	second := r.Repair(context.Background(), authedRequest("https://youtu.be/dQw4w9WgXcQ", ""))
	if second.Reason != ReasonRateLimited {
		t.Errorf("second request Reason = %q, want %q", second.Reason, ReasonRateLimited)
	}
	if second.OpenURL == "" {
		t.Error("rate limited outcome should keep a fallback link")
	}
}

func TestRepairMissingURL(t *testing.T) {
	r := NewResolver(testConfig(), &classifierStub{}, nil, nil)

	out := r.Repair(context.Background(), authedRequest("   ", ""))

	if out.OK {
		t.Error("missing url should not be OK")
	}
	if out.Reason != ReasonMissingURL {
		t.Errorf("Reason = %q, want %q", out.Reason, ReasonMissingURL)
	}
}

func TestRepairNonYouTubeURL(t *testing.T) {
	r := NewResolver(testConfig(), &classifierStub{}, nil, nil)

	out := r.Repair(context.Background(), authedRequest("https://vimeo.com/12345", ""))

	if out.OK {
		t.Error("non-YouTube url should not be OK")
	}
	if out.Reason != ReasonInvalidURL {
		t.Errorf("Reason = %q, want %q", out.Reason, ReasonInvalidURL)
	}
	if out.OpenURL != "https://vimeo.com/12345" {
		t.Errorf("OpenURL = %q, want the original url", out.OpenURL)
	}
}

func TestRepairPlaylistSkipsClassification(t *testing.T) {
	stub := &classifierStub{}
	r := NewResolver(testConfig(), stub, nil, nil)

	out := r.Repair(context.Background(), authedRequest("https://www.youtube.com/playlist?list=PLx123", ""))

	if !out.OK {
		t.Error("playlist outcome should be OK")
	}
	if out.Reason != ReasonPlaylist {
		t.Errorf("Reason = %q, want %q", out.Reason, ReasonPlaylist)
	}
	if strict, classify := stub.calls(); strict != 0 || classify != 0 {
		t.Errorf("classifier called %d/%d times, want 0/0", strict, classify)
	}
}

func TestRepairEmbeddable(t *testing.T) {
	stub := &classifierStub{verdicts: map[string]youtube.Classification{
		"https://youtu.be/dQw4w9WgXcQ": okVerdict("dQw4w9WgXcQ"),
	}}
	r := NewResolver(testConfig(), stub, nil, nil)

	out := r.Repair(context.Background(), authedRequest("https://youtu.be/dQw4w9WgXcQ", ""))

	if !out.OK || out.Reason != string(youtube.ReasonOK) {
		t.Fatalf("outcome = %+v, want ok", out)
	}
	if !strings.Contains(out.EmbedURL, "/embed/dQw4w9WgXcQ") {
		t.Errorf("EmbedURL = %q, want canonical embed url", out.EmbedURL)
	}
	if out.Title != "Some Video" || out.Author != "Some Channel" {
		t.Errorf("metadata not carried: %+v", out)
	}
}

func TestRepairRetriesTransientFailure(t *testing.T) {
	stub := &classifierStub{
		failFirst: 1,
		verdicts: map[string]youtube.Classification{
			"https://youtu.be/dQw4w9WgXcQ": okVerdict("dQw4w9WgXcQ"),
		},
	}
	r := NewResolver(testConfig(), stub, nil, nil)

	out := r.Repair(context.Background(), authedRequest("https://youtu.be/dQw4w9WgXcQ", ""))

	if out.Reason != string(youtube.ReasonOK) {
		t.Errorf("Reason = %q, want ok after retry", out.Reason)
	}
	if strict, _ := stub.calls(); strict != 2 {
		t.Errorf("classifier called %d times, want 2", strict)
	}
}

func TestRepairValidationFailedAfterRetries(t *testing.T) {
	stub := &classifierStub{failFirst: 100}
	r := NewResolver(testConfig(), stub, nil, nil)

	out := r.Repair(context.Background(), authedRequest("https://youtu.be/dQw4w9WgXcQ", ""))

	if !out.OK {
		t.Error("validation failure should still be OK")
	}
	if out.Reason != ReasonValidationFailed {
		t.Errorf("Reason = %q, want %q", out.Reason, ReasonValidationFailed)
	}
	if out.EmbedURL != "" {
		t.Errorf("EmbedURL = %q, want empty (no embed on validation failure)", out.EmbedURL)
	}
	if out.OpenURL != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Errorf("OpenURL = %q, want watch fallback", out.OpenURL)
	}
	if out.Title != "Video" {
		t.Errorf("Title = %q, want default placeholder", out.Title)
	}
	if strict, _ := stub.calls(); strict != 3 {
		t.Errorf("classifier called %d times, want 3 attempts", strict)
	}
}

func TestRepairNotEmbeddableNoSearch(t *testing.T) {
	stub := &classifierStub{verdicts: map[string]youtube.Classification{
		"https://youtu.be/dQw4w9WgXcQ": {
			ID:       "dQw4w9WgXcQ",
			WatchURL: youtube.WatchURL("dQw4w9WgXcQ"),
			Reason:   youtube.ReasonEmbedDisabled,
			Title:    "Locked Down",
		},
	}}
	r := NewResolver(testConfig(), stub, nil, nil)

	out := r.Repair(context.Background(), authedRequest("https://youtu.be/dQw4w9WgXcQ", ""))

	if !out.OK {
		t.Error("unembeddable verdict should still be OK")
	}
	if out.Reason != string(youtube.ReasonEmbedDisabled) {
		t.Errorf("Reason = %q, want embed_disabled", out.Reason)
	}
	if out.Replaced {
		t.Error("Replaced should be false without a searcher")
	}
	if out.EmbedURL != "" {
		t.Errorf("EmbedURL = %q, want empty", out.EmbedURL)
	}
	if out.OpenURL != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Errorf("OpenURL = %q, want watch fallback", out.OpenURL)
	}
}

func TestRepairReplacementSearch(t *testing.T) {
	stub := &classifierStub{verdicts: map[string]youtube.Classification{
		"https://youtu.be/dQw4w9WgXcQ": {
			ID:       "dQw4w9WgXcQ",
			WatchURL: youtube.WatchURL("dQw4w9WgXcQ"),
			Reason:   youtube.ReasonEmbedDisabled,
		},
		youtube.WatchURL("badcand0001"): {
			ID:     "badcand0001",
			Reason: youtube.ReasonPrivate,
		},
		youtube.WatchURL("goodcand001"): okVerdict("goodcand001"),
	}}
	search := &searcherStub{candidates: []youtube.SearchCandidate{
		{ID: "badcand0001", Title: "First Candidate"},
		{ID: "goodcand001", Title: "Second Candidate"},
	}}
	audit := &logStub{}
	r := NewResolver(testConfig(), stub, search, audit)

	out := r.Repair(context.Background(), authedRequest("https://youtu.be/dQw4w9WgXcQ", "Intro to Testing"))

	if !out.Replaced {
		t.Fatal("expected a replacement")
	}
	if out.Reason != string(youtube.ReasonEmbedDisabled) {
		t.Errorf("Reason = %q, want the original failure reason", out.Reason)
	}
	if !strings.Contains(out.EmbedURL, "/embed/goodcand001") {
		t.Errorf("EmbedURL = %q, want the replacement's embed url", out.EmbedURL)
	}
	if search.query != "Intro to Testing" {
		t.Errorf("search query = %q, want the request title", search.query)
	}

	if len(audit.recs) != 1 {
		t.Fatalf("audit log has %d records, want 1", len(audit.recs))
	}
	rec := audit.recs[0]
	if rec.OriginalID != "dQw4w9WgXcQ" || rec.ReplacementID != "goodcand001" {
		t.Errorf("record ids = %q -> %q", rec.OriginalID, rec.ReplacementID)
	}
	if rec.Status != storage.StatusApplied {
		t.Errorf("record status = %q, want applied", rec.Status)
	}
	if rec.Reason != string(youtube.ReasonEmbedDisabled) {
		t.Errorf("record reason = %q, want embed_disabled", rec.Reason)
	}
}

func TestRepairReplacementSearchNoMatch(t *testing.T) {
	stub := &classifierStub{verdicts: map[string]youtube.Classification{
		"https://youtu.be/dQw4w9WgXcQ": {
			ID:       "dQw4w9WgXcQ",
			WatchURL: youtube.WatchURL("dQw4w9WgXcQ"),
			Reason:   youtube.ReasonPrivate,
		},
		youtube.WatchURL("badcand0001"): {ID: "badcand0001", Reason: youtube.ReasonPrivate},
	}}
	search := &searcherStub{candidates: []youtube.SearchCandidate{{ID: "badcand0001", Title: "Candidate"}}}
	audit := &logStub{}
	r := NewResolver(testConfig(), stub, search, audit)

	out := r.Repair(context.Background(), authedRequest("https://youtu.be/dQw4w9WgXcQ", "A Title"))

	if out.Replaced {
		t.Error("no embeddable candidate should mean no replacement")
	}
	if out.Reason != string(youtube.ReasonPrivate) {
		t.Errorf("Reason = %q, want private", out.Reason)
	}
	if len(audit.recs) != 0 {
		t.Errorf("audit log has %d records, want 0", len(audit.recs))
	}
}

func TestRepairBatchDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	r := NewResolver(cfg, &classifierStub{}, nil, nil)

	out := r.RepairBatch(context.Background(), BatchRequest{
		Items: []BatchItem{{URL: "https://youtu.be/dQw4w9WgXcQ"}, {URL: "https://vimeo.com/1"}},
	})

	if !out.OK {
		t.Error("disabled batch should still be OK")
	}
	if len(out.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(out.Results))
	}
	if out.Results[0].Reason != ReasonDisabled || out.Results[1].Reason != ReasonDisabled {
		t.Errorf("results = %+v, want repair_disabled for every item", out.Results)
	}
	if out.Results[0].EmbedURL == "" {
		t.Error("first item should keep an embed fallback")
	}
	if out.Results[1].OpenURL != "https://vimeo.com/1" {
		t.Errorf("second item OpenURL = %q, want the original url", out.Results[1].OpenURL)
	}
}

func TestRepairBatchInvalidBody(t *testing.T) {
	r := NewResolver(testConfig(), &classifierStub{}, nil, nil)

	out := r.RepairBatch(context.Background(), BatchRequest{Items: nil, Token: "secret", ClientKey: "k"})

	if out.OK {
		t.Error("nil items should not be OK")
	}
	if out.Reason != ReasonInvalidBody {
		t.Errorf("Reason = %q, want %q", out.Reason, ReasonInvalidBody)
	}
}

func TestRepairBatchOrderStable(t *testing.T) {
	stub := &classifierStub{verdicts: map[string]youtube.Classification{
		"https://youtu.be/dQw4w9WgXcQ": okVerdict("dQw4w9WgXcQ"),
	}}
	r := NewResolver(testConfig(), stub, nil, nil)

	out := r.RepairBatch(context.Background(), BatchRequest{
		Items: []BatchItem{
			{URL: "https://youtu.be/dQw4w9WgXcQ"},
			{URL: "https://vimeo.com/1"},
			{URL: "https://www.youtube.com/playlist?list=PLx1"},
		},
		Token:     "secret",
		ClientKey: "1.2.3.4",
	})

	if !out.OK {
		t.Fatal("batch should be OK")
	}
	if len(out.Results) != 3 {
		t.Fatalf("got %d results, want 3", len(out.Results))
	}
	wantReasons := []string{string(youtube.ReasonOK), ReasonInvalidURL, ReasonPlaylist}
	for i, want := range wantReasons {
		if out.Results[i].Reason != want {
			t.Errorf("Results[%d].Reason = %q, want %q", i, out.Results[i].Reason, want)
		}
	}
	if out.Results[0].OriginalURL != "https://youtu.be/dQw4w9WgXcQ" {
		t.Errorf("Results[0].OriginalURL = %q", out.Results[0].OriginalURL)
	}
}

func TestRepairBatchLogsPendingReplacements(t *testing.T) {
	stub := &classifierStub{verdicts: map[string]youtube.Classification{
		"https://youtu.be/dQw4w9WgXcQ": {
			ID:       "dQw4w9WgXcQ",
			WatchURL: youtube.WatchURL("dQw4w9WgXcQ"),
			Reason:   youtube.ReasonEmbedDisabled,
		},
		youtube.WatchURL("goodcand001"): okVerdict("goodcand001"),
	}}
	search := &searcherStub{candidates: []youtube.SearchCandidate{{ID: "goodcand001", Title: "Candidate"}}}
	audit := &logStub{}
	r := NewResolver(testConfig(), stub, search, audit)

	out := r.RepairBatch(context.Background(), BatchRequest{
		Items:     []BatchItem{{URL: "https://youtu.be/dQw4w9WgXcQ", Title: "Broken Lesson"}},
		Token:     "secret",
		ClientKey: "1.2.3.4",
	})

	if !out.Results[0].Replaced {
		t.Fatal("expected a replacement in the batch result")
	}
	if len(audit.recs) != 1 {
		t.Fatalf("audit log has %d records, want 1", len(audit.recs))
	}
	if audit.recs[0].Status != storage.StatusPending {
		t.Errorf("batch replacement status = %q, want pending", audit.recs[0].Status)
	}
}
