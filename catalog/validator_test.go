package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ytresolve/youtube"
)

// classifierStub reports a fixed verdict per video id.
type classifierStub struct {
	verdicts map[string]youtube.Classification
}

func (s *classifierStub) Classify(ctx context.Context, rawURL string) youtube.Classification {
	id, ok := youtube.ExtractVideoID(rawURL)
	if !ok {
		return youtube.Classification{Reason: youtube.ReasonInvalidURL}
	}
	if verdict, ok := s.verdicts[id]; ok {
		return verdict
	}
	return youtube.Classification{
		Embeddable: true,
		ID:         id,
		WatchURL:   youtube.WatchURL(id),
		EmbedURL:   youtube.CanonicalEmbedURL(id, youtube.EmbedOptions{}),
		Reason:     youtube.ReasonOK,
	}
}

func TestValidateVideoOK(t *testing.T) {
	v := NewValidator(&classifierStub{}, ValidatorOptions{})

	items := []Item{{
		ID:    "r1",
		Type:  TypeVideo,
		Title: "Some Video",
		URL:   "https://youtu.be/dQw4w9WgXcQ",
	}}

	out := v.Validate(context.Background(), items)
	if len(out) != 1 {
		t.Fatalf("got %d items, want 1", len(out))
	}

	item := out[0]
	if item.Broken {
		t.Error("embeddable video marked broken")
	}
	if item.URL != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Errorf("url = %q", item.URL)
	}
	if !strings.Contains(item.NormalizedURL, "/embed/dQw4w9WgXcQ") {
		t.Errorf("normalizedUrl = %q", item.NormalizedURL)
	}
	if item.LastCheckedAt.IsZero() {
		t.Error("lastCheckedAt not set")
	}
}

func TestValidateVideoBroken(t *testing.T) {
	stub := &classifierStub{verdicts: map[string]youtube.Classification{
		"dQw4w9WgXcQ": {Reason: youtube.ReasonNotFound},
	}}
	v := NewValidator(stub, ValidatorOptions{})

	items := []Item{{
		ID:   "r1",
		Type: TypeVideo,
		URL:  "https://youtu.be/dQw4w9WgXcQ",
	}}

	out := v.Validate(context.Background(), items)
	item := out[0]
	if !item.Broken {
		t.Error("unembeddable video not marked broken")
	}
	// URL stays at its last-known value
	if item.URL != "https://youtu.be/dQw4w9WgXcQ" {
		t.Errorf("url = %q, want original", item.URL)
	}
	if item.LastCheckedAt.IsZero() {
		t.Error("lastCheckedAt not set")
	}
}

func TestValidateLinkReachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	v := NewValidator(&classifierStub{}, ValidatorOptions{})

	out := v.Validate(context.Background(), []Item{{
		ID:   "r1",
		Type: TypeLink,
		URL:  server.URL,
	}})

	if out[0].Broken {
		t.Error("reachable link marked broken")
	}
}

func TestValidateLinkHeadRejectedGetAccepted(t *testing.T) {
	var methods []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	v := NewValidator(&classifierStub{}, ValidatorOptions{})

	out := v.Validate(context.Background(), []Item{{
		ID:   "r1",
		Type: TypeLink,
		URL:  server.URL,
	}})

	if out[0].Broken {
		t.Error("link with GET fallback marked broken")
	}
	if len(methods) != 2 || methods[0] != http.MethodHead || methods[1] != http.MethodGet {
		t.Errorf("methods = %v, want [HEAD GET]", methods)
	}
}

func TestValidateLinkUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	v := NewValidator(&classifierStub{}, ValidatorOptions{})

	rawURL := server.URL + "/gone?utm_source=mail"
	out := v.Validate(context.Background(), []Item{{
		ID:   "r1",
		Type: TypeLink,
		URL:  rawURL,
	}})

	item := out[0]
	if !item.Broken {
		t.Error("404 link not marked broken")
	}
	if strings.Contains(item.URL, "utm_source") {
		t.Errorf("broken link URL not sanitized: %q", item.URL)
	}
}

func TestValidateLinkFollowsRedirect(t *testing.T) {
	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer final.Close()

	redirecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL+"/landed", http.StatusFound)
	}))
	defer redirecting.Close()

	v := NewValidator(&classifierStub{}, ValidatorOptions{})

	out := v.Validate(context.Background(), []Item{{
		ID:   "r1",
		Type: TypeLink,
		URL:  redirecting.URL,
	}})

	item := out[0]
	if item.Broken {
		t.Error("redirected link marked broken")
	}
	if item.URL != final.URL+"/landed" {
		t.Errorf("url = %q, want final resolved URL %q", item.URL, final.URL+"/landed")
	}
}

func TestValidateOrderStableMixedOutcomes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/bad") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	v := NewValidator(&classifierStub{}, ValidatorOptions{Concurrency: 3})

	var items []Item
	for i := 0; i < 10; i++ {
		path := "/ok"
		if i%3 == 0 {
			path = "/bad"
		}
		items = append(items, Item{
			ID:   fmt.Sprintf("r%d", i),
			Type: TypeLink,
			URL:  fmt.Sprintf("%s%s/%d", server.URL, path, i),
		})
	}

	out := v.Validate(context.Background(), items)
	if len(out) != len(items) {
		t.Fatalf("got %d items, want %d", len(out), len(items))
	}

	for i, item := range out {
		if item.ID != items[i].ID {
			t.Errorf("item %d: id = %q, want %q (order not stable)", i, item.ID, items[i].ID)
		}
		if item.LastCheckedAt.IsZero() {
			t.Errorf("item %d: lastCheckedAt not set", i)
		}
		wantBroken := i%3 == 0
		if item.Broken != wantBroken {
			t.Errorf("item %d: broken = %v, want %v", i, item.Broken, wantBroken)
		}
	}
}

func TestValidatePreservesUnownedFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	v := NewValidator(&classifierStub{}, ValidatorOptions{})

	out := v.Validate(context.Background(), []Item{{
		ID:      "r1",
		Type:    TypeLink,
		Title:   "A Resource",
		URL:     server.URL,
		Summary: "summary text",
		Benefit: "benefit text",
		Mirrors: []string{"https://mirror.example.com"},
	}})

	item := out[0]
	if item.Title != "A Resource" || item.Summary != "summary text" || item.Benefit != "benefit text" {
		t.Error("validator clobbered fields it does not own")
	}
	if len(item.Mirrors) != 1 {
		t.Error("mirrors lost")
	}
}

func TestNeedsRevalidation(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		items []Item
		want  bool
	}{
		{"empty", nil, false},
		{"fresh", []Item{{LastCheckedAt: now.Add(-time.Hour)}}, false},
		{"never_checked", []Item{{}}, true},
		{"stale", []Item{{LastCheckedAt: now.Add(-8 * 24 * time.Hour)}}, true},
		{"one_stale_among_fresh", []Item{
			{LastCheckedAt: now.Add(-time.Hour)},
			{LastCheckedAt: now.Add(-8 * 24 * time.Hour)},
		}, true},
		{"just_inside_window", []Item{{LastCheckedAt: now.Add(-StaleAfter + time.Minute)}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsRevalidation(tt.items, now); got != tt.want {
				t.Errorf("NeedsRevalidation = %v, want %v", got, tt.want)
			}
		})
	}
}
