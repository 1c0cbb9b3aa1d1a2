package youtube

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strings"
)

// Canonical URL bases. The embed base uses the nocookie domain so embedded
// players do not set tracking cookies.
const (
	WatchBaseURL = "https://www.youtube.com/watch?v="
	EmbedBaseURL = "https://www.youtube-nocookie.com/embed/"
)

// videoIDLength is YouTube's fixed identifier length. Candidate ids of any
// other length are rejected outright.
const videoIDLength = 11

// fallbackIDPattern recovers an id from malformed but substring-matchable
// input when structured URL parsing fails.
var fallbackIDPattern = regexp.MustCompile(`^.*(youtu\.be/|v/|u/\w/|embed/|watch\?v=|&v=)([^#&?]*).*`)

// trackingParams is the fixed denylist of tracking query parameters. Any
// parameter with the utm_ prefix is also stripped.
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"si":           true,
	"igshid":       true,
	"fbclid":       true,
	"gclid":        true,
	"mc_cid":       true,
	"mc_eid":       true,
}

// ExtractVideoID parses a raw URL and returns the 11-character video id.
// It recognizes watch, short-link, shorts, embed, legacy /v/ and /live/
// shapes across the youtube.com, youtu.be and youtube-nocookie.com hosts.
// Returns false for any other host, unmatched shape or malformed input.
func ExtractVideoID(rawURL string) (string, bool) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", false
	}

	id, parsed := extractStructured(rawURL)
	if isVideoID(id) {
		return id, true
	}

	// The regex fallback only covers input the URL parser could not handle.
	// A well-formed non-YouTube URL stays rejected.
	if !parsed {
		if m := fallbackIDPattern.FindStringSubmatch(rawURL); m != nil && isVideoID(m[2]) {
			return m[2], true
		}
	}

	return "", false
}

func isVideoID(id string) bool {
	return len(id) == videoIDLength
}

func extractStructured(rawURL string) (id string, parsed bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", false
	}

	host := normalizeHost(u.Host)
	segs := pathSegments(u.Path)

	switch {
	case host == "youtu.be":
		if len(segs) > 0 {
			return segs[0], true
		}

	case host == "youtube.com" || strings.HasSuffix(host, ".youtube.com") || host == "youtube-nocookie.com":
		if len(segs) > 0 && segs[0] == "watch" {
			return u.Query().Get("v"), true
		}
		if len(segs) >= 2 {
			switch segs[0] {
			case "shorts", "embed", "v", "live":
				return segs[1], true
			}
		}
	}

	return "", true
}

// normalizeHost lowercases a host and drops the port and a leading www.
func normalizeHost(host string) string {
	host = strings.ToLower(host)
	if idx := strings.IndexByte(host, ':'); idx != -1 {
		host = host[:idx]
	}
	return strings.TrimPrefix(host, "www.")
}

func pathSegments(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// WatchURL returns the canonical watch URL for a video id.
func WatchURL(id string) string {
	return WatchBaseURL + id
}

// EmbedURL returns the bare canonical embed URL for a video id, with no
// player parameters.
func EmbedURL(id string) string {
	return EmbedBaseURL + id
}

// CanonicalWatchURL normalizes a raw URL or bare id to the canonical watch
// form. Input that yields no id is returned unchanged.
func CanonicalWatchURL(urlOrID string) string {
	if id, ok := ExtractVideoID(urlOrID); ok {
		return WatchURL(id)
	}
	if isVideoID(urlOrID) && !strings.ContainsAny(urlOrID, "/?#.") {
		return WatchURL(urlOrID)
	}
	return urlOrID
}

// EmbedOptions carries the optional embed player parameters.
type EmbedOptions struct {
	// Origin is passed to the player for cross-frame messaging.
	Origin string
	// StartSeconds is the playback start offset, floored to whole seconds.
	StartSeconds float64
}

// CanonicalEmbedURL builds the embed URL for a video id with the fixed safe
// player parameters: no related-video suggestions, modest branding, JS API
// enabled.
func CanonicalEmbedURL(id string, opts EmbedOptions) string {
	var b strings.Builder
	b.WriteString(EmbedBaseURL)
	b.WriteString(id)
	b.WriteString("?rel=0&modestbranding=1&enablejsapi=1")
	if opts.Origin != "" {
		b.WriteString("&origin=")
		b.WriteString(url.QueryEscape(opts.Origin))
	}
	if opts.StartSeconds > 0 {
		fmt.Fprintf(&b, "&start=%d", int64(math.Floor(opts.StartSeconds)))
	}
	return b.String()
}

// StripTrackingParams removes denylisted and utm_-prefixed query parameters,
// preserving the relative order of the remaining parameters. The input is
// returned unchanged if it cannot be parsed.
func StripTrackingParams(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if u.RawQuery == "" {
		return rawURL
	}

	kept := make([]string, 0, 4)
	for _, pair := range strings.Split(u.RawQuery, "&") {
		if pair == "" {
			continue
		}
		key := pair
		if idx := strings.IndexByte(pair, '='); idx != -1 {
			key = pair[:idx]
		}
		if decoded, err := url.QueryUnescape(key); err == nil {
			key = decoded
		}
		if isTrackingParam(key) {
			continue
		}
		kept = append(kept, pair)
	}

	u.RawQuery = strings.Join(kept, "&")
	return u.String()
}

func isTrackingParam(key string) bool {
	if trackingParams[key] {
		return true
	}
	return strings.HasPrefix(key, "utm_")
}

// UpgradeScheme rewrites http to https. The scheme is matched
// case-insensitively, so "HTTP://" upgrades too. All other schemes and
// non-URL strings pass through unchanged.
func UpgradeScheme(rawURL string) string {
	const plain = "http://"
	if len(rawURL) >= len(plain) && strings.EqualFold(rawURL[:len(plain)], plain) {
		return "https://" + rawURL[len(plain):]
	}
	return rawURL
}

// SanitizeURL strips tracking parameters and upgrades the scheme.
func SanitizeURL(rawURL string) string {
	return StripTrackingParams(UpgradeScheme(rawURL))
}

// IsYouTubeURL reports whether the URL points at a recognized YouTube host.
func IsYouTubeURL(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return strings.Contains(rawURL, "youtube.com") || strings.Contains(rawURL, "youtu.be")
	}

	host := normalizeHost(u.Host)
	return host == "youtu.be" ||
		host == "youtube.com" ||
		strings.HasSuffix(host, ".youtube.com") ||
		host == "youtube-nocookie.com"
}

// IsPlaylistURL reports whether the URL references a playlist, either via a
// list query parameter or a /playlist path.
func IsPlaylistURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.Contains(rawURL, "list=") || strings.Contains(rawURL, "/playlist")
	}

	if u.Query().Has("list") {
		return true
	}
	segs := pathSegments(u.Path)
	return len(segs) > 0 && segs[0] == "playlist"
}

// IsShortsURL reports whether the URL path has the /shorts/ shape.
func IsShortsURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.Contains(rawURL, "/shorts/")
	}
	segs := pathSegments(u.Path)
	return len(segs) > 0 && segs[0] == "shorts"
}

// IsLiveURL reports whether the URL path has the /live/ shape.
func IsLiveURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.Contains(rawURL, "/live/")
	}
	segs := pathSegments(u.Path)
	return len(segs) > 0 && segs[0] == "live"
}
