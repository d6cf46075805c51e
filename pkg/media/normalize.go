package media

import (
	"net/url"
	"strings"
)

// AggregatorHost is the link-aggregator domain whose URLs are never
// direct media. Pages there used to be resolved by scraping; current
// policy rejects them outright.
const AggregatorHost = "imgur.com"

// blockedHosts never serve media directly; candidates pointing at
// them are dropped before any network work.
var blockedHosts = []string{
	"pictures.hentai-foundry.com",
	"twimg",
}

// mediaExtensions are the recognized direct-media file extensions.
// ".gif" also covers ".gifv", which gets rewritten to ".mp4".
var mediaExtensions = []string{
	".png", ".jpg", ".jpeg", ".webp", ".mp4", ".webm", ".gif", ".mkv",
}

// Normalized is the storable form of a raw media URL.
type Normalized struct {
	URL        string
	Filename   string
	DisplayURL string
}

// Normalize canonicalizes a raw media URL. ok is false when the URL
// is not a supported direct-media link; that is a normal outcome and
// the candidate should be silently dropped. A non-empty prefix is
// prepended to the filename as "<prefix>_<filename>".
func Normalize(rawURL, prefix string) (Normalized, bool) {
	display := strings.ReplaceAll(rawURL, "[/img]", "")
	unsupported := Normalized{DisplayURL: display}

	for _, host := range blockedHosts {
		if strings.Contains(rawURL, host) {
			return unsupported, false
		}
	}
	if IsAggregatorURL(rawURL) {
		return unsupported, false
	}
	if !hasMediaExtension(rawURL) {
		return unsupported, false
	}

	canonical := rawURL
	if strings.Contains(canonical, ".gifv") {
		canonical = strings.Replace(canonical, ".gifv", ".mp4", 1)
	}
	// Preview renditions redirect and carry sizing queries; the
	// direct-serving host returns the same object verbatim.
	canonical = strings.Replace(canonical, "preview.redd.it", "i.redd.it", 1)
	if i := strings.IndexByte(canonical, '?'); i >= 0 {
		canonical = canonical[:i]
	}

	filename := canonical[strings.LastIndexByte(canonical, '/')+1:]
	if filename == "" {
		return unsupported, false
	}
	if prefix != "" {
		filename = prefix + "_" + filename
	}

	return Normalized{URL: canonical, Filename: filename, DisplayURL: display}, true
}

// IsAggregatorURL reports whether the URL's host is the aggregator
// domain itself (not its direct-serving subdomains).
func IsAggregatorURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	return host == AggregatorHost
}

func hasMediaExtension(rawURL string) bool {
	for _, ext := range mediaExtensions {
		if strings.Contains(rawURL, ext) {
			return true
		}
	}
	return false
}
