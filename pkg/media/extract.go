package media

import (
	"sort"
	"strings"

	"github.com/tomszw/gallerysync/pkg/source"
)

// Candidate is one media reference found in a post, before
// normalization and validation.
type Candidate struct {
	ExternalID string
	URL        string
	Gallery    bool
}

// ExtractCandidates expands a raw post into its media candidates.
// Gallery posts yield one candidate per sub-item that exposes a
// representative rendition; items without one are dropped. Plain
// posts yield a single candidate from the post's direct URL. The
// result may be empty.
func ExtractCandidates(post *source.RawPost) []Candidate {
	if post.IsGallery() {
		keys := make([]string, 0, len(post.GalleryMeta))
		for k := range post.GalleryMeta {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var out []Candidate
		for _, k := range keys {
			item := post.GalleryMeta[k]
			repURL, ok := item.Best.Representative()
			if !ok {
				continue
			}
			id := item.ID
			if id == "" {
				id = k
			}
			out = append(out, Candidate{ExternalID: id, URL: repURL, Gallery: true})
		}
		return out
	}

	if post.URL == "" {
		return nil
	}
	return []Candidate{{
		ExternalID: lastSegment(post.URL),
		URL:        post.URL,
		Gallery:    false,
	}}
}

// lastSegment returns the final path segment of a URL, without any
// query string.
func lastSegment(rawURL string) string {
	s := rawURL
	if i := strings.IndexByte(s, '?'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSuffix(s, "/")
	return s[strings.LastIndexByte(s, '/')+1:]
}
