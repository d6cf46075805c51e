package source

import "context"

// Sort selects the listing ordering offered by the content service.
type Sort string

const (
	SortNew Sort = "new"
	SortHot Sort = "hot"
	SortTop Sort = "top"
)

// Timeframe bounds a "top" listing to a time window.
type Timeframe string

const (
	TimeDay   Timeframe = "day"
	TimeMonth Timeframe = "month"
	TimeAll   Timeframe = "all"
)

// Combination is one (sort, timeframe) cell of the listing matrix.
type Combination struct {
	Sort      Sort
	Timeframe Timeframe
}

// ListingMatrix returns every combination a sync walks, in order.
// Hot and new listings are only fetched for the day window; the
// service ignores the timeframe for those sorts, so month/all would
// just re-read the same page.
func ListingMatrix() []Combination {
	var matrix []Combination
	for _, tf := range []Timeframe{TimeDay, TimeMonth, TimeAll} {
		for _, srt := range []Sort{SortNew, SortHot, SortTop} {
			if (srt == SortNew || srt == SortHot) && tf != TimeDay {
				continue
			}
			matrix = append(matrix, Combination{Sort: srt, Timeframe: tf})
		}
	}
	return matrix
}

// MediaRepresentation is one gallery sub-item's set of renditions.
type MediaRepresentation struct {
	Static   string `json:"u"`
	Video    string `json:"mp4"`
	Animated string `json:"gif"`
}

// Representative picks the preferred rendition URL: static image,
// then video, then animated image. ok is false when the item exposes
// none of the three.
func (r MediaRepresentation) Representative() (url string, ok bool) {
	switch {
	case r.Static != "":
		return r.Static, true
	case r.Video != "":
		return r.Video, true
	case r.Animated != "":
		return r.Animated, true
	}
	return "", false
}

// GalleryItem is one entry of a post's gallery metadata.
type GalleryItem struct {
	ID   string              `json:"id"`
	Best MediaRepresentation `json:"s"`
}

// RawPost is one listing item as returned by the content service.
type RawPost struct {
	ExternalID string
	Title      string
	Body       string
	Score      int
	URL        string
	Permalink  string

	// GalleryMeta is non-nil only for multi-image posts; keys are the
	// service's per-item media ids.
	GalleryMeta map[string]GalleryItem
}

// IsGallery reports whether the post carries gallery metadata.
func (p *RawPost) IsGallery() bool { return len(p.GalleryMeta) > 0 }

// CommunityInfo is the service's descriptive metadata for a community.
type CommunityInfo struct {
	Title       string
	DisplayName string
}

// Client is the boundary to the external content-aggregation service.
type Client interface {
	Listing(ctx context.Context, community string, sort Sort, tf Timeframe, limit int) ([]RawPost, error)
	About(ctx context.Context, community string) (*CommunityInfo, error)
}
