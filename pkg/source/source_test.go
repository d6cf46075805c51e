package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListingMatrix(t *testing.T) {
	matrix := ListingMatrix()

	assert.Equal(t, []Combination{
		{Sort: SortNew, Timeframe: TimeDay},
		{Sort: SortHot, Timeframe: TimeDay},
		{Sort: SortTop, Timeframe: TimeDay},
		{Sort: SortTop, Timeframe: TimeMonth},
		{Sort: SortTop, Timeframe: TimeAll},
	}, matrix)
}

func TestIsGallery(t *testing.T) {
	p := &RawPost{ExternalID: "x"}
	assert.False(t, p.IsGallery())

	p.GalleryMeta = map[string]GalleryItem{"m": {ID: "m"}}
	assert.True(t, p.IsGallery())
}
