package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomszw/gallerysync/pkg/source"
)

func TestExtractCandidatesGallery(t *testing.T) {
	post := &source.RawPost{
		ExternalID: "t3abc",
		URL:        "https://www.reddit.com/gallery/t3abc",
		GalleryMeta: map[string]source.GalleryItem{
			"m1": {ID: "m1", Best: source.MediaRepresentation{Static: "https://i.redd.it/m1.jpg"}},
			"m2": {ID: "m2", Best: source.MediaRepresentation{Video: "https://i.redd.it/m2.mp4"}},
			"m3": {ID: "m3"}, // no rendition at all
		},
	}

	candidates := ExtractCandidates(post)
	require.Len(t, candidates, 2)
	assert.Equal(t, Candidate{ExternalID: "m1", URL: "https://i.redd.it/m1.jpg", Gallery: true}, candidates[0])
	assert.Equal(t, Candidate{ExternalID: "m2", URL: "https://i.redd.it/m2.mp4", Gallery: true}, candidates[1])
}

func TestExtractCandidatesRepresentationPrecedence(t *testing.T) {
	rep := source.MediaRepresentation{
		Static:   "https://i.redd.it/static.jpg",
		Video:    "https://i.redd.it/video.mp4",
		Animated: "https://i.redd.it/anim.gif",
	}
	url, ok := rep.Representative()
	require.True(t, ok)
	assert.Equal(t, "https://i.redd.it/static.jpg", url)

	rep.Static = ""
	url, _ = rep.Representative()
	assert.Equal(t, "https://i.redd.it/video.mp4", url)

	rep.Video = ""
	url, _ = rep.Representative()
	assert.Equal(t, "https://i.redd.it/anim.gif", url)

	rep.Animated = ""
	_, ok = rep.Representative()
	assert.False(t, ok)
}

func TestExtractCandidatesDirect(t *testing.T) {
	post := &source.RawPost{
		ExternalID: "t3xyz",
		URL:        "https://i.redd.it/direct.jpg?width=200",
	}

	candidates := ExtractCandidates(post)
	require.Len(t, candidates, 1)
	assert.Equal(t, "direct.jpg", candidates[0].ExternalID)
	assert.Equal(t, post.URL, candidates[0].URL)
	assert.False(t, candidates[0].Gallery)
}

func TestExtractCandidatesEmpty(t *testing.T) {
	assert.Empty(t, ExtractCandidates(&source.RawPost{ExternalID: "t3nil"}))
}
