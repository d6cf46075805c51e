package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	tokenURL = "https://www.reddit.com/api/v1/access_token"
	apiBase  = "https://oauth.reddit.com"
	siteBase = "https://www.reddit.com"
)

// Reddit is an authenticated client for the Reddit listing API. It is
// safe for concurrent use; construct one per process and inject it.
type Reddit struct {
	client       *http.Client
	clientID     string
	clientSecret string
	userAgent    string

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewReddit creates a Reddit client authenticating with the given
// application credentials.
func NewReddit(clientID, clientSecret, userAgent string) *Reddit {
	if userAgent == "" {
		userAgent = "gallerysync/1.0"
	}
	return &Reddit{
		client:       &http.Client{Timeout: 30 * time.Second},
		clientID:     clientID,
		clientSecret: clientSecret,
		userAgent:    userAgent,
	}
}

func (r *Reddit) authenticate(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.token != "" && time.Now().Before(r.tokenExpiry) {
		return nil
	}

	data := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}

	req.SetBasicAuth(r.clientID, r.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth status %d", resp.StatusCode)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return fmt.Errorf("decode token: %w", err)
	}

	r.token = tokenResp.AccessToken
	r.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn-60) * time.Second)
	return nil
}

func (r *Reddit) get(ctx context.Context, reqURL string, out any) error {
	if err := r.authenticate(ctx); err != nil {
		return fmt.Errorf("reddit auth: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}

	r.mu.Lock()
	token := r.token
	r.mu.Unlock()

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Listing fetches one page of a community listing. Top listings are
// bounded by tf; hot and new ignore it.
func (r *Reddit) Listing(ctx context.Context, community string, sort Sort, tf Timeframe, limit int) ([]RawPost, error) {
	reqURL := fmt.Sprintf("%s/r/%s/%s.json?limit=%d", apiBase, community, sort, limit)
	if sort == SortTop {
		reqURL += "&t=" + string(tf)
	}

	var listing redditListing
	if err := r.get(ctx, reqURL, &listing); err != nil {
		return nil, fmt.Errorf("fetch r/%s %s/%s: %w", community, sort, tf, err)
	}

	var posts []RawPost
	for _, child := range listing.Data.Children {
		p := child.Data
		if p.Stickied {
			continue
		}

		raw := RawPost{
			ExternalID: p.ID,
			Title:      p.Title,
			Body:       p.Selftext,
			Score:      p.Score,
			URL:        p.URL,
			Permalink:  siteBase + p.Permalink,
		}

		// Gallery posts carry per-item metadata, either on the post
		// itself or on the crosspost parent.
		if strings.Contains(p.URL, "gallery") {
			meta := p.MediaMetadata
			if len(meta) == 0 && len(p.CrosspostParents) > 0 {
				meta = p.CrosspostParents[0].MediaMetadata
			}
			if len(meta) > 0 {
				raw.GalleryMeta = meta
			}
		}

		posts = append(posts, raw)
	}

	return posts, nil
}

// About fetches a community's descriptive metadata.
func (r *Reddit) About(ctx context.Context, community string) (*CommunityInfo, error) {
	var about redditAbout
	reqURL := fmt.Sprintf("%s/r/%s/about.json", apiBase, community)
	if err := r.get(ctx, reqURL, &about); err != nil {
		return nil, fmt.Errorf("about r/%s: %w", community, err)
	}
	return &CommunityInfo{
		Title:       about.Data.Title,
		DisplayName: about.Data.DisplayName,
	}, nil
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID               string                 `json:"id"`
	Title            string                 `json:"title"`
	Selftext         string                 `json:"selftext"`
	Score            int                    `json:"score"`
	URL              string                 `json:"url"`
	Permalink        string                 `json:"permalink"`
	Stickied         bool                   `json:"stickied"`
	MediaMetadata    map[string]GalleryItem `json:"media_metadata"`
	CrosspostParents []struct {
		MediaMetadata map[string]GalleryItem `json:"media_metadata"`
	} `json:"crosspost_parent_list"`
}

type redditAbout struct {
	Data struct {
		Title       string `json:"title"`
		DisplayName string `json:"display_name"`
	} `json:"data"`
}
