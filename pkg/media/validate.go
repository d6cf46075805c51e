package media

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"
)

const (
	probeTimeout = 10 * time.Second
	maxRedirects = 3
)

// Validator probes media URLs with header-only requests to confirm
// they serve real image content.
type Validator struct {
	client    *http.Client
	userAgent string
	maxHops   int
}

// NewValidator creates a Validator identifying itself with userAgent.
func NewValidator(userAgent string) *Validator {
	return NewValidatorTimeout(userAgent, probeTimeout)
}

// NewValidatorTimeout creates a Validator with a non-default probe
// timeout.
func NewValidatorTimeout(userAgent string, timeout time.Duration) *Validator {
	if userAgent == "" {
		userAgent = "gallerysync/1.0"
	}
	if timeout <= 0 {
		timeout = probeTimeout
	}
	return &Validator{
		client: &http.Client{
			Timeout: timeout,
			// Temporary redirects are followed by hand so the hop
			// count and target decoding stay under our control.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent: userAgent,
		maxHops:   maxRedirects,
	}
}

// IsValidMedia reports whether the URL serves image content. Hosts
// behind flaky networks sometimes refuse or reset connections on HEAD
// requests while still serving the asset, so connection errors count
// as valid; timeouts and every other transport error do not.
func (v *Validator) IsValidMedia(ctx context.Context, rawURL string) bool {
	if IsAggregatorURL(rawURL) {
		return false
	}

	target := rawURL
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
		if err != nil {
			return false
		}
		req.Header.Set("User-Agent", v.userAgent)

		resp, err := v.client.Do(req)
		if err != nil {
			return isConnectionError(err)
		}
		resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			return strings.HasPrefix(resp.Header.Get("Content-Type"), "image/")
		case http.StatusTemporaryRedirect:
			if attempt >= v.maxHops {
				return false
			}
			loc := resp.Header.Get("Location")
			if decoded, derr := url.QueryUnescape(loc); derr == nil {
				loc = decoded
			}
			if loc == "" {
				return false
			}
			target = loc
		default:
			return false
		}
	}
}

func isConnectionError(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}
