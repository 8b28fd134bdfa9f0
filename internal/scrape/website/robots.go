package website

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// robotsCache fetches and caches robots.txt per host. A site we cannot read
// robots.txt from is allowed by default; a site that disallows us is skipped.
type robotsCache struct {
	mu        sync.RWMutex
	byHost    map[string]*robotstxt.RobotsData
	hc        *http.Client
	userAgent string
}

func newRobotsCache(userAgent string, timeout time.Duration) *robotsCache {
	return &robotsCache{
		byHost:    make(map[string]*robotstxt.RobotsData),
		hc:        &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

func (r *robotsCache) allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	data := r.dataFor(ctx, u)
	if data == nil {
		return true
	}
	return data.TestAgent(u.Path, r.userAgent)
}

func (r *robotsCache) dataFor(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	r.mu.RLock()
	data, ok := r.byHost[u.Host]
	r.mu.RUnlock()
	if ok {
		return data
	}

	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.hc.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	data, err = robotstxt.FromResponse(resp)
	if err != nil {
		data = nil
	}

	r.mu.Lock()
	r.byHost[u.Host] = data
	r.mu.Unlock()
	return data
}
