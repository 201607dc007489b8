// internal/scraper/headers.go
package scraper

import (
	"math/rand"
	"net/http"
	"sync"
)

// UserAgentRotator rotates user agents
type UserAgentRotator struct {
	agents []string
	mu     sync.Mutex
	index  int
}

// NewUserAgentRotator creates a new user agent rotator
func NewUserAgentRotator(agents []string) *UserAgentRotator {
	if len(agents) == 0 {
		agents = DefaultUserAgents()
	}
	return &UserAgentRotator{
		agents: agents,
	}
}

// GetNext returns the next user agent in round-robin order
func (r *UserAgentRotator) GetNext() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent := r.agents[r.index]
	r.index = (r.index + 1) % len(r.agents)
	return agent
}

// HeaderRotator builds browser-like request headers for portal fetches
type HeaderRotator struct {
	userAgents *UserAgentRotator
	extra      map[string]string
}

// NewHeaderRotator creates a header rotator. Extra headers override the
// generated ones.
func NewHeaderRotator(userAgents []string, extra map[string]string) *HeaderRotator {
	return &HeaderRotator{
		userAgents: NewUserAgentRotator(userAgents),
		extra:      extra,
	}
}

// Apply sets the browser headers on req.
func (hr *HeaderRotator) Apply(req *http.Request) {
	req.Header.Set("User-Agent", hr.userAgents.GetNext())
	req.Header.Set("Accept", randomAccept())
	req.Header.Set("Accept-Language", randomAcceptLanguage())
	// Accept-Encoding is left to the transport so gzip is decoded transparently.
	req.Header.Set("DNT", "1")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	for key, value := range hr.extra {
		req.Header.Set(key, value)
	}
}

// DefaultUserAgents returns a set of realistic desktop and mobile user agent strings
func DefaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
		"Mozilla/5.0 (Linux; Android 14; SM-A546E) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
	}
}

func randomAccept() string {
	accepts := []string{
		"text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8",
		"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	}
	return accepts[rand.Intn(len(accepts))]
}

func randomAcceptLanguage() string {
	languages := []string{
		"pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7",
		"pt-BR,pt;q=0.9",
		"pt-BR,pt;q=0.8,en;q=0.5",
	}
	return languages[rand.Intn(len(languages))]
}
