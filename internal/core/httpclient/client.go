// Package httpclient configures the HTTP client used to call the upstream catalog.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

const DefaultUserAgent = "catalog-cache/1.0"

type userAgent struct {
	ua   string
	next http.RoundTripper
}

func (t userAgent) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.Header.Get("User-Agent") == "" {
		r = r.Clone(r.Context())
		r.Header.Set("User-Agent", t.ua)
	}
	return t.next.RoundTrip(r)
}

// NewOutbound creates the outbound client. Per-request deadlines come from the caller's
// context; Timeout is only a ceiling.
func NewOutbound(ua string) *http.Client {
	if ua == "" {
		ua = DefaultUserAgent
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          128,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: userAgent{ua: ua, next: transport},
		Timeout:   30 * time.Second,
	}
}
