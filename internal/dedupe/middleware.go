package dedupe

import (
	"net"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
)

const HeaderDedup = "X-Dedup"

type middlewareConfig struct {
	scope func(*http.Request) string
}

type MiddlewareOption func(*middlewareConfig)

// WithScope keys duplicates per caller. An empty scope falls back to the client address,
// which is also the default.
func WithScope(fn func(*http.Request) string) MiddlewareOption {
	return func(c *middlewareConfig) {
		if fn != nil {
			c.scope = fn
		}
	}
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware answers repeated GET requests from the same caller with 204 and an X-Dedup
// marker. Requests sent with Cache-Control: no-cache always run. Responses with a 5xx status
// are not remembered.
func Middleware(d *Deduper, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := middlewareConfig{scope: clientAddr}
	for _, o := range opts {
		o(&cfg)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet || strings.Contains(r.Header.Get("Cache-Control"), "no-cache") {
				next.ServeHTTP(w, r)
				return
			}
			scope := cfg.scope(r)
			if scope == "" {
				scope = clientAddr(r)
			}
			key := scope + "|" + r.URL.RequestURI()
			if marker, ok := d.Admit(r.Method, key); !ok {
				w.Header().Set(HeaderDedup, string(marker))
				w.WriteHeader(http.StatusNoContent)
				return
			}

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			completed := false
			defer func() {
				// a panic or a server error leaves nothing to suppress
				if !completed || ww.Status() >= http.StatusInternalServerError {
					d.Forget(r.Method, key)
					return
				}
				d.Done(r.Method, key)
			}()
			next.ServeHTTP(ww, r)
			completed = true
		})
	}
}
