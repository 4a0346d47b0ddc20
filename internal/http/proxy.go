package httpx

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
)

// strippedHeaders are browser credentials that must never reach the backend. The gateway
// attaches the session credential itself.
var strippedHeaders = []string{"Authorization", "Cookie", DefaultCSRFHeaderName}

// APIProxy forwards /api/ requests to the CityCycle backend through the request gateway.
type APIProxy struct {
	proxy *httputil.ReverseProxy
}

// NewAPIProxy builds a reverse proxy to target whose outbound requests use transport.
func NewAPIProxy(target *url.URL, transport http.RoundTripper, logger *slog.Logger) *APIProxy {
	if logger == nil {
		logger = slog.Default()
	}
	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			for _, h := range strippedHeaders {
				pr.Out.Header.Del(h)
			}
		},
		Transport: transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			attrs := []any{"method", r.Method, "path", r.URL.Path, "error", err}
			if user, ok := CurrentUser(r.Context()); ok {
				attrs = append(attrs, "user_id", user.ID)
			}
			logger.WarnContext(r.Context(), "backend proxy failed", attrs...)
			WriteJSON(w, http.StatusBadGateway, map[string]string{
				"error":   "unavailable",
				"message": "backend unavailable",
			})
		},
	}
	return &APIProxy{proxy: rp}
}

func (p *APIProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.proxy.ServeHTTP(w, r)
}
