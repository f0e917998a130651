package offline

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/jonwraymond/toolshelf/observe"
)

// NewProxy returns a handler that forwards every request to origin through
// rt. With a Registration as rt, clients of the proxy get the offline
// behavior of the active worker.
func NewProxy(origin string, rt http.RoundTripper, logger observe.Logger) (http.Handler, error) {
	target, err := url.Parse(origin)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return nil, fmt.Errorf("%w: origin %q is not an absolute http(s) URL", ErrInvalidConfig, origin)
	}
	if logger == nil {
		logger = observe.NopLogger()
	}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		Transport: rt,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Warn(r.Context(), "proxy request failed",
				observe.F("method", r.Method),
				observe.F("path", r.URL.Path),
				observe.F("error", err),
			)
			w.WriteHeader(http.StatusBadGateway)
		},
	}, nil
}
