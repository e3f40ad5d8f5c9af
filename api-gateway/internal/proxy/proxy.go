package proxy

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

// RewritePath swaps stripPrefix for addPrefix and keeps the rest of the path.
func RewritePath(path, stripPrefix, addPrefix string) string {
	rest := strings.TrimPrefix(path, stripPrefix)
	switch {
	case strings.HasSuffix(addPrefix, "/") && strings.HasPrefix(rest, "/"):
		return addPrefix + strings.TrimPrefix(rest, "/")
	case !strings.HasSuffix(addPrefix, "/") && !strings.HasPrefix(rest, "/") && rest != "":
		return addPrefix + "/" + rest
	default:
		return addPrefix + rest
	}
}

// CreateProxy forwards requests to targetHost with the path prefix rewritten.
func CreateProxy(targetHost, stripPrefix, addPrefix string, logger *logrus.Logger) (http.Handler, error) {
	target, err := url.Parse(targetHost)
	if err != nil {
		return nil, err
	}
	rp := httputil.NewSingleHostReverseProxy(target)
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.WithFields(logrus.Fields{
			"target": targetHost,
			"path":   r.URL.Path,
		}).WithError(err).Error("upstream request failed")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"bad_gateway","message":"upstream unavailable"}`))
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.URL.Path = RewritePath(r.URL.Path, stripPrefix, addPrefix)
		r.URL.RawPath = ""
		r.Header.Set("X-Forwarded-Host", r.Host)
		r.Header.Del("X-Forwarded-For")
		rp.ServeHTTP(w, r)
	}), nil
}
