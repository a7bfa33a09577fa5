/*
Package logx provides a structured logging wrapper based on zerolog.

This file contains the HTTP middleware that logs each request's lifecycle (URI, method,
status, latency, route pattern and redirect target) with an anonymized client address.
*/
package logx

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// AnonymizeIP zeroes the last IPv4 octet or keeps only the first half of an IPv6 address.
// Approximate location survives; the individual visitor does not.
func AnonymizeIP(ipStr string) string {
	host, _, err := net.SplitHostPort(ipStr)
	if err == nil {
		ipStr = host
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return "unknown_ip"
	}

	if ip.IsLoopback() {
		return "127.0.0.1"
	}

	if v4 := ip.To4(); v4 != nil {
		return net.IPv4(v4[0], v4[1], v4[2], 0).String()
	}

	if v6 := ip.To16(); v6 != nil {
		return net.IP(append(v6[:8:8], make([]byte, 8)...)).String()
	}

	return ipStr
}

// quietPaths are health and scrape endpoints logged at debug level only.
var quietPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// RequestLogger returns a middleware that logs every request once it completes.
// A request-scoped logger is stored in the context for handlers (zerolog.Ctx).
//
// Guard redirects are logged with their target. A 503 carrying Retry-After is a portal
// session still loading and is logged at info level.
func RequestLogger() func(next http.Handler) http.Handler {
	baseLogger := Logger()

	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			logger := baseLogger.With().
				Str("component", "http").
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("remote_ip", AnonymizeIP(r.RemoteAddr)).
				Str("request_method", r.Method).
				Str("request_uri", r.RequestURI).
				Logger()

			r = r.WithContext(logger.WithContext(r.Context()))

			t1 := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()

			var logEvent *zerolog.Event
			switch {
			case quietPaths[r.URL.Path] && status < 400:
				logEvent = logger.Debug()
			case status == http.StatusServiceUnavailable && ww.Header().Get("Retry-After") != "":
				logEvent = logger.Info()
			case status >= 500:
				logEvent = logger.Error()
			case status >= 400:
				logEvent = logger.Warn()
			default:
				logEvent = logger.Info()
			}

			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					logEvent = logEvent.Str("route", pattern)
				}
			}
			if status >= 300 && status < 400 {
				logEvent = logEvent.Str("location", ww.Header().Get("Location"))
			}

			logEvent.
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("latency", time.Since(t1)).
				Msg("Request completed")
		}

		return http.HandlerFunc(fn)
	}
}
