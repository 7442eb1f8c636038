package webserver

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// sameOriginOnly rejects state changing requests sent by another site. The
// proxy and the login endpoints act with the stored session, so a page on
// any other origin must not be able to drive them.
func (w *Webserver) sameOriginOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		switch c.Request().Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return next(c)
		}

		if !w.trustedOrigin(c) {
			req := c.Request()
			w.logger.Warn("cross-origin request rejected",
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.String("origin", req.Header.Get("Origin")),
				zap.String("referer", req.Header.Get("Referer")),
			)
			return c.JSON(http.StatusForbidden, errorResponse{Error: "Cross-origin request rejected"})
		}

		return next(c)
	}
}

func (w *Webserver) trustedOrigin(c echo.Context) bool {
	req := c.Request()

	if origin := req.Header.Get("Origin"); origin != "" {
		return w.allowedOrigin(c, origin)
	}
	if referer := req.Header.Get("Referer"); referer != "" {
		return w.allowedOrigin(c, referer)
	}

	// no browser metadata at all: a local tool, reachable only through listen_addr
	return req.Header.Get("Sec-Fetch-Site") != "cross-site"
}

func (w *Webserver) allowedOrigin(c echo.Context, raw string) bool {
	u, err := url.Parse(raw)
	// "null" and other opaque origins have no host
	if err != nil || u.Host == "" {
		return false
	}

	if strings.EqualFold(u.Scheme, c.Scheme()) && strings.EqualFold(u.Host, c.Request().Host) {
		return true
	}

	for _, allowed := range w.conf.AllowedOrigins {
		a, err := url.Parse(allowed)
		if err == nil && strings.EqualFold(a.Scheme, u.Scheme) && strings.EqualFold(a.Host, u.Host) {
			return true
		}
	}
	return false
}
