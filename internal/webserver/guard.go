package webserver

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/lachlan2k/storefront-gate/internal/routes"
)

const matchContextKey = "storefront.route"

// navigationGuard runs every page load through the access control decision.
// Redirects carry the original location in ?redir= so sign-in can send the
// visitor back.
func (w *Webserver) navigationGuard(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		target := c.Request().URL.RequestURI()

		// the route table unescapes params itself, hand it the raw path
		decision, match := w.guard.Navigate(c.Request().URL.EscapedPath())
		w.metrics.observe(decision)

		if !decision.Allowed() {
			w.logger.Debug("navigation redirected",
				zap.String("target", target),
				zap.String("location", decision.Location),
			)
			return c.Redirect(http.StatusFound, decision.Location+"?redir="+url.QueryEscape(target))
		}

		if match != nil {
			c.Set(matchContextKey, match)
		}
		return next(c)
	}
}

func matchFromContext(c echo.Context) (*routes.Match, bool) {
	m, ok := c.Get(matchContextKey).(*routes.Match)
	return m, ok
}
