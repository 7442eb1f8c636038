package webserver

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/lachlan2k/storefront-gate/internal/accesscontrol"
	"github.com/lachlan2k/storefront-gate/internal/session"
)

type AuthInfoRes struct {
	Authenticated bool       `json:"authenticated"`
	Admin         bool       `json:"admin"`
	Email         string     `json:"email"`
	Role          string     `json:"role"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	Persisted     *bool      `json:"persisted,omitempty"`
}

func authInfo(data session.SessionData) AuthInfoRes {
	res := AuthInfoRes{
		Authenticated: data.IsAuthenticated(),
		Admin:         data.IsAdmin(),
		Email:         data.Email,
		Role:          data.Role,
	}

	if info, err := session.Inspect(data.Token); err == nil && !info.ExpiresAt.IsZero() {
		res.ExpiresAt = &info.ExpiresAt
	}

	return res
}

func (w *Webserver) authInfoRouteHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, authInfo(w.session.Snapshot()))
}

type loginReq struct {
	Token    string `json:"token" form:"token"`
	Role     string `json:"role" form:"role"`
	Email    string `json:"email" form:"email"`
	Redirect string `json:"redir" form:"redir" query:"redir"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// loginRouteHandler stores a session the backend already issued.
func (w *Webserver) loginRouteHandler(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid login request"})
	}

	persisted := true
	err := w.session.Login(c.Request().Context(), req.Token, req.Role, req.Email)
	if err != nil {
		if !errors.Is(err, session.ErrPersist) {
			w.logger.Error("unexpected login failure", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Couldn't log you in"})
		}
		// the session is live in memory, it just won't survive a restart
		persisted = false
	}

	if accesscontrol.SafeRedirect(req.Redirect) {
		return c.Redirect(http.StatusFound, req.Redirect)
	}

	res := authInfo(w.session.Snapshot())
	res.Persisted = &persisted
	return c.JSON(http.StatusOK, res)
}

func (w *Webserver) logoutRouteHandler(c echo.Context) error {
	if err := w.session.Logout(c.Request().Context()); err != nil {
		w.logger.Warn("logout wasn't persisted", zap.Error(err))
	}
	return c.String(http.StatusOK, "")
}

type pageRes struct {
	Route   string            `json:"route"`
	Pattern string            `json:"pattern"`
	Access  string            `json:"access"`
	Params  map[string]string `json:"params"`
}

// pageRouteHandler answers allowed navigations with the route they resolved
// to; rendering the page is the client's job.
func (w *Webserver) pageRouteHandler(c echo.Context) error {
	m, ok := matchFromContext(c)
	if !ok {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "Not found"})
	}

	return c.JSON(http.StatusOK, pageRes{
		Route:   m.Route.Name,
		Pattern: m.Route.Pattern,
		Access:  m.Route.Access.String(),
		Params:  m.Params,
	})
}

// Request headers worth passing on to the API. Authorization is not one of
// them, the session decides it.
var forwardedHeaders = []string{"Accept", "Accept-Language", "Content-Type", "X-Request-Id"}

func (w *Webserver) apiProxyRouteHandler(c echo.Context) error {
	req := c.Request()

	path := "/" + c.Param("*")
	if req.URL.RawQuery != "" {
		path += "?" + req.URL.RawQuery
	}

	header := http.Header{}
	for _, h := range forwardedHeaders {
		if v := req.Header.Get(h); v != "" {
			header.Set(h, v)
		}
	}

	res, err := w.api.Fetch(req.Context(), req.Method, path, req.Body, header)
	if err != nil {
		w.logger.Warn("api request failed", zap.String("path", path), zap.Error(err))
		return c.JSON(http.StatusBadGateway, errorResponse{Error: "Storefront API unreachable"})
	}
	defer res.Body.Close()

	for k, vals := range res.Header {
		if strings.EqualFold(k, "Content-Length") {
			continue
		}
		for _, v := range vals {
			c.Response().Header().Add(k, v)
		}
	}
	c.Response().WriteHeader(res.StatusCode)

	_, err = io.Copy(c.Response(), res.Body)
	return err
}
