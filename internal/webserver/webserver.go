package webserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lachlan2k/storefront-gate/internal/accesscontrol"
	"github.com/lachlan2k/storefront-gate/internal/apiclient"
	"github.com/lachlan2k/storefront-gate/internal/config"
	"github.com/lachlan2k/storefront-gate/internal/session"
)

type Webserver struct {
	echo    *echo.Echo
	conf    *config.Config
	session *session.Store
	guard   *accesscontrol.Guard
	api     *apiclient.Client
	logger  *zap.Logger
	metrics *navigationMetrics
}

func New(conf *config.Config, sess *session.Store, api *apiclient.Client, logger *zap.Logger) *Webserver {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	registry := prometheus.NewRegistry()

	w := &Webserver{
		echo:    e,
		conf:    conf,
		session: sess,
		guard:   accesscontrol.NewGuard(conf.RouteTable(), sess, conf.SigninPath),
		api:     api,
		logger:  logger,
		metrics: newNavigationMetrics(registry),
	}

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(w.requestLogger())
	e.Use(middleware.Recover())
	e.Use(w.sameOriginOnly)

	e.GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "pong")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	e.GET("/auth", w.authInfoRouteHandler)
	e.POST("/auth/login", w.loginRouteHandler)
	e.POST("/auth/logout", w.logoutRouteHandler)

	e.Any("/api/*", w.apiProxyRouteHandler)

	e.GET("/*", w.pageRouteHandler, w.navigationGuard)

	return w
}

// requestLogger writes one zap entry per request, levelled by status.
func (w *Webserver) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("ip", v.RemoteIP),
				zap.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}

			switch {
			case v.Status >= 500:
				w.logger.Error("HTTP request", fields...)
			case v.Status >= 400:
				w.logger.Warn("HTTP request", fields...)
			default:
				w.logger.Info("HTTP request", fields...)
			}
			return nil
		},
	})
}

func (w *Webserver) Handler() http.Handler {
	return w.echo
}

const shutdownTimeout = 10 * time.Second

// Run serves until ctx is cancelled, then shuts down gracefully.
func (w *Webserver) Run(ctx context.Context) error {
	addr := w.conf.ListenAddress()
	w.logger.Info("storefront gate listening", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	w.logger.Info("storefront gate shutting down")
	return w.echo.Shutdown(shutdownCtx)
}
