package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	xrate "golang.org/x/time/rate"

	"github.com/code-payments/phonelist-server/pkg/app"
	"github.com/code-payments/phonelist-server/pkg/phonelist"
	"github.com/code-payments/phonelist-server/pkg/phonelist/server/web"
	"github.com/code-payments/phonelist-server/pkg/rate"
)

const storeInitTimeout = 30 * time.Second

type phoneListApp struct {
	log  *logrus.Entry
	conf *conf

	handler    http.Handler
	closeStore func()

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

func newPhoneListApp(configProvider ConfigProvider) *phoneListApp {
	return &phoneListApp{
		log:        logrus.StandardLogger().WithField("type", "phonelist/app"),
		conf:       configProvider(),
		closeStore: func() {},
		shutdownCh: make(chan struct{}),
	}
}

// Init implements app.App.Init
func (a *phoneListApp) Init(_ app.Config, metricsProvider *newrelic.Application) error {
	ctx, cancel := context.WithTimeout(context.Background(), storeInitTimeout)
	defer cancel()

	driver := a.conf.storeDriver.Get(ctx)

	store, closeStore, err := newStore(ctx, a.conf)
	if err != nil {
		return errors.Wrapf(err, "error initializing %s document store", driver)
	}
	a.closeStore = closeStore

	service := phonelist.NewService(store, phonelist.WithEnvConfigs())
	a.handler = web.NewRouter(web.NewServer(service), a.newLimiter(ctx), metricsProvider)

	a.log.WithField("driver", driver).Info("phone list service initialized")
	return nil
}

func (a *phoneListApp) newLimiter(ctx context.Context) rate.Limiter {
	perSecond := a.conf.rateLimitPerSecond.Get(ctx)
	if perSecond <= 0 {
		return &rate.NoLimiter{}
	}
	return rate.NewLocalRateLimiter(xrate.Limit(perSecond), int(a.conf.rateLimitBurst.Get(ctx)))
}

// serverOptions returns the middleware applied ahead of the router. Behind a
// trusted proxy the client address comes from X-Forwarded-For or X-Real-IP, so
// rate limits apply per end client rather than per proxy.
func (a *phoneListApp) serverOptions() []app.Option {
	var options []app.Option
	if a.conf.trustProxyHeaders.Get(context.Background()) {
		options = append(options, app.WithMiddleware(middleware.RealIP))
	}
	return options
}

// Handler implements app.App.Handler
func (a *phoneListApp) Handler() http.Handler {
	return a.handler
}

// ShutdownChan implements app.App.ShutdownChan
func (a *phoneListApp) ShutdownChan() <-chan struct{} {
	return a.shutdownCh
}

// Stop implements app.App.Stop
func (a *phoneListApp) Stop() {
	a.shutdownOnce.Do(func() {
		a.closeStore()
		close(a.shutdownCh)
	})
}
