package app

import (
	"context"
	"crypto/tls"
	"expvar"
	"flag"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/phonelist-server/pkg/metrics"
	"github.com/code-payments/phonelist-server/pkg/osutil"
)

const (
	readHeaderTimeout  = 10 * time.Second
	debugRestartPeriod = 5 * time.Second
)

// App is a long lived application that services HTTP requests.
//
// Init is called before the HTTP server starts accepting connections, and Stop
// is called once it has stopped serving.
type App interface {
	// Init initializes the application. When Init returns, the application must
	// be ready to serve requests.
	Init(config Config, metricsProvider *newrelic.Application) error

	// Handler returns the HTTP handler served on the listen address
	Handler() http.Handler

	// ShutdownChan returns a channel that is closed when the application wants
	// the process to exit.
	ShutdownChan() <-chan struct{}

	// Stop releases the application's resources. It must be idempotent.
	Stop()
}

var (
	configPath = flag.String("config", "config.yaml", "configuration file path")

	osSigCh = make(chan os.Signal, 1)
)

func init() {
	signal.Notify(osSigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
}

// Run loads the base config, initializes app and serves its handler until the
// process is signalled, the server fails, or the app shuts itself down.
// Startup failures exit the process.
func Run(app App, options ...Option) error {
	flag.Parse()

	log := logrus.StandardLogger().WithField("type", "app")

	config, err := LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("failed to load config")
		os.Exit(1)
	}

	metricsProvider, err := newMetricsProvider(*config)
	if err != nil {
		log.WithError(err).Error("error connecting to new relic")
		os.Exit(1)
	}

	configureLogger(*config, metricsProvider)
	metrics.RegisterPrometheusCollectors()

	// pprof and expvar install themselves on the default mux, which must never
	// be reachable from the public listener
	http.DefaultServeMux = http.NewServeMux()
	if config.EnableExpvar || config.EnablePprof {
		go serveDebug(log, *config)
	}

	var ballast []byte
	if config.EnableBallast {
		ballast = make([]byte, ballastSize(config.BallastCapacity, osutil.GetTotalMemory()))
	}

	leakCh, stopCron, err := startMemoryLeakCron(*config)
	if err != nil {
		log.WithError(err).Error("failed to initialize memory leak cron")
		os.Exit(1)
	}
	defer stopCron()

	lis, err := listen(*config)
	if err != nil {
		log.WithError(err).Errorf("failed to listen on %s", config.ListenAddress)
		os.Exit(1)
	}

	if err := app.Init(config.AppConfig, metricsProvider); err != nil {
		log.WithError(err).Error("failed to initialize application")
		os.Exit(1)
	}

	var opts opts
	for _, o := range options {
		o(&opts)
	}

	server := &http.Server{
		Handler:           opts.wrap(app.Handler()),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serverDoneCh := make(chan struct{})
	go func() {
		defer close(serverDoneCh)

		if err := server.Serve(lis); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http serve stopped")
			return
		}
		log.Info("http server stopped")
	}()

	log.WithField("address", config.ListenAddress).Info("http server started")

	select {
	case <-osSigCh:
		log.Info("interrupt received, shutting down")
	case <-serverDoneCh:
		log.Info("http server shutdown")
	case <-leakCh:
		log.Info("shutdown to deal with memory leak")
	case <-app.ShutdownChan():
		log.Info("app shutdown")
	}

	err = shutdown(log, *config, server, app, metricsProvider)

	// Keeps the ballast reachable until exit
	if len(ballast) > 0 {
		ballast[0] = 1
	}
	return err
}

func newMetricsProvider(config BaseConfig) (*newrelic.Application, error) {
	if len(config.NewRelicLicenseKey) == 0 {
		return nil, nil
	}

	return newrelic.NewApplication(
		newrelic.ConfigFromEnvironment(),
		newrelic.ConfigAppName(config.AppName),
		newrelic.ConfigLicense(config.NewRelicLicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
		newrelic.ConfigAppLogForwardingEnabled(true),
	)
}

func serveDebug(log *logrus.Entry, config BaseConfig) {
	mux := newDebugMux(config)
	for {
		if err := http.ListenAndServe(config.DebugListenAddress, mux); err != nil {
			log.WithError(err).Warnf("debug http server failed, retrying in %v", debugRestartPeriod)
		}
		time.Sleep(debugRestartPeriod)
	}
}

func newDebugMux(config BaseConfig) *http.ServeMux {
	mux := http.NewServeMux()
	if config.EnableExpvar {
		mux.Handle("/debug/vars", expvar.Handler())
	}
	if config.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}

// startMemoryLeakCron returns a channel closed on the configured schedule. The
// channel is never closed when the cron is disabled.
func startMemoryLeakCron(config BaseConfig) (<-chan struct{}, func(), error) {
	ch := make(chan struct{})
	if !config.EnableMemoryLeakCron {
		return ch, func() {}, nil
	}

	c := cron.New(cron.WithLocation(time.Local))
	_, err := c.AddFunc(config.MemoryLeakCronSchedule, func() {
		select {
		case <-ch:
		default:
			close(ch)
		}
	})
	if err != nil {
		return nil, nil, errors.Wrapf(err, "invalid schedule %q", config.MemoryLeakCronSchedule)
	}

	c.Start()
	return ch, func() { c.Stop() }, nil
}

func listen(config BaseConfig) (net.Listener, error) {
	tlsConfig, err := loadTLSConfig(config)
	if err != nil {
		return nil, err
	}

	lis, err := net.Listen("tcp", config.ListenAddress)
	if err != nil {
		return nil, err
	}

	if tlsConfig != nil {
		lis = tls.NewListener(lis, tlsConfig)
	}
	return lis, nil
}

// shutdown stops the server and the app within the grace period. Both are
// idempotent, so they're stopped regardless of what triggered the shutdown.
func shutdown(log *logrus.Entry, config BaseConfig, server *http.Server, app App, metricsProvider *newrelic.Application) error {
	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownGracePeriod)
	defer cancel()

	doneCh := make(chan struct{})
	go func() {
		defer close(doneCh)

		if err := server.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("failure gracefully shutting down http server")
		}
		app.Stop()

		if metricsProvider != nil {
			metricsProvider.Shutdown(config.ShutdownGracePeriod)
		}
	}()

	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return errors.Errorf("failed to stop the application within %v", config.ShutdownGracePeriod)
	}
}

// ballastSize caps the capacity at half of the total memory
func ballastSize(capacity float32, totalMemory uint64) uint64 {
	if capacity > 0.5 {
		capacity = 0.5
	}
	if capacity < 0 {
		capacity = 0
	}
	return uint64(capacity * float32(totalMemory))
}

func loadTLSConfig(config BaseConfig) (*tls.Config, error) {
	if len(config.TLSCertificate) == 0 {
		return nil, nil
	}

	if len(config.TLSKey) == 0 {
		return nil, errors.New("tls key must be provided if certificate is specified")
	}

	certBytes, err := LoadFile(config.TLSCertificate)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load tls certificate")
	}

	keyBytes, err := LoadFile(config.TLSKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load tls key")
	}

	cert, err := tls.X509KeyPair(certBytes, keyBytes)
	if err != nil {
		return nil, errors.Wrap(err, "invalid certificate/private key")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func configureLogger(config BaseConfig, metricsProvider *newrelic.Application) {
	var formatter logrus.Formatter = &logrus.JSONFormatter{}
	if metricsProvider != nil {
		formatter = metrics.NewCustomNewRelicLogFormatter(metricsProvider, formatter)
	}
	logrus.SetFormatter(formatter)

	level, err := logrus.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil {
		logrus.StandardLogger().WithField("log_level", config.LogLevel).Warn("unknown log level, ignoring")
	} else {
		logrus.SetLevel(level)
	}

	logrus.SetOutput(os.Stdout)
}
