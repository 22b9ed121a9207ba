package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"reflect"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/kdlocator/featureflag"
	kdhttp "github.com/aukilabs/kdlocator/http"
	"github.com/aukilabs/kdlocator/models"
	"github.com/aukilabs/kdlocator/smoketest"
	kdwebsocket "github.com/aukilabs/kdlocator/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The kdlocator version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "kdlocator_info",
		Help:        "kdlocator information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string          `cli:""        env:"KDLOCATOR_ADDR"                 help:"Listening address for API and stream connections."`
	AdminAddr          string          `cli:""        env:"KDLOCATOR_ADMIN_ADDR"           help:"Admin listening address."`
	APIKey             string          `cli:""        env:"KDLOCATOR_API_KEY"              help:"Bearer token required by the API and the stream. Empty disables the check."`
	LogLevel           string          `cli:""        env:"KDLOCATOR_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool            `cli:""        env:"KDLOCATOR_LOG_INDENT"           help:"Indent logs."`
	LogSummaryInterval time.Duration   `cli:",hidden" env:"KDLOCATOR_LOG_SUMMARY_INTERVAL" help:"The duration between each log summary by stream connection."`
	StreamIdleTimeout  time.Duration   `cli:",hidden" env:"KDLOCATOR_STREAM_IDLE_TIMEOUT"  help:"Time until an idle stream client is disconnected."`
	MaxPoints          int             `cli:""        env:"KDLOCATOR_MAX_POINTS"           help:"The maximum number of points or cells of an index."`
	MinCells           int             `cli:""        env:"KDLOCATOR_MIN_CELLS"            help:"The default number of points or cells per region."`
	MaxLevel           int             `cli:""        env:"KDLOCATOR_MAX_LEVEL"            help:"The default maximum depth of an index."`
	StartupSmokeTest   bool            `cli:",hidden" env:"KDLOCATOR_STARTUP_SMOKE_TEST"   help:"Run a smoke test before reporting ready."`
	Events             eventsConfig    `cli:",hidden" env:"-"                              help:"Event pusher configuration."`
	FeatureFlags       []string        `cli:",hidden" env:"KDLOCATOR_FEATURE_FLAGS"        help:"Comma separated feature flags"`
	Version            bool            `cli:""        env:"-"                              help:"Show version."`
	Help               bool            `cli:""        env:"-"                              help:"Show help."`
	Smoke              smoketestConfig `cli:",hidden" env:"-"                              help:"Smoke test configuration."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"KDLOCATOR_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed. Empty disables event pushing."`
	FlushInterval time.Duration `cli:",hidden" env:"KDLOCATOR_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"KDLOCATOR_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"KDLOCATOR_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

type smoketestConfig struct {
	Points  int           `cli:",hidden" env:"KDLOCATOR_SMOKE_TEST_POINTS"  help:"The number of random points of a smoke test."`
	Queries int           `cli:",hidden" env:"KDLOCATOR_SMOKE_TEST_QUERIES" help:"The number of queries checked by a smoke test."`
	Timeout time.Duration `cli:",hidden" env:"KDLOCATOR_SMOKE_TEST_TIMEOUT" help:"The maximum duration of a smoke test."`
}

func main() {
	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		LogLevel:           logs.InfoLevel.String(),
		LogSummaryInterval: time.Minute,
		StreamIdleTimeout:  time.Minute * 5,
		MaxPoints:          10000000,
		MinCells:           100,
		MaxLevel:           20,
		StartupSmokeTest:   true,
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
		Smoke: smoketestConfig{
			Points:  10000,
			Queries: 200,
			Timeout: time.Second * 30,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts kdlocator server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     metrics.HTTPTransport(http.DefaultTransport),
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "kdlocator",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	flags := featureflag.New(conf.FeatureFlags)
	for _, f := range flags.Unknown() {
		logs.Warn(errors.New("unknown feature flag").WithTag("flag", f))
	}

	var indexes models.IndexStore
	var clientIDs models.SequentialIDGenerator

	smokeOptions := smoketest.Options{
		Points:  conf.Smoke.Points,
		Queries: conf.Smoke.Queries,
		Timeout: conf.Smoke.Timeout,
	}

	var ready atomic.Bool
	readinessCheck := func() bool {
		return ready.Load()
	}

	var service http.ServeMux

	api := kdhttp.API{
		Store: &indexes,
		Flags: flags,
		Defaults: kdhttp.Defaults{
			MinCells:  conf.MinCells,
			MaxLevel:  conf.MaxLevel,
			MaxPoints: conf.MaxPoints,
		},
	}
	var apiMux http.ServeMux
	api.Register(&apiMux)
	service.Handle("/indexes", kdhttp.HandleWithCORS(kdhttp.VerifyAuthTokenHandler(conf.APIKey, &apiMux)))
	service.Handle("/indexes/", kdhttp.HandleWithCORS(kdhttp.VerifyAuthTokenHandler(conf.APIKey, &apiMux)))

	service.Handle("/health", kdhttp.HandleWithCORS(http.HandlerFunc(kdhttp.HandleHealthCheck)))
	service.Handle("/version", kdhttp.HandleWithCORS(kdhttp.HandleVersion(version, conf.FeatureFlags)))
	service.Handle("/ready", kdhttp.HandleWithCORS(kdhttp.HandleReadyCheck(readinessCheck)))
	service.Handle("/smoke-test", kdhttp.VerifyAuthTokenHandler(conf.APIKey, smoketest.HandleSmokeTest(ctx, smokeOptions)))

	flags.IfNotSet(featureflag.FlagDisableStream, func() {
		service.Handle("/stream", websocket.Server{
			Handshake: kdhttp.VerifyAuthToken(conf.APIKey),
			Handler: func(conn *websocket.Conn) {
				defer conn.Close()

				var h kdwebsocket.Handler = &kdwebsocket.QueryHandler{
					Store:             &indexes,
					ClientIDs:         &clientIDs,
					ClientIdleTimeout: conf.StreamIdleTimeout,
				}
				h = kdwebsocket.HandlerWithLogs(h, conf.LogSummaryInterval)
				h = kdwebsocket.HandlerWithMetrics(h, conf.Addr)
				defer h.Close()

				kdwebsocket.Handle(ctx, conn, h)
			},
		})
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", kdhttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", kdhttp.HandleReadyCheck(readinessCheck))

	go func() {
		if !conf.StartupSmokeTest {
			ready.Store(true)
			return
		}

		res, err := smoketest.Run(ctx, smokeOptions)
		if err != nil {
			logs.Error(errors.New("startup smoke test failed").
				WithTag("seed", res.Seed).
				Wrap(err))
			return
		}

		logs.WithTag("seed", res.Seed).
			WithTag("points", res.Points).
			WithTag("regions", res.Regions).
			WithTag("build_ms", res.BuildMilliSec).
			Info("startup smoke test succeeded")
		ready.Store(true)
	}()

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("addr", conf.Addr).
		WithTag("feature_flags", conf.FeatureFlags).
		Info("starting kdlocator server")

	err := kdhttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			kdhttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
	if err != nil {
		logs.Fatal(errors.New("serving failed").Wrap(err))
	}
}

func validateConfig(conf config) error {
	if conf.MinCells < 1 {
		return errors.New("min cells must be positive").
			WithTag("min_cells", conf.MinCells)
	}

	if conf.MaxLevel < 0 {
		return errors.New("max level must not be negative").
			WithTag("max_level", conf.MaxLevel)
	}

	if conf.MaxPoints < 1 {
		return errors.New("max points must be positive").
			WithTag("max_points", conf.MaxPoints)
	}

	if conf.StreamIdleTimeout <= 0 {
		return errors.New("stream idle timeout must be positive").
			WithTag("stream_idle_timeout", conf.StreamIdleTimeout)
	}

	return nil
}
