package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	CollectDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "collect_duration_seconds",
		Help:    "Время сбора одного юнита",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	CollectErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "collect_errors_total",
		Help: "Фатальные ошибки сбора юнитов",
	}, []string{"kind"})

	PartialFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "collect_partial_failures_total",
		Help: "Частичные сбои под-операций при сборе",
	})

	SnapshotReuse = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snapshot_reuse_total",
		Help: "Сколько раз свежий снимок вернулся без обращения к источнику",
	})

	SnapshotRefetch = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snapshot_refetch_total",
		Help: "Сколько раз снимок пересобирался из источника",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		CollectDuration,
		CollectErrors,
		PartialFailures,
		SnapshotReuse,
		SnapshotRefetch,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// ObserveNetworkRequest фиксирует длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	status := strconv.FormatBool(err == nil)
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(time.Since(start).Seconds())
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
	}()
}
