package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"activity-collector/internal/adapters/jiraapi"
	"activity-collector/internal/adapters/slackapi"
	"activity-collector/internal/adapters/snapshot"
	"activity-collector/internal/domain"
	"activity-collector/internal/infra/cache"
	"activity-collector/internal/infra/config"
	httpinfra "activity-collector/internal/infra/http"
	applog "activity-collector/internal/infra/log"
	"activity-collector/internal/infra/metrics"
	"activity-collector/internal/infra/queue"
	collectusecase "activity-collector/internal/usecase/collect"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9090")

	store, err := snapshot.NewSQLite(cfg.Snapshots.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: не открылось хранилище снимков")
	}
	defer store.Close()

	if cfg.Slack.Token == "" {
		logger.Fatal().Msg("api: не указан токен Slack (SLACK_TOKEN)")
	}
	slackClient := slackapi.NewClient(cfg.Slack.Token, logger.With().Str("component", "slack").Logger())

	if cfg.Jira.URL == "" {
		logger.Fatal().Msg("api: не указан адрес Jira (JIRA_URL)")
	}
	jiraClient, err := jiraapi.NewClient(jiraapi.Config{
		BaseURL:     cfg.Jira.URL,
		Username:    cfg.Jira.Username,
		Token:       cfg.Jira.Token,
		SprintField: cfg.Jira.SprintField,
	}, logger.With().Str("component", "jira").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("api: не удалось создать jira-клиента")
	}

	if cfg.RedisAddr == "" {
		logger.Fatal().Msg("api: не указан адрес Redis (REDIS_ADDR)")
	}
	locks := cache.NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))

	if cfg.RabbitURL == "" {
		logger.Fatal().Msg("api: не указан адрес RabbitMQ (RABBITMQ_URL)")
	}
	collectQueue, err := queue.NewRabbitCollectQueue(cfg.RabbitURL, cfg.Queues.Collect)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: не удалось инициализировать очередь")
	}
	defer collectQueue.Close()

	service := collectusecase.NewService(store, slackClient, jiraClient, cfg.Slack.DisplayNames, cfg.Collect.ReplyWorkers, logger.With().Str("component", "collect").Logger())

	server := httpinfra.NewServer(logger.With().Str("component", "http").Logger())
	registerRoutes(server.Router, cfg, service, store, locks, collectQueue)

	go func() {
		if err := server.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("api: HTTP сервер остановился")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: graceful shutdown не удался")
	}
	logger.Info().Msg("api: остановлен")
}

func registerRoutes(r chi.Router, cfg config.AppConfig, service *collectusecase.Service, store domain.SnapshotStore, locks domain.Cache, collectQueue domain.CollectQueue) {
	r.Get("/api/v1/units", func(w http.ResponseWriter, req *http.Request) {
		httpinfra.WriteJSON(w, http.StatusOK, cfg.Units())
	})

	r.Get("/api/v1/snapshots/{unitID}", func(w http.ResponseWriter, req *http.Request) {
		unitID := chi.URLParam(req, "unitID")
		snap, err := store.Get(req.Context(), unitID)
		if errors.Is(err, domain.ErrSnapshotNotFound) {
			httpinfra.WriteError(w, http.StatusNotFound, "снимок ещё не собран")
			return
		}
		if err != nil {
			httpinfra.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		httpinfra.WriteJSON(w, http.StatusOK, snap)
	})

	r.Post("/api/v1/collect/{unitID}", func(w http.ResponseWriter, req *http.Request) {
		unitID := chi.URLParam(req, "unitID")
		unit, ok := cfg.UnitByID(unitID)
		if !ok {
			httpinfra.WriteError(w, http.StatusNotFound, "юнит не настроен")
			return
		}
		opts := collectusecase.Options{Force: req.URL.Query().Get("force") == "1"}

		var (
			snap domain.Snapshot
			ran  bool
		)
		lockErr := locks.Once("collect:lock:"+unit.ID, cfg.Collect.LockTTL, func() error {
			ran = true
			collectCtx, cancel := context.WithTimeout(req.Context(), cfg.Collect.Timeout)
			defer cancel()
			var err error
			snap, err = service.CollectUnit(collectCtx, unit, opts)
			return err
		})
		if !ran && lockErr == nil {
			httpinfra.WriteError(w, http.StatusConflict, "сбор юнита уже идёт")
			return
		}
		if lockErr != nil {
			status := http.StatusBadGateway
			if errors.Is(lockErr, domain.ErrUnitUnavailable) {
				status = http.StatusFailedDependency
			}
			httpinfra.WriteError(w, status, lockErr.Error())
			return
		}
		httpinfra.WriteJSON(w, http.StatusOK, snap)
	})

	r.Get("/api/v1/teams/{team}/snapshots", func(w http.ResponseWriter, req *http.Request) {
		team := chi.URLParam(req, "team")
		units := cfg.UnitsForTeam(team)
		if len(units) == 0 {
			httpinfra.WriteError(w, http.StatusNotFound, "команда не настроена")
			return
		}
		snaps := make([]domain.Snapshot, 0, len(units))
		missing := make([]string, 0)
		for _, unit := range units {
			snap, err := store.Get(req.Context(), unit.ID)
			if errors.Is(err, domain.ErrSnapshotNotFound) {
				missing = append(missing, unit.ID)
				continue
			}
			if err != nil {
				httpinfra.WriteError(w, http.StatusInternalServerError, err.Error())
				return
			}
			snaps = append(snaps, snap)
		}
		httpinfra.WriteJSON(w, http.StatusOK, map[string]any{
			"team":      team,
			"snapshots": snaps,
			"missing":   missing,
		})
	})

	r.Get("/api/v1/collect/{unitID}/status", func(w http.ResponseWriter, req *http.Request) {
		unitID := chi.URLParam(req, "unitID")
		if _, ok := cfg.UnitByID(unitID); !ok {
			httpinfra.WriteError(w, http.StatusNotFound, "юнит не настроен")
			return
		}
		body, err := locks.Get(domain.CollectStatusKey(unitID))
		if err != nil || len(body) == 0 {
			httpinfra.WriteError(w, http.StatusNotFound, "статус сбора ещё не записан")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	})

	// Сбор целиком или по одной команде (?team=), как группируются юниты
	// в конфиге.
	r.Post("/api/v1/collect", func(w http.ResponseWriter, req *http.Request) {
		force := req.URL.Query().Get("force") == "1"
		units := cfg.Units()
		if team := req.URL.Query().Get("team"); team != "" {
			units = cfg.UnitsForTeam(team)
			if len(units) == 0 {
				httpinfra.WriteError(w, http.StatusNotFound, "команда не настроена")
				return
			}
		}
		jobs := make([]domain.CollectJob, 0, len(units))
		for _, unit := range units {
			job := domain.CollectJob{
				ID:         uuid.NewString(),
				UnitID:     unit.ID,
				Force:      force,
				EnqueuedAt: time.Now().UTC(),
			}
			if err := collectQueue.Enqueue(req.Context(), job); err != nil {
				httpinfra.WriteError(w, http.StatusBadGateway, err.Error())
				return
			}
			jobs = append(jobs, job)
		}
		httpinfra.WriteJSON(w, http.StatusAccepted, map[string]any{"enqueued": len(jobs), "jobs": jobs})
	})
}
