package main

import (
	"context"
	"encoding/json"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"activity-collector/internal/adapters/jiraapi"
	"activity-collector/internal/adapters/slackapi"
	"activity-collector/internal/adapters/snapshot"
	"activity-collector/internal/domain"
	"activity-collector/internal/infra/cache"
	"activity-collector/internal/infra/config"
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

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9091")

	store, err := snapshot.NewSQLite(cfg.Snapshots.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("collector: не открылось хранилище снимков")
	}
	defer store.Close()

	if cfg.Slack.Token == "" {
		logger.Fatal().Msg("collector: не указан токен Slack (SLACK_TOKEN)")
	}
	slackClient := slackapi.NewClient(cfg.Slack.Token, logger.With().Str("component", "slack").Logger())

	if cfg.Jira.URL == "" {
		logger.Fatal().Msg("collector: не указан адрес Jira (JIRA_URL)")
	}
	jiraClient, err := jiraapi.NewClient(jiraapi.Config{
		BaseURL:     cfg.Jira.URL,
		Username:    cfg.Jira.Username,
		Token:       cfg.Jira.Token,
		SprintField: cfg.Jira.SprintField,
	}, logger.With().Str("component", "jira").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("collector: не удалось создать jira-клиента")
	}

	if cfg.RedisAddr == "" {
		logger.Fatal().Msg("collector: не указан адрес Redis (REDIS_ADDR)")
	}
	locks := cache.NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))

	if cfg.RabbitURL == "" {
		logger.Fatal().Msg("collector: не указан адрес RabbitMQ (RABBITMQ_URL)")
	}
	collectQueue, err := queue.NewRabbitCollectQueue(cfg.RabbitURL, cfg.Queues.Collect)
	if err != nil {
		logger.Fatal().Err(err).Msg("collector: не удалось инициализировать очередь")
	}
	defer collectQueue.Close()

	service := collectusecase.NewService(store, slackClient, jiraClient, cfg.Slack.DisplayNames, cfg.Collect.ReplyWorkers, logger.With().Str("component", "collect").Logger())

	worker := &jobWorker{
		log:     logger,
		cfg:     cfg,
		queue:   collectQueue,
		locks:   locks,
		service: service,
	}

	logger.Info().Msg("collector: запуск обработки очереди")
	worker.Run(ctx)
	logger.Info().Msg("collector: остановлен")
}

type jobWorker struct {
	log     zerolog.Logger
	cfg     config.AppConfig
	queue   domain.CollectQueue
	locks   domain.Cache
	service *collectusecase.Service
}

func (w *jobWorker) Run(ctx context.Context) {
	for {
		job, ack, err := w.queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.log.Error().Err(err).Msg("collector: ошибка чтения очереди")
			time.Sleep(time.Second)
			continue
		}

		jobLog := w.log.With().
			Str("job_id", job.ID).
			Str("unit", job.UnitID).
			Bool("force", job.Force).
			Logger()

		if job.ID == "" {
			jobLog.Error().Msg("collector: получена задача без идентификатора, подтверждаем и пропускаем")
			if err := ack(true); err != nil {
				jobLog.Error().Err(err).Msg("collector: не удалось подтвердить задачу без идентификатора")
			}
			continue
		}

		w.handleJob(ctx, job, jobLog)

		if err := ack(true); err != nil {
			jobLog.Error().Err(err).Msg("collector: не удалось подтвердить задачу")
		}
	}
}

// handleJob выполняет сбор под блокировкой по юниту: одновременный сбор
// одного и того же юнита не поддерживается, второй прогон пропускается.
// Ошибка сбора не возвращает задачу в очередь — прежний снимок цел,
// следующий тик внешнего расписания повторит попытку.
func (w *jobWorker) handleJob(ctx context.Context, job domain.CollectJob, jobLog zerolog.Logger) {
	unit, ok := w.cfg.UnitByID(job.UnitID)
	if !ok {
		jobLog.Error().Msg("collector: юнит не настроен, пропускаем задачу")
		return
	}

	ran := false
	err := w.locks.Once("collect:lock:"+unit.ID, w.cfg.Collect.LockTTL, func() error {
		ran = true
		collectCtx, cancel := context.WithTimeout(ctx, w.cfg.Collect.Timeout)
		defer cancel()
		_, err := w.service.CollectUnit(collectCtx, unit, collectusecase.Options{Force: job.Force})
		return err
	})
	switch {
	case err != nil && errors.Is(err, domain.ErrUnitUnavailable):
		jobLog.Error().Err(err).Msg("collector: юнит недоступен, прежний снимок сохранён")
	case err != nil:
		jobLog.Error().Err(err).Msg("collector: сбор завершился ошибкой")
	case !ran:
		jobLog.Info().Msg("collector: сбор юнита уже идёт, задача пропущена")
	default:
		jobLog.Info().Msg("collector: задача выполнена")
	}
	if ran {
		w.recordStatus(job, unit, err, jobLog)
	}
}

// recordStatus публикует итог прогона в кэш; API отдаёт его по запросу
// статуса юнита. Пропущенный из-за блокировки прогон статус не перетирает.
func (w *jobWorker) recordStatus(job domain.CollectJob, unit domain.SourceUnit, collectErr error, jobLog zerolog.Logger) {
	status := domain.CollectStatus{
		UnitID:     unit.ID,
		JobID:      job.ID,
		OK:         collectErr == nil,
		FinishedAt: time.Now().UTC(),
	}
	if collectErr != nil {
		status.Error = collectErr.Error()
	}
	payload, err := json.Marshal(status)
	if err != nil {
		jobLog.Error().Err(err).Msg("collector: не удалось сериализовать статус сбора")
		return
	}
	if err := w.locks.Set(domain.CollectStatusKey(unit.ID), payload, w.cfg.Snapshots.MaxAge); err != nil {
		jobLog.Error().Err(err).Msg("collector: не удалось записать статус сбора")
	}
}
