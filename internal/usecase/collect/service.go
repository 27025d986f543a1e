// Package collect реализует сбор юнитов в снимки с проверкой свежести.
package collect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"activity-collector/internal/domain"
	"activity-collector/internal/infra/metrics"
	"activity-collector/internal/usecase/sprint"
	"activity-collector/internal/usecase/stitch"
)

// ErrUnknownUnitKind возвращается для юнита с ненастроенным типом источника.
var ErrUnknownUnitKind = errors.New("неизвестный тип юнита")

// Options управляют одним прогоном сбора.
type Options struct {
	// Force пересобирает снимок, минуя проверку свежести.
	Force bool
}

// UnitResult — итог сбора одного юнита при групповом прогоне.
type UnitResult struct {
	Unit     domain.SourceUnit
	Snapshot domain.Snapshot
	Err      error
}

// Service реализует сбор данных источников в снимки.
type Service struct {
	store        domain.SnapshotStore
	channels     domain.ChannelSource
	tickets      domain.TicketSource
	displayNames map[string]string
	replyWorkers int
	log          zerolog.Logger
	now          func() time.Time
}

// NewService создаёт сервис сбора.
func NewService(store domain.SnapshotStore, channels domain.ChannelSource, tickets domain.TicketSource, displayNames map[string]string, replyWorkers int, log zerolog.Logger) *Service {
	return &Service{
		store:        store,
		channels:     channels,
		tickets:      tickets,
		displayNames: displayNames,
		replyWorkers: replyWorkers,
		log:          log,
		now:          time.Now,
	}
}

// IsFresh сообщает, годен ли снимок к повторному использованию.
// Равенство возраста и лимита считается устареванием.
func IsFresh(fetchedAt, now time.Time, maxAge time.Duration) bool {
	return now.Sub(fetchedAt) < maxAge
}

// CollectUnit выполняет один прогон по юниту: свежий снимок возвращается
// из хранилища без обращения к источнику, устаревший или отсутствующий
// пересобирается и замещается целиком. При ошибке источника прежний
// снимок остаётся нетронутым, ошибка поднимается вызывающему.
func (s *Service) CollectUnit(ctx context.Context, unit domain.SourceUnit, opts Options) (domain.Snapshot, error) {
	if !opts.Force {
		stored, err := s.store.Get(ctx, unit.ID)
		switch {
		case err == nil && IsFresh(stored.FetchedAt, s.now(), unit.MaxAge):
			metrics.SnapshotReuse.Inc()
			s.log.Debug().Str("unit", unit.ID).Time("fetched_at", stored.FetchedAt).Msg("collect: снимок свежий, используем из хранилища")
			return stored, nil
		case err != nil && !errors.Is(err, domain.ErrSnapshotNotFound):
			return domain.Snapshot{}, fmt.Errorf("чтение снимка %s: %w", unit.ID, err)
		}
	}

	metrics.SnapshotRefetch.Inc()
	start := time.Now()

	var (
		snapshot domain.Snapshot
		err      error
	)
	switch unit.Kind {
	case domain.UnitChannel:
		snapshot, err = s.collectChannel(ctx, unit)
	case domain.UnitTickets:
		snapshot, err = s.collectTickets(ctx, unit)
	default:
		return domain.Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownUnitKind, unit.Kind)
	}
	metrics.CollectDuration.WithLabelValues(string(unit.Kind)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CollectErrors.WithLabelValues(string(unit.Kind)).Inc()
		return domain.Snapshot{}, err
	}
	// Единица атомарности — снимок юнита целиком: прерванный прогон
	// не оставляет в хранилище частичных результатов.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.Snapshot{}, fmt.Errorf("сбор %s прерван: %w", unit.ID, ctxErr)
	}
	if err := s.store.Put(ctx, snapshot); err != nil {
		return domain.Snapshot{}, fmt.Errorf("сохранение снимка %s: %w", unit.ID, err)
	}
	s.log.Info().
		Str("unit", unit.ID).
		Int("partial_failures", len(snapshot.PartialFailures)).
		Msg("collect: снимок пересобран")
	return snapshot, nil
}

// CollectAll собирает независимые юниты параллельно, не более workers
// одновременно. Результаты возвращаются в порядке входного списка.
func (s *Service) CollectAll(ctx context.Context, units []domain.SourceUnit, workers int, opts Options) []UnitResult {
	if workers < 1 {
		workers = 1
	}
	results := make([]UnitResult, len(units))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, unit := range units {
		wg.Add(1)
		go func(i int, unit domain.SourceUnit) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			snapshot, err := s.CollectUnit(ctx, unit, opts)
			results[i] = UnitResult{Unit: unit, Snapshot: snapshot, Err: err}
		}(i, unit)
	}
	wg.Wait()
	return results
}

func (s *Service) collectChannel(ctx context.Context, unit domain.SourceUnit) (domain.Snapshot, error) {
	topLevel, err := s.channels.ListTopLevel(ctx, unit.ChannelID)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("выгрузка канала %s: %w", unit.ChannelID, err)
	}

	result := stitch.Flatten(ctx, topLevel, func(ctx context.Context, parent domain.Message) ([]domain.Message, error) {
		return s.channels.ListReplies(ctx, unit.ChannelID, parent.ID)
	}, s.replyWorkers)

	for i := range result.Messages {
		result.Messages[i].CleanText = stitch.CleanText(result.Messages[i].Text, s.displayNames)
	}
	for _, failure := range result.Failures {
		metrics.PartialFailures.Inc()
		s.log.Warn().
			Str("unit", unit.ID).
			Str("message", failure.ItemID).
			Str("reason", failure.Reason).
			Msg("collect: тред не выгружен, поток продолжен")
	}

	return domain.Snapshot{
		UnitID:    unit.ID,
		FetchedAt: s.now(),
		Channel: &domain.ChannelPayload{
			ChannelID: unit.ChannelID,
			Messages:  result.Messages,
		},
		PartialFailures: result.Failures,
	}, nil
}

func (s *Service) collectTickets(ctx context.Context, unit domain.SourceUnit) (domain.Snapshot, error) {
	tickets, jql, err := s.tickets.Query(ctx, unit.Query)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("запрос тикетов %s: %w", unit.ID, err)
	}

	filtered, chosen := sprint.LatestActiveSprint(tickets)
	summary := sprint.Summarize(tickets)
	if chosen == nil {
		s.log.Debug().Str("unit", unit.ID).Msg("collect: активный спринт не найден, набор не фильтруем")
	}

	return domain.Snapshot{
		UnitID:    unit.ID,
		FetchedAt: s.now(),
		Tickets: &domain.TicketPayload{
			JQL:     jql,
			Tickets: filtered,
			Sprint:  chosen,
			Summary: summary,
		},
	}, nil
}
