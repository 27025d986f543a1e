package domain

import (
	"context"
	"errors"
	"time"
)

// ErrSnapshotNotFound возвращается хранилищем, если снимка для юнита ещё нет.
var ErrSnapshotNotFound = errors.New("снимок не найден")

// ErrUnitUnavailable означает, что юнит целиком недоступен у источника:
// канал не найден, команда не существует, запрос отклонён.
var ErrUnitUnavailable = errors.New("юнит недоступен у источника")

// ChannelSource выгружает сообщения канала у внешнего API.
type ChannelSource interface {
	// ListTopLevel возвращает верхнеуровневые сообщения канала
	// в хронологическом порядке.
	ListTopLevel(ctx context.Context, channelID string) ([]Message, error)
	// ListReplies возвращает сообщения треда в порядке, который отдаёт
	// источник: первым элементом всегда идёт дубликат родителя.
	ListReplies(ctx context.Context, channelID, parentID string) ([]Message, error)
}

// TicketSource выполняет запрос тикетов у трекера.
type TicketSource interface {
	Query(ctx context.Context, query TicketQuery) ([]Ticket, string, error)
}

// SnapshotStore — дисковое хранилище снимков, ключ — идентификатор юнита.
// Запись замещает предыдущий снимок целиком (last-writer-wins).
type SnapshotStore interface {
	Get(ctx context.Context, unitID string) (Snapshot, error)
	Put(ctx context.Context, snapshot Snapshot) error
}

// Ack подтверждает или возвращает задачу в очередь.
type Ack func(ok bool) error

// CollectQueue — очередь задач на сбор.
type CollectQueue interface {
	Enqueue(ctx context.Context, job CollectJob) error
	Receive(ctx context.Context) (CollectJob, Ack, error)
}

// Cache используется для простых TTL-хранилищ и блокировок по ключу.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}
