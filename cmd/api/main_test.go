package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"activity-collector/internal/domain"
	"activity-collector/internal/infra/config"
	httpinfra "activity-collector/internal/infra/http"
	collectusecase "activity-collector/internal/usecase/collect"
)

type memStore struct {
	mu    sync.Mutex
	snaps map[string]domain.Snapshot
}

func newMemStore() *memStore {
	return &memStore{snaps: make(map[string]domain.Snapshot)}
}

func (s *memStore) Get(_ context.Context, unitID string) (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[unitID]
	if !ok {
		return domain.Snapshot{}, domain.ErrSnapshotNotFound
	}
	return snap, nil
}

func (s *memStore) Put(_ context.Context, snapshot domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[snapshot.UnitID] = snapshot
	return nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) Once(_ string, _ time.Duration, fn func() error) error {
	return fn()
}

func (c *memCache) Set(key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Get(key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

type stubQueue struct {
	mu   sync.Mutex
	jobs []domain.CollectJob
}

func (q *stubQueue) Enqueue(_ context.Context, job domain.CollectJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *stubQueue) Receive(_ context.Context) (domain.CollectJob, domain.Ack, error) {
	return domain.CollectJob{}, nil, errors.New("очередь только для публикации")
}

type stubChannelSource struct{}

func (stubChannelSource) ListTopLevel(_ context.Context, _ string) ([]domain.Message, error) {
	return nil, nil
}

func (stubChannelSource) ListReplies(_ context.Context, _, _ string) ([]domain.Message, error) {
	return nil, nil
}

type stubTicketSource struct{}

func (stubTicketSource) Query(_ context.Context, _ domain.TicketQuery) ([]domain.Ticket, string, error) {
	return nil, "", nil
}

func testConfig() config.AppConfig {
	var cfg config.AppConfig
	cfg.Slack.Channels = map[string]string{"C0AUTO": "toolchain", "C0FOA": "foa"}
	cfg.Jira.Project = "Automotive Feature Teams"
	cfg.Jira.StatusFilter = "all in progress"
	cfg.Jira.Teams = map[string]string{"toolchain": "rhivos-pdr-auto-toolchain"}
	cfg.Snapshots.MaxAge = time.Hour
	cfg.Collect.Timeout = time.Second
	cfg.Collect.LockTTL = time.Minute
	return cfg
}

func newTestRouter(cfg config.AppConfig, store *memStore, locks *memCache, queue *stubQueue) http.Handler {
	service := collectusecase.NewService(store, stubChannelSource{}, stubTicketSource{}, nil, 1, zerolog.Nop())
	server := httpinfra.NewServer(zerolog.Nop())
	registerRoutes(server.Router, cfg, service, store, locks, queue)
	return server.Router
}

func TestCollectEnqueuesAllUnits(t *testing.T) {
	cfg := testConfig()
	queue := &stubQueue{}
	router := newTestRouter(cfg, newMemStore(), newMemCache(), queue)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/collect", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("ожидали 202, получили %d", rec.Code)
	}
	if len(queue.jobs) != 3 {
		t.Fatalf("ожидали задачи для всех юнитов, получили %d", len(queue.jobs))
	}
}

func TestCollectEnqueuesTeamUnitsOnly(t *testing.T) {
	cfg := testConfig()
	queue := &stubQueue{}
	router := newTestRouter(cfg, newMemStore(), newMemCache(), queue)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/collect?team=toolchain", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("ожидали 202, получили %d", rec.Code)
	}
	if len(queue.jobs) != 2 {
		t.Fatalf("ожидали задачи только для юнитов команды, получили %d", len(queue.jobs))
	}
	seen := make(map[string]bool)
	for _, job := range queue.jobs {
		seen[job.UnitID] = true
	}
	if !seen["slack:C0AUTO"] || !seen["jira:toolchain"] {
		t.Fatalf("неожиданный набор юнитов: %+v", queue.jobs)
	}
}

func TestCollectUnknownTeam(t *testing.T) {
	cfg := testConfig()
	queue := &stubQueue{}
	router := newTestRouter(cfg, newMemStore(), newMemCache(), queue)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/collect?team=nonexistent", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("ожидали 404 для ненастроенной команды, получили %d", rec.Code)
	}
	if len(queue.jobs) != 0 {
		t.Fatalf("для ненастроенной команды задачи не публикуются: %+v", queue.jobs)
	}
}

func TestTeamSnapshots(t *testing.T) {
	cfg := testConfig()
	store := newMemStore()
	store.snaps["slack:C0AUTO"] = domain.Snapshot{
		UnitID:    "slack:C0AUTO",
		FetchedAt: time.Unix(50_000, 0).UTC(),
		Channel:   &domain.ChannelPayload{ChannelID: "C0AUTO"},
	}
	router := newTestRouter(cfg, store, newMemCache(), &stubQueue{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/teams/toolchain/snapshots", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}
	var body struct {
		Team      string            `json:"team"`
		Snapshots []domain.Snapshot `json:"snapshots"`
		Missing   []string          `json:"missing"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("разбор ответа: %v", err)
	}
	if body.Team != "toolchain" {
		t.Fatalf("ожидали команду toolchain, получили %q", body.Team)
	}
	if len(body.Snapshots) != 1 || body.Snapshots[0].UnitID != "slack:C0AUTO" {
		t.Fatalf("ожидали один снимок slack:C0AUTO, получили %+v", body.Snapshots)
	}
	if len(body.Missing) != 1 || body.Missing[0] != "jira:toolchain" {
		t.Fatalf("несобранный юнит команды должен попасть в missing: %+v", body.Missing)
	}
}

func TestTeamSnapshotsUnknownTeam(t *testing.T) {
	router := newTestRouter(testConfig(), newMemStore(), newMemCache(), &stubQueue{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/teams/nonexistent/snapshots", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("ожидали 404 для ненастроенной команды, получили %d", rec.Code)
	}
}

func TestCollectStatus(t *testing.T) {
	cfg := testConfig()
	locks := newMemCache()
	payload, err := json.Marshal(domain.CollectStatus{
		UnitID:     "slack:C0AUTO",
		JobID:      "job-1",
		OK:         true,
		FinishedAt: time.Unix(60_000, 0).UTC(),
	})
	if err != nil {
		t.Fatalf("сериализация статуса: %v", err)
	}
	if err := locks.Set(domain.CollectStatusKey("slack:C0AUTO"), payload, time.Hour); err != nil {
		t.Fatalf("запись статуса: %v", err)
	}
	router := newTestRouter(cfg, newMemStore(), locks, &stubQueue{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/collect/slack:C0AUTO/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}
	var status domain.CollectStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("разбор статуса: %v", err)
	}
	if !status.OK || status.JobID != "job-1" {
		t.Fatalf("неожиданный статус: %+v", status)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/collect/slack:C0FOA/status", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("юнит без записанного статуса даёт 404, получили %d", rec.Code)
	}
}
