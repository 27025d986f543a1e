package domain

import "time"

// Message описывает одно сообщение канала.
// ParentID пуст для верхнеуровневых сообщений; вложенность тредов
// ограничена одним уровнем, ответ сам родителем не бывает.
type Message struct {
	ID         string    `json:"id"`
	ChannelID  string    `json:"channel_id"`
	AuthorID   string    `json:"author_id"`
	Text       string    `json:"text"`
	CleanText  string    `json:"clean_text,omitempty"`
	ParentID   string    `json:"parent_id,omitempty"`
	ReplyCount int       `json:"reply_count,omitempty"`
	PostedAt   time.Time `json:"posted_at"`
}

// IsReply сообщает, является ли сообщение ответом в треде.
func (m Message) IsReply() bool {
	return m.ParentID != "" && m.ParentID != m.ID
}

// Ticket описывает тикет трекера в том виде, в котором его отдаёт источник.
// SprintField хранит сырые строки спринтового кастом-поля без разбора.
type Ticket struct {
	Key         string    `json:"key"`
	Summary     string    `json:"summary"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	Assignee    string    `json:"assignee,omitempty"`
	Reporter    string    `json:"reporter,omitempty"`
	Description string    `json:"description,omitempty"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
	SprintField []string  `json:"sprint_field,omitempty"`
}

// SprintRecord — нормализованная запись об одном спринтовом вхождении тикета.
// Number равен nil, если из названия не удалось извлечь число.
type SprintRecord struct {
	TicketKey string
	Label     string
	Number    *int
	Active    bool
}

// SprintSummary — распределение тикетов по номерам спринтов.
type SprintSummary struct {
	Counts   map[int]int `json:"counts"`
	NoSprint int         `json:"no_sprint"`
	Total    int         `json:"total"`
	Numbers  []int       `json:"numbers"`
}

// PartialFailure фиксирует сбой под-операции, не прервавший сбор целиком.
type PartialFailure struct {
	ItemID string `json:"item_id"`
	Reason string `json:"reason"`
}

// ChannelPayload — расплющенный хронологический поток сообщений канала.
type ChannelPayload struct {
	ChannelID string    `json:"channel_id"`
	Messages  []Message `json:"messages"`
}

// TicketPayload — отфильтрованный по текущему спринту набор тикетов.
// Sprint равен nil, если ни у одного тикета нет активного спринта,
// тогда Tickets содержит исходный набор без фильтрации.
type TicketPayload struct {
	JQL     string        `json:"jql"`
	Tickets []Ticket      `json:"tickets"`
	Sprint  *int          `json:"sprint,omitempty"`
	Summary SprintSummary `json:"summary"`
}

// Snapshot — результат одного прогона сбора по юниту.
// Снимок создаётся целиком и никогда не мутируется: следующий успешный
// прогон замещает его новым.
type Snapshot struct {
	UnitID          string           `json:"unit_id"`
	FetchedAt       time.Time        `json:"fetched_at"`
	Channel         *ChannelPayload  `json:"channel,omitempty"`
	Tickets         *TicketPayload   `json:"tickets,omitempty"`
	PartialFailures []PartialFailure `json:"partial_failures,omitempty"`
}

// UnitKind определяет тип источника юнита.
type UnitKind string

const (
	// UnitChannel — канал с сообщениями и тредами.
	UnitChannel UnitKind = "channel"
	// UnitTickets — группа тикетов по JQL-запросу.
	UnitTickets UnitKind = "tickets"
)

// TicketQuery описывает запрос к трекеру. RawJQL, если задан,
// передаётся источнику как есть, без сборки из остальных полей.
type TicketQuery struct {
	Project      string `json:"project,omitempty"`
	AssignedTeam string `json:"assigned_team,omitempty"`
	StatusFilter string `json:"status_filter,omitempty"`
	RawJQL       string `json:"raw_jql,omitempty"`
}

// SourceUnit — одна адресуемая цель сбора со своей политикой свежести.
type SourceUnit struct {
	ID        string        `json:"id"`
	Kind      UnitKind      `json:"kind"`
	Team      string        `json:"team,omitempty"`
	ChannelID string        `json:"channel_id,omitempty"`
	Query     TicketQuery   `json:"query,omitempty"`
	MaxAge    time.Duration `json:"max_age"`
}

// CollectJob — задача на сбор одного юнита из очереди.
type CollectJob struct {
	ID         string    `json:"id"`
	UnitID     string    `json:"unit_id"`
	Force      bool      `json:"force,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// CollectStatus — итог последнего прогона сбора юнита воркером очереди.
type CollectStatus struct {
	UnitID     string    `json:"unit_id"`
	JobID      string    `json:"job_id"`
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// CollectStatusKey — ключ кэша, под которым хранится статус сбора юнита.
func CollectStatusKey(unitID string) string {
	return "collect:status:" + unitID
}
