// Package jiraapi реализует источник тикетов поверх Jira REST API.
package jiraapi

import (
	"context"
	"fmt"
	"time"

	jira "github.com/andygrunwald/go-jira"
	"github.com/rs/zerolog"

	"activity-collector/internal/domain"
	"activity-collector/internal/infra/metrics"
)

const searchPageSize = 100

// Client реализует domain.TicketSource.
type Client struct {
	client      *jira.Client
	sprintField string
	log         zerolog.Logger
}

var _ domain.TicketSource = (*Client)(nil)

// Config — параметры подключения к Jira.
type Config struct {
	BaseURL     string
	Username    string
	Token       string
	SprintField string
}

// NewClient создаёт клиента с базовой авторизацией по API-токену.
func NewClient(cfg Config, log zerolog.Logger) (*Client, error) {
	tp := jira.BasicAuthTransport{
		Username: cfg.Username,
		Password: cfg.Token,
	}
	client, err := jira.NewClient(tp.Client(), cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("создание jira-клиента: %w", err)
	}
	return &Client{client: client, sprintField: cfg.SprintField, log: log}, nil
}

// Query выполняет JQL-запрос с пагинацией и возвращает тикеты вместе
// с фактически использованным JQL. Недоступность трекера или отклонённый
// запрос фатальны для юнита целиком.
func (c *Client) Query(ctx context.Context, query domain.TicketQuery) ([]domain.Ticket, string, error) {
	jql := BuildJQL(query)
	var tickets []domain.Ticket
	for startAt := 0; ; {
		start := time.Now()
		issues, resp, err := c.client.Issue.SearchWithContext(ctx, jql, &jira.SearchOptions{
			StartAt:    startAt,
			MaxResults: searchPageSize,
		})
		metrics.ObserveNetworkRequest("jira", "issue_search", "search", start, err)
		if err != nil {
			return nil, jql, fmt.Errorf("%w: поиск по JQL %q: %v", domain.ErrUnitUnavailable, jql, err)
		}
		for _, issue := range issues {
			tickets = append(tickets, c.toTicket(issue))
		}
		startAt += len(issues)
		if len(issues) == 0 || startAt >= resp.Total {
			break
		}
	}
	c.log.Debug().Str("jql", jql).Int("tickets", len(tickets)).Msg("jira: запрос выполнен")
	return tickets, jql, nil
}

func (c *Client) toTicket(issue jira.Issue) domain.Ticket {
	ticket := domain.Ticket{Key: issue.Key}
	fields := issue.Fields
	if fields == nil {
		return ticket
	}
	ticket.Summary = fields.Summary
	ticket.Description = fields.Description
	ticket.Type = fields.Type.Name
	ticket.Created = time.Time(fields.Created)
	ticket.Updated = time.Time(fields.Updated)
	if fields.Status != nil {
		ticket.Status = fields.Status.Name
	}
	if fields.Priority != nil {
		ticket.Priority = fields.Priority.Name
	}
	if fields.Assignee != nil {
		ticket.Assignee = fields.Assignee.DisplayName
	}
	if fields.Reporter != nil {
		ticket.Reporter = fields.Reporter.DisplayName
	}
	ticket.SprintField = rawSprintStrings(fields.Unknowns[c.sprintField])
	return ticket
}

// rawSprintStrings приводит спринтовое кастом-поле к списку строк.
// Jira отдаёт его то строкой, то списком строк, то списком объектов;
// непригодные элементы пропускаются по одному.
func rawSprintStrings(raw any) []string {
	switch value := raw.(type) {
	case nil:
		return nil
	case string:
		return []string{value}
	case []any:
		entries := make([]string, 0, len(value))
		for _, item := range value {
			switch entry := item.(type) {
			case string:
				entries = append(entries, entry)
			case map[string]any:
				entries = append(entries, formatSprintObject(entry))
			}
		}
		return entries
	default:
		return nil
	}
}

// formatSprintObject сводит объектное представление спринта к тому же
// ad-hoc формату "k=v,k=v", что и строковое.
func formatSprintObject(obj map[string]any) string {
	entry := ""
	for _, key := range []string{"id", "name", "state"} {
		value, ok := obj[key]
		if !ok {
			continue
		}
		if entry != "" {
			entry += ","
		}
		entry += fmt.Sprintf("%s=%v", key, value)
	}
	return entry
}
