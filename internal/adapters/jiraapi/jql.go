package jiraapi

import (
	"fmt"
	"strings"

	"activity-collector/internal/domain"
)

// BuildJQL собирает JQL-запрос из описания тикет-группы. Явно заданный
// RawJQL передаётся как есть — строка для нас непрозрачна.
func BuildJQL(query domain.TicketQuery) string {
	if query.RawJQL != "" {
		return query.RawJQL
	}

	clauses := []string{fmt.Sprintf("project = %q", query.Project)}
	clauses = append(clauses, statusClause(query.StatusFilter))
	if query.AssignedTeam != "" {
		clauses = append(clauses, fmt.Sprintf("\"AssignedTeam\" = %q", query.AssignedTeam))
	}
	return strings.Join(clauses, " AND ") + " ORDER BY updatedDate DESC"
}

// statusClause переводит человекочитаемое название фильтра в условие JQL.
// Неизвестный фильтр даёт условие по всем категориям, не ошибку.
func statusClause(filter string) string {
	switch {
	case strings.Contains(strings.ToLower(filter), "in progress"):
		return `statusCategory = "In Progress"`
	case strings.Contains(strings.ToLower(filter), "completed"):
		return `statusCategory = "Done"`
	case strings.Contains(strings.ToLower(filter), "blocked"):
		return `status = "Blocked"`
	default:
		return `statusCategory IN ("To Do", "In Progress", "Done")`
	}
}
