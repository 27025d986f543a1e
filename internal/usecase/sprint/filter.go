package sprint

import (
	"sort"

	"activity-collector/internal/domain"
)

// LatestActiveSprint выбирает максимальный номер среди активных спринтовых
// записей и оставляет только тикеты этого спринта. Голосуют исключительно
// активные записи с распознанным номером. Если таких нет, возвращается
// исходный набор и nil: nil означает "не фильтровать", а не нулевой спринт.
//
// Две записи с разными названиями могут дать один номер; обе считаются
// текущим спринтом, предпочтения между названиями нет.
func LatestActiveSprint(tickets []domain.Ticket) ([]domain.Ticket, *int) {
	var chosen *int
	perTicket := make([][]domain.SprintRecord, len(tickets))
	for i, ticket := range tickets {
		records := ExtractRecords(ticket)
		perTicket[i] = records
		for _, rec := range records {
			if !rec.Active || rec.Number == nil {
				continue
			}
			if chosen == nil || *rec.Number > *chosen {
				number := *rec.Number
				chosen = &number
			}
		}
	}
	if chosen == nil {
		return tickets, nil
	}

	filtered := make([]domain.Ticket, 0, len(tickets))
	for i, ticket := range tickets {
		for _, rec := range perTicket[i] {
			if rec.Number != nil && *rec.Number == *chosen {
				filtered = append(filtered, ticket)
				break
			}
		}
	}
	return filtered, chosen
}

// Summarize считает распределение тикетов по номерам активных спринтов.
// Тикет без распознанного спринта попадает в NoSprint.
func Summarize(tickets []domain.Ticket) domain.SprintSummary {
	summary := domain.SprintSummary{
		Counts: make(map[int]int),
		Total:  len(tickets),
	}
	for _, ticket := range tickets {
		number := activeNumber(ticket)
		if number == nil {
			summary.NoSprint++
			continue
		}
		summary.Counts[*number]++
	}
	for number := range summary.Counts {
		summary.Numbers = append(summary.Numbers, number)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(summary.Numbers)))
	return summary
}

// activeNumber возвращает номер активной записи тикета либо, как и
// исходный формат допускает, номер первой записи при отсутствии активной.
func activeNumber(ticket domain.Ticket) *int {
	records := ExtractRecords(ticket)
	for _, rec := range records {
		if rec.Active && rec.Number != nil {
			return rec.Number
		}
	}
	for _, rec := range records {
		if rec.Number != nil {
			return rec.Number
		}
	}
	return nil
}
