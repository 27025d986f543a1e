// Package sprint разбирает спринтовые кастом-поля тикетов и выбирает
// текущий спринт по максимальному активному номеру.
package sprint

import (
	"regexp"
	"strconv"
	"strings"

	"activity-collector/internal/domain"
)

const stateActive = "ACTIVE"

var (
	sprintLabelRegex    = regexp.MustCompile(`(?i)sprint\s+([0-9]+)`)
	trailingNumberRegex = regexp.MustCompile(`([0-9]+)\s*$`)
)

// ExtractRecords разбирает спринтовое поле тикета в набор записей.
// Поле приходит как список строк вида "name=Sprint 112,state=ACTIVE,...":
// порядок ключей произвольный, любой ключ может отсутствовать. Разбор
// никогда не завершается ошибкой — непригодные вхождения пропускаются
// по одному, тикет без поля даёт пустой результат.
func ExtractRecords(ticket domain.Ticket) []domain.SprintRecord {
	if len(ticket.SprintField) == 0 {
		return nil
	}
	records := make([]domain.SprintRecord, 0, len(ticket.SprintField))
	for _, entry := range ticket.SprintField {
		fields := parseEntry(entry)
		label := fields["name"]
		if label == "" {
			continue
		}
		records = append(records, domain.SprintRecord{
			TicketKey: ticket.Key,
			Label:     label,
			Number:    numberFromLabel(label),
			Active:    strings.EqualFold(fields["state"], stateActive),
		})
	}
	return records
}

// parseEntry раскладывает ad-hoc строку "k=v,k=v" в карту.
// Значения обрезаются по следующей запятой, как и в исходном формате.
func parseEntry(entry string) map[string]string {
	fields := make(map[string]string)
	for _, pair := range strings.Split(entry, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		if _, exists := fields[key]; !exists {
			fields[key] = strings.TrimSpace(value)
		}
	}
	return fields
}

// numberFromLabel извлекает номер спринта из названия: сначала по шаблону
// "Sprint N", иначе по числу в конце названия. Посторонние цифры в середине
// ("Q3 Sprint 112") номером не считаются. Отсутствие числа — штатный случай.
func numberFromLabel(label string) *int {
	match := sprintLabelRegex.FindStringSubmatch(label)
	if match == nil {
		match = trailingNumberRegex.FindStringSubmatch(label)
	}
	if match == nil {
		return nil
	}
	number, err := strconv.Atoi(match[1])
	if err != nil {
		return nil
	}
	return &number
}
