package sprint

import (
	"testing"

	"activity-collector/internal/domain"
)

func sprintTicket(key string, entries ...string) domain.Ticket {
	return domain.Ticket{Key: key, SprintField: entries}
}

func TestLatestActiveSprintEmptyInput(t *testing.T) {
	filtered, chosen := LatestActiveSprint(nil)
	if len(filtered) != 0 {
		t.Fatalf("ожидали пустой результат")
	}
	if chosen != nil {
		t.Fatalf("ожидали nil спринт для пустого входа, получили %d", *chosen)
	}
}

func TestLatestActiveSprintPicksMaxActive(t *testing.T) {
	tickets := []domain.Ticket{
		sprintTicket("AUTO-1", "name=Sprint 110,state=ACTIVE"),
		sprintTicket("AUTO-2", "name=Sprint 112,state=ACTIVE"),
		sprintTicket("AUTO-3", "name=Sprint 999,state=CLOSED"),
	}
	filtered, chosen := LatestActiveSprint(tickets)
	if chosen == nil || *chosen != 112 {
		t.Fatalf("ожидали выбор спринта 112, получили %v", chosen)
	}
	if len(filtered) != 1 || filtered[0].Key != "AUTO-2" {
		t.Fatalf("ожидали только AUTO-2, получили %+v", filtered)
	}
}

func TestLatestActiveSprintInactiveEntriesDoNotVote(t *testing.T) {
	// У тикета два вхождения: активное 110 и устаревшее неактивное 112.
	// Номер 112 не должен победить голосом неактивной записи.
	tickets := []domain.Ticket{
		sprintTicket("AUTO-1", "name=Sprint 110,state=ACTIVE", "name=Sprint 112,state=CLOSED"),
		sprintTicket("AUTO-2", "name=Sprint 110,state=ACTIVE"),
	}
	filtered, chosen := LatestActiveSprint(tickets)
	if chosen == nil || *chosen != 110 {
		t.Fatalf("ожидали выбор активного спринта 110, получили %v", chosen)
	}
	if len(filtered) != 2 {
		t.Fatalf("ожидали оба тикета в спринте 110, получили %d", len(filtered))
	}
}

func TestLatestActiveSprintRetainsByAnyMatchingRecord(t *testing.T) {
	// Тикет с закрытым вхождением выбранного спринта остаётся в выборке:
	// достаточно совпадения номера любой записи.
	tickets := []domain.Ticket{
		sprintTicket("AUTO-1", "name=Sprint 112,state=ACTIVE"),
		sprintTicket("AUTO-2", "name=Sprint 112,state=CLOSED"),
		sprintTicket("AUTO-3", "name=Sprint 108,state=CLOSED"),
	}
	filtered, chosen := LatestActiveSprint(tickets)
	if chosen == nil || *chosen != 112 {
		t.Fatalf("ожидали выбор спринта 112, получили %v", chosen)
	}
	if len(filtered) != 2 {
		t.Fatalf("ожидали AUTO-1 и AUTO-2, получили %+v", filtered)
	}
}

func TestLatestActiveSprintNoActiveIsNoop(t *testing.T) {
	tickets := []domain.Ticket{
		sprintTicket("AUTO-1", "name=Sprint 100,state=CLOSED"),
		sprintTicket("AUTO-2"),
	}
	filtered, chosen := LatestActiveSprint(tickets)
	if chosen != nil {
		t.Fatalf("ожидали nil спринт без активных записей, получили %d", *chosen)
	}
	if len(filtered) != len(tickets) {
		t.Fatalf("без активного спринта набор возвращается без фильтрации")
	}
}

func TestLatestActiveSprintLabelOnlyActiveIgnored(t *testing.T) {
	// Активная запись без распознанного номера не голосует.
	tickets := []domain.Ticket{
		sprintTicket("AUTO-1", "name=Backlog,state=ACTIVE"),
	}
	_, chosen := LatestActiveSprint(tickets)
	if chosen != nil {
		t.Fatalf("ожидали nil: активная запись без номера не выбирает спринт")
	}
}

func TestSummarize(t *testing.T) {
	tickets := []domain.Ticket{
		sprintTicket("AUTO-1", "name=Sprint 112,state=ACTIVE"),
		sprintTicket("AUTO-2", "name=Sprint 112,state=ACTIVE"),
		sprintTicket("AUTO-3", "name=Sprint 110,state=CLOSED"),
		sprintTicket("AUTO-4"),
	}
	summary := Summarize(tickets)
	if summary.Total != 4 {
		t.Fatalf("ожидали 4 тикета, получили %d", summary.Total)
	}
	if summary.Counts[112] != 2 || summary.Counts[110] != 1 {
		t.Fatalf("неожиданное распределение: %+v", summary.Counts)
	}
	if summary.NoSprint != 1 {
		t.Fatalf("ожидали 1 тикет без спринта, получили %d", summary.NoSprint)
	}
	if len(summary.Numbers) != 2 || summary.Numbers[0] != 112 {
		t.Fatalf("ожидали номера по убыванию, получили %v", summary.Numbers)
	}
}
