package jiraapi

import (
	"strings"
	"testing"

	"activity-collector/internal/domain"
)

func TestBuildJQLInProgress(t *testing.T) {
	jql := BuildJQL(domain.TicketQuery{
		Project:      "Automotive Feature Teams",
		AssignedTeam: "rhivos-pdr-auto-toolchain",
		StatusFilter: "All In Progress",
	})
	want := `project = "Automotive Feature Teams" AND statusCategory = "In Progress" AND "AssignedTeam" = "rhivos-pdr-auto-toolchain" ORDER BY updatedDate DESC`
	if jql != want {
		t.Fatalf("ожидали %q, получили %q", want, jql)
	}
}

func TestBuildJQLStatusFilters(t *testing.T) {
	cases := map[string]string{
		"completed":      `statusCategory = "Done"`,
		"blocked":        `status = "Blocked"`,
		"что-то другое":  `statusCategory IN ("To Do", "In Progress", "Done")`,
		"All InProgress": `statusCategory IN ("To Do", "In Progress", "Done")`,
	}
	for filter, wantClause := range cases {
		jql := BuildJQL(domain.TicketQuery{Project: "Demo", StatusFilter: filter})
		if !strings.Contains(jql, wantClause) {
			t.Fatalf("фильтр %q: ожидали условие %q в %q", filter, wantClause, jql)
		}
	}
}

func TestBuildJQLWithoutTeam(t *testing.T) {
	jql := BuildJQL(domain.TicketQuery{Project: "Demo", StatusFilter: "completed"})
	if strings.Contains(jql, "AssignedTeam") {
		t.Fatalf("без команды условие AssignedTeam не добавляется: %q", jql)
	}
}

func TestBuildJQLRawPassthrough(t *testing.T) {
	raw := `labels = urgent ORDER BY created ASC`
	jql := BuildJQL(domain.TicketQuery{Project: "Demo", RawJQL: raw})
	if jql != raw {
		t.Fatalf("RawJQL обязан пройти без изменений: %q", jql)
	}
}

func TestRawSprintStrings(t *testing.T) {
	entries := rawSprintStrings([]any{
		"name=Sprint 112,state=ACTIVE",
		map[string]any{"id": 42, "name": "Sprint 113", "state": "FUTURE"},
		12345,
	})
	if len(entries) != 2 {
		t.Fatalf("ожидали 2 пригодных вхождения, получили %v", entries)
	}
	if entries[1] != "id=42,name=Sprint 113,state=FUTURE" {
		t.Fatalf("объект должен свестись к строковому формату: %q", entries[1])
	}
	if rawSprintStrings(nil) != nil {
		t.Fatalf("nil поле даёт nil результат")
	}
	single := rawSprintStrings("name=Sprint 1,state=CLOSED")
	if len(single) != 1 {
		t.Fatalf("одиночная строка оборачивается в список: %v", single)
	}
}
