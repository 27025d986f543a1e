package slackapi

import (
	"testing"
	"time"
)

func TestParseTS(t *testing.T) {
	got := parseTS("1726650000.000100")
	want := time.Unix(1726650000, 100*int64(time.Microsecond)).UTC()
	if !got.Equal(want) {
		t.Fatalf("ожидали %v, получили %v", want, got)
	}
}

func TestParseTSWithoutFraction(t *testing.T) {
	got := parseTS("1726650000")
	if !got.Equal(time.Unix(1726650000, 0).UTC()) {
		t.Fatalf("ts без дробной части: %v", got)
	}
}

func TestParseTSOrdering(t *testing.T) {
	earlier := parseTS("1726650000.000100")
	later := parseTS("1726650000.000200")
	if !earlier.Before(later) {
		t.Fatalf("порядковый суффикс обязан сохранять порядок: %v и %v", earlier, later)
	}
}

func TestParseTSGarbage(t *testing.T) {
	if !parseTS("мусор").IsZero() {
		t.Fatalf("непригодный ts даёт нулевое время")
	}
}
