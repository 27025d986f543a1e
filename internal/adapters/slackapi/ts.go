package slackapi

import (
	"strconv"
	"strings"
	"time"
)

// parseTS переводит слаковский ts вида "1726650000.000100" во время.
// Дробная часть — порядковый суффикс в микросекундах; непригодное
// значение даёт нулевое время, сортировка от этого не ломается.
func parseTS(ts string) time.Time {
	secPart, fracPart, _ := strings.Cut(ts, ".")
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return time.Time{}
	}
	var micros int64
	if fracPart != "" {
		if len(fracPart) > 6 {
			fracPart = fracPart[:6]
		}
		for len(fracPart) < 6 {
			fracPart += "0"
		}
		micros, _ = strconv.ParseInt(fracPart, 10, 64)
	}
	return time.Unix(sec, micros*int64(time.Microsecond)).UTC()
}
