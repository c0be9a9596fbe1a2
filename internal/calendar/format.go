package calendar

import (
	"fmt"
	"time"
)

// Portuguese day and month names. The stdlib has no locale-aware time
// formatting, so the pt-BR rendering is spelled out here.
var (
	weekdaysPT = [...]string{
		"domingo", "segunda-feira", "terça-feira", "quarta-feira",
		"quinta-feira", "sexta-feira", "sábado",
	}
	monthsPT = [...]string{
		"janeiro", "fevereiro", "março", "abril", "maio", "junho",
		"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
	}
)

// FormatDatetime renders a timestamp in long pt-BR form in the given
// location: "segunda-feira, 2 de março de 2026 às 14:30".
func FormatDatetime(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return fmt.Sprintf("%s, %d de %s de %d às %02d:%02d",
		weekdaysPT[t.Weekday()], t.Day(), monthsPT[t.Month()-1], t.Year(),
		t.Hour(), t.Minute())
}
