// Package report computes dashboard statistics over appointment history.
package report

import (
	"math"

	"github.com/dentalink/clinic-scheduler/internal/appointment"
)

// Summary is the aggregate shape consumed by dashboards and exports.
// ByStatus and Percentages always carry all four statuses; ByClinic only
// carries clinics present in the input.
type Summary struct {
	Total       int                            `json:"total"`
	ByStatus    map[appointment.Status]int     `json:"by_status"`
	ByClinic    map[string]int                 `json:"by_clinic"`
	Percentages map[appointment.Status]float64 `json:"percentages"`
}

var allStatuses = []appointment.Status{
	appointment.StatusScheduled,
	appointment.StatusCompleted,
	appointment.StatusCancelled,
	appointment.StatusMissed,
}

// Aggregate is a pure function over an in-memory list the caller has already
// filtered by date range, status, clinic, or search term. Percentages are
// count/total*100 rounded to one decimal; an empty input yields zeros, never
// a division fault.
func Aggregate(appts []appointment.Appointment) Summary {
	s := Summary{
		Total:       len(appts),
		ByStatus:    make(map[appointment.Status]int, len(allStatuses)),
		ByClinic:    make(map[string]int),
		Percentages: make(map[appointment.Status]float64, len(allStatuses)),
	}

	for _, st := range allStatuses {
		s.ByStatus[st] = 0
	}

	for _, a := range appts {
		s.ByStatus[a.Status]++
		s.ByClinic[a.Clinic]++
	}

	for _, st := range allStatuses {
		if s.Total == 0 {
			s.Percentages[st] = 0
			continue
		}
		s.Percentages[st] = round1(float64(s.ByStatus[st]) / float64(s.Total) * 100)
	}

	return s
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
