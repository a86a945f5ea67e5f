package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/mtss-api/internal/models"
)

// ReferralThresholds tune the three escalation rules.
type ReferralThresholds struct {
	// Rule A: many concurrent interventions.
	LoadMinActive int
	// Rule B: enough logs with a low average.
	ChronicMinLogs int
	ChronicMaxAvg  float64
	// Rule C: several interventions, some logs, average below the bar.
	CombinedMinActive int
	CombinedMinLogs   int
	CombinedAvgBelow  float64
}

// DefaultReferralThresholds returns the stock escalation thresholds.
func DefaultReferralThresholds() ReferralThresholds {
	return ReferralThresholds{
		LoadMinActive:     3,
		ChronicMinLogs:    4,
		ChronicMaxAvg:     2.0,
		CombinedMinActive: 2,
		CombinedMinLogs:   2,
		CombinedAvgBelow:  3.0,
	}
}

func (t ReferralThresholds) withDefaults() ReferralThresholds {
	d := DefaultReferralThresholds()
	if t.LoadMinActive <= 0 {
		t.LoadMinActive = d.LoadMinActive
	}
	if t.ChronicMinLogs <= 0 {
		t.ChronicMinLogs = d.ChronicMinLogs
	}
	if t.ChronicMaxAvg <= 0 {
		t.ChronicMaxAvg = d.ChronicMaxAvg
	}
	if t.CombinedMinActive <= 0 {
		t.CombinedMinActive = d.CombinedMinActive
	}
	if t.CombinedMinLogs <= 0 {
		t.CombinedMinLogs = d.CombinedMinLogs
	}
	if t.CombinedAvgBelow <= 0 {
		t.CombinedAvgBelow = d.CombinedAvgBelow
	}
	return t
}

// EvaluateReferral checks each rule on its own and returns a reason for every rule
// that matched. An empty result means the student is not a candidate. Rules that read
// the average never match while no log carries a rating.
func EvaluateReferral(stats models.ReferralStats, t ReferralThresholds) []string {
	reasons := []string{}
	if stats.ActiveInterventions >= t.LoadMinActive {
		reasons = append(reasons, fmt.Sprintf("%d active interventions", stats.ActiveInterventions))
	}
	if stats.AvgRating == nil {
		return reasons
	}
	avg := *stats.AvgRating
	if stats.TotalLogs >= t.ChronicMinLogs && avg <= t.ChronicMaxAvg {
		reasons = append(reasons, fmt.Sprintf("Avg rating %.1f/5 across %d logs", avg, stats.TotalLogs))
	}
	if stats.ActiveInterventions >= t.CombinedMinActive && stats.TotalLogs >= t.CombinedMinLogs && avg < t.CombinedAvgBelow {
		reasons = append(reasons, fmt.Sprintf("%d active interventions with avg rating %.1f/5 across %d logs",
			stats.ActiveInterventions, avg, stats.TotalLogs))
	}
	return reasons
}

// sortByRisk orders worst average first, then heavier load, then by name.
func sortByRisk[T any](items []T, stats func(T) models.ReferralStats) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := stats(items[i]), stats(items[j])
		if ra, rb := a.SortRating(), b.SortRating(); ra != rb {
			return ra < rb
		}
		if a.ActiveInterventions != b.ActiveInterventions {
			return a.ActiveInterventions > b.ActiveInterventions
		}
		if c := strings.Compare(a.LastName, b.LastName); c != 0 {
			return c < 0
		}
		return a.FirstName < b.FirstName
	})
}
