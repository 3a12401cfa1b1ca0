package app

import (
	"math"
	"time"

	"quizquest/internal/domain"
)

// CompletedAtLayout renders completion timestamps on summaries.
const CompletedAtLayout = "02 January 2006, 15:04"

type bandStyle struct {
	band  domain.PerformanceBand
	min   float64
	color string
	text  string
}

// Thresholds are checked top-down; the last entry catches everything else.
var bands = []bandStyle{
	{band: domain.BandExcellent, min: 90, color: "#4CAF50", text: "Outstanding!"},
	{band: domain.BandGood, min: 75, color: "#8BC34A", text: "Good job!"},
	{band: domain.BandFair, min: 50, color: "#FFC107", text: "Not bad"},
	{band: domain.BandPoor, min: math.Inf(-1), color: "#F44336", text: "Needs improvement"},
}

// BandFor maps a percentage onto its performance band.
func BandFor(percentage float64) domain.PerformanceBand {
	return styleFor(percentage).band
}

func styleFor(percentage float64) bandStyle {
	for _, b := range bands {
		if percentage >= b.min {
			return b
		}
	}
	return bands[len(bands)-1]
}

// ResolveCompletedAt returns the record's completion time, or now when the
// record has none.
func ResolveCompletedAt(rec domain.AttemptRecord, now time.Time) time.Time {
	if rec.CompletedAt == nil || rec.CompletedAt.IsZero() {
		return now
	}
	return *rec.CompletedAt
}

// Percentage is 100*score/total rounded to two decimals, 0 for empty quizzes.
func Percentage(score, total int) float64 {
	return math.Round(scorePercent(score, total)*100) / 100
}

// ToSummary derives the presentation view of rec.
func ToSummary(rec domain.AttemptRecord, now time.Time) domain.AttemptSummary {
	pct := Percentage(rec.Score, rec.TotalQuestions)
	style := styleFor(pct)
	return domain.AttemptSummary{
		ID:                   rec.ID,
		QuizID:               rec.QuizID,
		QuizTitle:            rec.QuizTitle,
		Score:                rec.Score,
		TotalQuestions:       rec.TotalQuestions,
		TimeTakenSeconds:     rec.TimeTakenSeconds,
		CompletedAtFormatted: ResolveCompletedAt(rec, now).Format(CompletedAtLayout),
		Percentage:           pct,
		PerformanceBand:      style.band,
		PerformanceColor:     style.color,
		PerformanceText:      style.text,
	}
}

// ToSummaries maps ToSummary over records, keeping their order.
func ToSummaries(records []domain.AttemptRecord, now time.Time) []domain.AttemptSummary {
	out := make([]domain.AttemptSummary, 0, len(records))
	for _, rec := range records {
		out = append(out, ToSummary(rec, now))
	}
	return out
}
