package app

import (
	"math"

	"quizquest/internal/domain"
)

// ComputeStats aggregates a user's attempt records. Accuracy pools all
// answers across attempts; the average score averages per-attempt
// percentages. Duplicate records are counted as given.
func ComputeStats(records []domain.AttemptRecord) domain.DashboardStats {
	if len(records) == 0 {
		return domain.DashboardStats{}
	}
	var (
		correct  int
		answered int
		percents float64
	)
	for _, rec := range records {
		correct += rec.Score
		answered += rec.TotalQuestions
		percents += scorePercent(rec.Score, rec.TotalQuestions)
	}
	stats := domain.DashboardStats{
		QuizzesTaken:        len(records),
		AverageScorePercent: int(math.Floor(percents / float64(len(records)))),
	}
	if answered > 0 {
		stats.AccuracyPercent = int(math.Floor(float64(correct) * 100 / float64(answered)))
	}
	return stats
}

func scorePercent(score, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(score) * 100 / float64(total)
}
