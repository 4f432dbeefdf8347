package service

import (
	"github.com/lshigami/padhoplus/internal/scoring"
)

// ScoreSummary is the derived view of a raw score against a test's marks.
type ScoreSummary struct {
	Percentage float64
	Passed     bool
}

// ScoreConverterService turns raw attempt scores into percentages and a pass flag.
type ScoreConverterService interface {
	Summarize(score, totalMarks, passingMarks float64) ScoreSummary
}

type scoreConverterService struct{}

func NewScoreConverterService() ScoreConverterService {
	return &scoreConverterService{}
}

func (s *scoreConverterService) Summarize(score, totalMarks, passingMarks float64) ScoreSummary {
	var summary ScoreSummary
	if totalMarks > 0 {
		pct := score / totalMarks * 100
		if pct > 100 {
			pct = 100
		}
		summary.Percentage = scoring.RoundTo(pct, 2)
	}
	summary.Passed = score >= passingMarks
	return summary
}
