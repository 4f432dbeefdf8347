// Package scoring grades test attempts and orders submitted attempts into
// ranks and percentiles. Nothing here touches storage.
package scoring

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/lshigami/padhoplus/internal/model"
)

// Result is the outcome of grading one attempt. Responses are copies of the
// input with IsCorrect and MarksObtained filled in.
type Result struct {
	Responses   []model.TestResponse
	Correct     int
	Incorrect   int
	Unattempted int
	RawTotal    float64
	Score       float64
}

// NormalizeAnswer is the form answers are compared in.
func NormalizeAnswer(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func answered(r model.TestResponse) bool {
	return r.SelectedAnswer != nil && strings.TrimSpace(*r.SelectedAnswer) != ""
}

// Grade scores responses against questions. A response whose question is not
// in the map is left ungraded and counts as unattempted.
func Grade(responses []model.TestResponse, questions map[uint]model.Question, totalQuestions int) Result {
	res := Result{Responses: make([]model.TestResponse, len(responses))}
	for i, r := range responses {
		r.IsCorrect = false
		r.MarksObtained = 0
		q, ok := questions[r.QuestionID]
		if ok && answered(r) {
			if NormalizeAnswer(*r.SelectedAnswer) == NormalizeAnswer(q.CorrectAnswer) {
				r.IsCorrect = true
				r.MarksObtained = q.Marks
				res.Correct++
			} else {
				r.MarksObtained = -q.NegativeMarks
				res.Incorrect++
			}
			res.RawTotal += r.MarksObtained
		}
		res.Responses[i] = r
	}
	res.Unattempted = totalQuestions - (res.Correct + res.Incorrect)
	res.Score = math.Max(0, res.RawTotal)
	return res
}

// Entry is a submitted attempt as seen by the ranking pass.
type Entry struct {
	AttemptID        uint
	Score            float64
	TimeTakenSeconds int
	SubmittedAt      time.Time
}

type Placement struct {
	AttemptID  uint
	Rank       int
	Percentile float64
}

// Less orders entries by score descending. Ties go to the faster attempt,
// then the earlier submission, then the lower attempt id.
func Less(a, b Entry) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.TimeTakenSeconds != b.TimeTakenSeconds {
		return a.TimeTakenSeconds < b.TimeTakenSeconds
	}
	if !a.SubmittedAt.Equal(b.SubmittedAt) {
		return a.SubmittedAt.Before(b.SubmittedAt)
	}
	return a.AttemptID < b.AttemptID
}

// Rank assigns 1-based ranks and percentiles over all entries. The input is
// not modified.
func Rank(entries []Entry) []Placement {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return Less(sorted[i], sorted[j]) })

	n := len(sorted)
	out := make([]Placement, n)
	for i, e := range sorted {
		rank := i + 1
		out[i] = Placement{
			AttemptID:  e.AttemptID,
			Rank:       rank,
			Percentile: Percentile(rank, n),
		}
	}
	return out
}

func Percentile(rank, total int) float64 {
	if total <= 0 {
		return 0
	}
	return RoundTo((1-float64(rank)/float64(total))*100, 2)
}

func RoundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Accuracy is correct over attempted as a percentage, 0 when nothing was attempted.
func Accuracy(correct, incorrect int) float64 {
	attempted := correct + incorrect
	if attempted <= 0 {
		return 0
	}
	return RoundTo(float64(correct)/float64(attempted)*100, 2)
}

// EntryOf adapts a submitted attempt for Rank.
func EntryOf(a model.TestAttempt) Entry {
	e := Entry{AttemptID: a.ID, Score: a.Score, TimeTakenSeconds: a.TimeTakenSeconds}
	if a.SubmittedAt != nil {
		e.SubmittedAt = *a.SubmittedAt
	}
	return e
}

// Changed returns the attempts whose stored rank or percentile differs from
// placements, with the new values applied.
func Changed(attempts []model.TestAttempt, placements []Placement) []model.TestAttempt {
	byID := make(map[uint]Placement, len(placements))
	for _, p := range placements {
		byID[p.AttemptID] = p
	}
	var changed []model.TestAttempt
	for _, a := range attempts {
		p, ok := byID[a.ID]
		if !ok {
			continue
		}
		if a.Rank != nil && *a.Rank == p.Rank && a.Percentile != nil && *a.Percentile == p.Percentile {
			continue
		}
		rank, pct := p.Rank, p.Percentile
		a.Rank = &rank
		a.Percentile = &pct
		changed = append(changed, a)
	}
	return changed
}

type TopicStats struct {
	Topic       string `json:"topic"`
	Correct     int    `json:"correct"`
	Incorrect   int    `json:"incorrect"`
	Unattempted int    `json:"unattempted"`
}

// TopicBreakdown groups graded responses by their question's topic, in order
// of first appearance. Responses need Question.Topic loaded.
func TopicBreakdown(responses []model.TestResponse) []TopicStats {
	index := make(map[string]int)
	var out []TopicStats
	for _, r := range responses {
		name := r.Question.TopicName()
		i, ok := index[name]
		if !ok {
			i = len(out)
			index[name] = i
			out = append(out, TopicStats{Topic: name})
		}
		switch {
		case !answered(r):
			out[i].Unattempted++
		case r.IsCorrect:
			out[i].Correct++
		default:
			out[i].Incorrect++
		}
	}
	return out
}
