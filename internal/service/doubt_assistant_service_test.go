package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lshigami/padhoplus/config"
	"github.com/lshigami/padhoplus/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDraft(t *testing.T) {
	cases := []struct{ raw, want string }{
		{"  Answer: Use Newton's third law. ", "Use Newton's third law."},
		{"Final answer: 42", "42"},
		{"Consider both vectors first, then the answer: add them", "Consider both vectors first, then the answer: add them"},
		{"plain text", "plain text"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, parseDraft(c.raw), c.raw)
	}
}

func TestBuildDoubtPrompt(t *testing.T) {
	optA, optB := "3 m/s", "6 m/s"
	doubt := &model.Doubt{Title: "Relative velocity", Description: "How do I add the vectors?", Subject: model.Subject{Name: "Physics"}}
	question := &model.Question{Text: "Find the speed.", OptionA: &optA, OptionB: &optB, CorrectAnswer: "B"}

	prompt := buildDoubtPrompt(doubt, question)
	assert.Contains(t, prompt, "Subject: Physics")
	assert.Contains(t, prompt, "How do I add the vectors?")
	assert.Contains(t, prompt, "A) 3 m/s")
	assert.Contains(t, prompt, "B) 6 m/s")
	assert.NotContains(t, prompt, "C) ")
	assert.Contains(t, prompt, "Correct answer: B")

	assert.NotContains(t, buildDoubtPrompt(doubt, nil), "Correct answer")
}

func TestDoubtAssistantWithoutKey(t *testing.T) {
	assistant, err := NewDoubtAssistant(&config.Config{})
	require.NoError(t, err)

	_, err = assistant.DraftAnswer(context.Background(), &model.Doubt{Title: "t"}, nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFetchImageData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/diagram.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("png-bytes"))
		case "/notes.txt":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("hello"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	a := &geminiDoubtAssistant{http: srv.Client()}
	ctx := context.Background()

	data, mimeType, err := a.fetchImageData(ctx, srv.URL+"/diagram.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", mimeType)
	assert.Equal(t, []byte("png-bytes"), data)

	_, _, err = a.fetchImageData(ctx, srv.URL+"/notes.txt")
	assert.Error(t, err)

	_, _, err = a.fetchImageData(ctx, srv.URL+"/missing.png")
	assert.Error(t, err)

	_, _, err = a.fetchImageData(ctx, "uploads/diagram.png")
	assert.Error(t, err)
}

func TestScoreConverter(t *testing.T) {
	conv := NewScoreConverterService()

	assert.Equal(t, ScoreSummary{Percentage: 37.5, Passed: false}, conv.Summarize(3, 8, 4))
	assert.Equal(t, ScoreSummary{Percentage: 100, Passed: true}, conv.Summarize(12, 8, 4))
	assert.Equal(t, ScoreSummary{Percentage: -12.5, Passed: false}, conv.Summarize(-1, 8, 0))
	assert.Equal(t, ScoreSummary{Passed: true}, conv.Summarize(0, 0, 0))
}
