package service

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/lshigami/padhoplus/config"
	"github.com/lshigami/padhoplus/internal/model"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

const assistantModel = "gemini-1.5-flash"

// DoubtAssistant drafts an answer to a student's doubt.
type DoubtAssistant interface {
	DraftAnswer(ctx context.Context, doubt *model.Doubt, question *model.Question) (string, error)
}

type geminiDoubtAssistant struct {
	client *genai.GenerativeModel
	http   *http.Client
}

// NewDoubtAssistant returns an assistant backed by Gemini. Without
// GEMINI_API_KEY every draft fails with ErrUnavailable.
func NewDoubtAssistant(cfg *config.Config) (DoubtAssistant, error) {
	httpClient := &http.Client{Timeout: 15 * time.Second}
	if cfg.GeminiApiKey == "" {
		log.Warn().Msg("GEMINI_API_KEY is not set. AI doubt drafts are disabled.")
		return &geminiDoubtAssistant{http: httpClient}, nil
	}
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.GeminiApiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}
	m := client.GenerativeModel(assistantModel)
	m.SetTemperature(0.3)
	return &geminiDoubtAssistant{client: m, http: httpClient}, nil
}

var supportedImageTypes = map[string]bool{
	"image/png": true, "image/jpeg": true, "image/webp": true,
	"image/heic": true, "image/heif": true,
}

// fetchImageData downloads an attached image. Only http(s) paths are fetched.
func (a *geminiDoubtAssistant) fetchImageData(ctx context.Context, imageURL string) ([]byte, string, error) {
	if !strings.HasPrefix(imageURL, "http://") && !strings.HasPrefix(imageURL, "https://") {
		return nil, "", fmt.Errorf("image %q is not a URL", imageURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch image from URL %s: %w", imageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to fetch image (status %d) from URL %s", resp.StatusCode, imageURL)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image data from URL %s: %w", imageURL, err)
	}

	mimeType := ""
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if parsed, _, err := mime.ParseMediaType(ct); err == nil {
			mimeType = parsed
		}
	}
	if !supportedImageTypes[mimeType] {
		mimeType = mime.TypeByExtension(filepath.Ext(imageURL))
	}
	if !supportedImageTypes[mimeType] {
		return nil, "", fmt.Errorf("unsupported image MIME type %q for %s", mimeType, imageURL)
	}
	return data, mimeType, nil
}

// buildDoubtPrompt renders the instructions sent with a doubt.
func buildDoubtPrompt(doubt *model.Doubt, question *model.Question) string {
	var b strings.Builder
	b.WriteString("You are an experienced teacher helping a student preparing for a competitive entrance exam.\n")
	if doubt.Subject.Name != "" {
		fmt.Fprintf(&b, "Subject: %s\n", doubt.Subject.Name)
	}
	b.WriteString("\nThe student asked:\n---\n")
	fmt.Fprintf(&b, "%s\n\n%s\n", doubt.Title, doubt.Description)
	b.WriteString("---\n")

	if question != nil {
		b.WriteString("\nThe doubt refers to this question:\n---\n")
		b.WriteString(question.Text)
		b.WriteString("\n")
		for _, opt := range []struct {
			label string
			text  *string
		}{{"A", question.OptionA}, {"B", question.OptionB}, {"C", question.OptionC}, {"D", question.OptionD}} {
			if opt.text != nil && *opt.text != "" {
				fmt.Fprintf(&b, "%s) %s\n", opt.label, *opt.text)
			}
		}
		fmt.Fprintf(&b, "Correct answer: %s\n", question.CorrectAnswer)
		b.WriteString("---\n")
	}

	b.WriteString(`
Explain the concept step by step in simple language. Point out the common mistake behind the doubt if there is one.
Keep the answer under 300 words.

Format your response strictly as:
Answer:
[Your explanation here]
`)
	return b.String()
}

// parseDraft strips the "Answer:" label from a model response.
func parseDraft(raw string) string {
	text := strings.TrimSpace(raw)
	if i := strings.Index(strings.ToLower(text), "answer:"); i >= 0 && i < 20 {
		text = strings.TrimSpace(text[i+len("answer:"):])
	}
	return text
}

func (a *geminiDoubtAssistant) DraftAnswer(ctx context.Context, doubt *model.Doubt, question *model.Question) (string, error) {
	if a.client == nil {
		return "", fmt.Errorf("%w: AI assistant is not configured", ErrUnavailable)
	}

	var parts []genai.Part
	if doubt.ImagePath != nil && *doubt.ImagePath != "" {
		data, mimeType, err := a.fetchImageData(ctx, *doubt.ImagePath)
		if err != nil {
			log.Warn().Err(err).Uint("doubtID", doubt.ID).Msg("Drafting without the attached image")
		} else {
			parts = append(parts, genai.Blob{MIMEType: mimeType, Data: data})
		}
	}
	parts = append(parts, genai.Text(buildDoubtPrompt(doubt, question)))

	resp, err := a.client.GenerateContent(ctx, parts...)
	if err != nil {
		log.Error().Err(err).Uint("doubtID", doubt.ID).Msg("Gemini API error while drafting answer")
		return "", fmt.Errorf("%w: gemini: %v", ErrUnavailable, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		log.Warn().Uint("doubtID", doubt.ID).Msg("Gemini returned no candidates or parts in response.")
		return "", fmt.Errorf("%w: gemini returned no content", ErrUnavailable)
	}

	var full strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			full.WriteString(string(txt))
		}
	}
	answer := parseDraft(full.String())
	if answer == "" {
		return "", fmt.Errorf("%w: gemini returned no text content", ErrUnavailable)
	}
	return answer, nil
}
