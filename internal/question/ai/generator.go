package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gurukulapp/heavenly-trial/internal/question"
)

// Config holds connection details for the AI generator service.
type Config struct {
	GeneratorURL string
	GeneratorKey string
	Timeout      time.Duration
}

// Generator implements question.Source against the external AI service.
type Generator struct {
	httpClient  *http.Client
	config      Config
	logger      zerolog.Logger
	generateURL string
}

var _ question.Source = (*Generator)(nil)

func NewGenerator(cfg Config, logger zerolog.Logger) *Generator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base := strings.TrimSuffix(cfg.GeneratorURL, "/")

	return &Generator{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		config:      cfg,
		logger:      logger.With().Str("component", "ai_generator").Logger(),
		generateURL: base + "/generate",
	}
}

// Generate requests a question set for a topic and validates its shape.
func (g *Generator) Generate(ctx context.Context, topic string, count int, difficulty string) ([]question.Question, error) {
	if g.config.GeneratorURL == "" {
		return nil, &question.GenerationError{Reason: "generator endpoint not configured"}
	}

	payload := generatorRequest{
		Topic:      topic,
		Count:      count,
		Difficulty: difficulty,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.generateURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.config.GeneratorKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.config.GeneratorKey)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, &question.GenerationError{Reason: "generator unreachable", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, &question.GenerationError{Reason: fmt.Sprintf("generator returned status %d", resp.StatusCode)}
	}

	var genResp generatorResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, &question.GenerationError{Reason: "decode generator payload", Err: err}
	}

	questions := make([]question.Question, 0, len(genResp.Quiz))
	for _, q := range genResp.Quiz {
		questions = append(questions, question.Question{
			Prompt:  q.Question,
			Options: q.Options,
			Answer:  q.Answer,
		})
	}

	if err := question.ValidatePack(questions, count); err != nil {
		return nil, err
	}
	return questions, nil
}

type generatorRequest struct {
	Topic      string `json:"topic"`
	Count      int    `json:"numQuestions"`
	Difficulty string `json:"difficulty"`
}

type generatedQuestion struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

type generatorResponse struct {
	Quiz []generatedQuestion `json:"quiz"`
}
