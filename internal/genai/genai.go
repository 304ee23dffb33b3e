// Package genai provides an OpenAI-backed sentiment scorer.
//
// The model is asked for a strict JSON object matching a schema reflected from
// the score struct, so the reply can be decoded without free-text parsing.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/BTreeMap/ClarityRoom/internal/models"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

const scoreSchemaName = "sentiment_score"

const instructions = `You score the sentiment of a short personal journal entry.
Return polarity in [-1, 1], where -1 is very negative, 0 is neutral and 1 is very positive.
Return subjectivity in [0, 1], where 0 is purely factual and 1 is purely personal opinion or feeling.
Score only the text you are given. Do not add commentary.`

var (
	// ErrNoAPIKey is returned when no API key is configured.
	ErrNoAPIKey = errors.New("OPENAI_API_KEY not set")
	// ErrEmptyResponse is returned when the model produced no output text.
	ErrEmptyResponse = errors.New("empty response from model")
	// ErrMalformedScore is returned when the reply does not decode to an in-range score.
	ErrMalformedScore = errors.New("malformed sentiment score")
)

// score is the structured reply requested from the model.
type score struct {
	Polarity     float64 `json:"polarity" jsonschema:"minimum=-1,maximum=1" jsonschema_description:"Sentiment polarity from -1 (negative) to 1 (positive)"`
	Subjectivity float64 `json:"subjectivity" jsonschema:"minimum=0,maximum=1" jsonschema_description:"Subjectivity from 0 (objective) to 1 (subjective)"`
}

// textGenerator returns the raw output text for one scoring request.
type textGenerator interface {
	Generate(ctx context.Context, model, instructions, input string) (string, error)
}

// responsesGenerator calls the OpenAI Responses API with a strict JSON schema.
type responsesGenerator struct {
	svc         *responses.ResponseService
	schema      map[string]interface{}
	temperature float64
}

func (g *responsesGenerator) Generate(ctx context.Context, model, instructions, input string) (string, error) {
	params := responses.ResponseNewParams{
		Model:        model,
		Instructions: openai.String(instructions),
		Temperature:  openai.Float(g.temperature),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(input, responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:        scoreSchemaName,
					Schema:      g.schema,
					Strict:      openai.Bool(true),
					Description: openai.String("Polarity and subjectivity of a journal entry"),
					Type:        "json_schema",
				},
			},
		},
	}
	resp, err := g.svc.New(ctx, params)
	if err != nil {
		return "", err
	}
	return resp.OutputText(), nil
}

// Opts holds configuration for the client.
type Opts struct {
	APIKey      string
	Model       string
	Temperature float64
	DebugMode   bool
	StateDir    string
}

// Option configures the client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key. Without it OPENAI_API_KEY is used.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(o *Opts) {
		o.Model = model
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temp float64) Option {
	return func(o *Opts) {
		o.Temperature = temp
	}
}

// WithDebugMode writes every scoring exchange to <stateDir>/debug.
func WithDebugMode(enabled bool, stateDir string) Option {
	return func(o *Opts) {
		o.DebugMode = enabled
		o.StateDir = stateDir
	}
}

// Client scores journal text using an OpenAI model. It implements
// sentiment.Analyzer.
type Client struct {
	gen       textGenerator
	model     string
	debugMode bool
	stateDir  string
}

// NewClient initializes a client. The API key comes from WithAPIKey or the
// OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		slog.Error("genai.NewClient: API key not set")
		return nil, ErrNoAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	slog.Debug("genai.NewClient: client created", "model", cfg.Model, "debug", cfg.DebugMode)
	return &Client{
		gen: &responsesGenerator{
			svc:         &cli.Responses,
			schema:      GenerateSchema[score](),
			temperature: cfg.Temperature,
		},
		model:     cfg.Model,
		debugMode: cfg.DebugMode,
		stateDir:  cfg.StateDir,
	}, nil
}

// Analyze asks the model to score text. The call is made once; failures are
// returned to the caller as is.
func (c *Client) Analyze(ctx context.Context, text string) (models.SentimentResult, error) {
	start := time.Now()
	out, err := c.gen.Generate(ctx, c.model, instructions, text)
	c.writeDebug(text, out, err, time.Since(start))
	if err != nil {
		slog.Error("Client.Analyze: model call failed", "model", c.model, "error", err)
		return models.SentimentResult{}, fmt.Errorf("sentiment request failed: %w", err)
	}
	if out == "" {
		slog.Warn("Client.Analyze: empty output", "model", c.model)
		return models.SentimentResult{}, ErrEmptyResponse
	}

	result, err := decodeScore(out)
	if err != nil {
		slog.Warn("Client.Analyze: malformed output", "model", c.model, "error", err)
		return models.SentimentResult{}, err
	}
	slog.Debug("Client.Analyze: scored", "model", c.model, "polarity", result.Polarity, "subjectivity", result.Subjectivity, "elapsed", time.Since(start))
	return result, nil
}

func decodeScore(out string) (models.SentimentResult, error) {
	var s score
	if err := json.Unmarshal([]byte(out), &s); err != nil {
		return models.SentimentResult{}, fmt.Errorf("%w: %v", ErrMalformedScore, err)
	}
	if math.IsNaN(s.Polarity) || s.Polarity < -1 || s.Polarity > 1 {
		return models.SentimentResult{}, fmt.Errorf("%w: polarity %v out of range", ErrMalformedScore, s.Polarity)
	}
	if math.IsNaN(s.Subjectivity) || s.Subjectivity < 0 || s.Subjectivity > 1 {
		return models.SentimentResult{}, fmt.Errorf("%w: subjectivity %v out of range", ErrMalformedScore, s.Subjectivity)
	}
	return models.SentimentResult{Polarity: s.Polarity, Subjectivity: s.Subjectivity}, nil
}

type debugRecord struct {
	Time      time.Time `json:"time"`
	Model     string    `json:"model"`
	InputLen  int       `json:"input_len"`
	Output    string    `json:"output"`
	Error     string    `json:"error,omitempty"`
	ElapsedMS int64     `json:"elapsed_ms"`
}

// writeDebug records the exchange when debug mode is on. Journal text itself
// is not written, only its length.
func (c *Client) writeDebug(input, output string, callErr error, elapsed time.Duration) {
	if !c.debugMode || c.stateDir == "" {
		return
	}
	rec := debugRecord{
		Time:      time.Now(),
		Model:     c.model,
		InputLen:  len(input),
		Output:    output,
		ElapsedMS: elapsed.Milliseconds(),
	}
	if callErr != nil {
		rec.Error = callErr.Error()
	}
	dir := filepath.Join(c.stateDir, "debug")
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Warn("Client.writeDebug: failed to create debug directory", "dir", dir, "error", err)
		return
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		slog.Warn("Client.writeDebug: marshal failed", "error", err)
		return
	}
	name := fmt.Sprintf("sentiment_%s.json", rec.Time.Format("20060102T150405.000000000"))
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		slog.Warn("Client.writeDebug: write failed", "error", err)
	}
}
