package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const classifyPrompt = `You are a financial news sentiment classifier.
Classify the sentiment of the text below for an investor in the company it
concerns. Answer with a label (positive, negative or neutral) and your
confidence between 0 and 1.

Text:
%s`

// generateFunc sends a prompt and returns the model's text reply.
type generateFunc func(ctx context.Context, prompt string) (string, error)

// GeminiClassifier asks a Gemini model for a structured verdict.
type GeminiClassifier struct {
	model    string
	generate generateFunc
}

// NewGeminiClassifier creates a classifier using the Gemini API.
func NewGeminiClassifier(ctx context.Context, apiKey, model string) (*GeminiClassifier, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(0)),
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"label": {
					Type: genai.TypeString,
					Enum: []string{string(Positive), string(Negative), string(Neutral)},
				},
				"confidence": {
					Type:    genai.TypeNumber,
					Minimum: genai.Ptr(0.0),
					Maximum: genai.Ptr(1.0),
				},
			},
			Required: []string{"label", "confidence"},
		},
	}

	return &GeminiClassifier{
		model: model,
		generate: func(ctx context.Context, prompt string) (string, error) {
			resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), config)
			if err != nil {
				return "", err
			}
			return resp.Text(), nil
		},
	}, nil
}

// Name implements Classifier.
func (c *GeminiClassifier) Name() string { return "gemini:" + c.model }

type geminiVerdict struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Classify implements Classifier.
func (c *GeminiClassifier) Classify(ctx context.Context, text string) (Classification, error) {
	reply, err := c.generate(ctx, fmt.Sprintf(classifyPrompt, text))
	if err != nil {
		return Classification{}, fmt.Errorf("gemini generate: %w", err)
	}

	// Models occasionally wrap JSON in a code fence despite the MIME type.
	reply = strings.TrimSpace(reply)
	reply = strings.TrimPrefix(reply, "```json")
	reply = strings.TrimPrefix(reply, "```")
	reply = strings.TrimSuffix(reply, "```")

	var v geminiVerdict
	if err := json.Unmarshal([]byte(reply), &v); err != nil {
		return Classification{}, fmt.Errorf("decoding gemini verdict: %w", err)
	}
	label, err := ParseLabel(v.Label)
	if err != nil {
		return Classification{}, err
	}
	return Classification{Label: label, Confidence: v.Confidence}, nil
}
