package provider

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Abhi1997-1/Lumen-sub000/internal/models"
	"github.com/openai/openai-go/v2"
	openaiOption "github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
)

const (
	groqBaseURL = "https://api.groq.com/openai/v1"
	grokBaseURL = "https://api.x.ai/v1"

	openaiDefaultModel        = "gpt-4o-mini"
	openaiTranscriptionModel  = "whisper-1"
	groqDefaultModel          = "llama-3.3-70b-versatile"
	groqTranscriptionModel    = "whisper-large-v3"
	grokDefaultModel          = "grok-2-latest"
	defaultProviderTimeoutSec = 120
)

// openAICompatProvider serves every OpenAI-compatible vendor: OpenAI itself,
// Groq, and xAI's Grok. The vendors differ only in base URL, default models,
// and which capabilities they expose.
type openAICompatProvider struct {
	name               string
	capabilities       models.ProviderCapabilities
	client             openai.Client
	defaultModel       string
	transcriptionModel string
}

func newOpenAICompat(name string, caps models.ProviderCapabilities, cfg models.ProviderConfig, apiKey, baseURL, defaultModel, transcriptionModel string) *openAICompatProvider {
	opts := []openaiOption.RequestOption{
		openaiOption.WithAPIKey(apiKey),
	}

	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}
	if baseURL != "" {
		opts = append(opts, openaiOption.WithBaseURL(baseURL))
	}

	timeout := time.Duration(defaultProviderTimeoutSec) * time.Second
	if cfg.TimeoutMs > 0 {
		timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}
	opts = append(opts, openaiOption.WithHTTPClient(&http.Client{Timeout: timeout}))

	if cfg.DefaultModel != "" {
		defaultModel = cfg.DefaultModel
	}
	if cfg.TranscriptionModel != "" {
		transcriptionModel = cfg.TranscriptionModel
	}

	return &openAICompatProvider{
		name:               name,
		capabilities:       caps,
		client:             openai.NewClient(opts...),
		defaultModel:       defaultModel,
		transcriptionModel: transcriptionModel,
	}
}

// NewOpenAIProvider returns the OpenAI adapter (full capability set).
func NewOpenAIProvider(cfg models.ProviderConfig, apiKey string) Provider {
	return newOpenAICompat(
		models.ProviderOpenAI,
		models.ProviderCapabilities{Transcribe: true, Analyze: true, Ask: true},
		cfg, apiKey, "", openaiDefaultModel, openaiTranscriptionModel,
	)
}

// NewGroqProvider returns the Groq adapter (full capability set, whisper for
// transcription).
func NewGroqProvider(cfg models.ProviderConfig, apiKey string) Provider {
	return newOpenAICompat(
		models.ProviderGroq,
		models.ProviderCapabilities{Transcribe: true, Analyze: true, Ask: true},
		cfg, apiKey, groqBaseURL, groqDefaultModel, groqTranscriptionModel,
	)
}

// NewGrokProvider returns the xAI adapter. Grok has no transcription
// endpoint, so Transcribe fails fast.
func NewGrokProvider(cfg models.ProviderConfig, apiKey string) Provider {
	return newOpenAICompat(
		models.ProviderGrok,
		models.ProviderCapabilities{Transcribe: false, Analyze: true, Ask: true},
		cfg, apiKey, grokBaseURL, grokDefaultModel, "",
	)
}

func (p *openAICompatProvider) Name() string {
	return p.name
}

func (p *openAICompatProvider) Capabilities() models.ProviderCapabilities {
	return p.capabilities
}

func (p *openAICompatProvider) Transcribe(ctx context.Context, audio AudioInput) (*Transcription, error) {
	if !p.capabilities.Transcribe {
		return nil, models.NewUnsupportedOperationError(p.name, "transcribe")
	}
	if len(audio.Data) == 0 {
		return nil, models.NewValidationError("audio payload is empty", nil)
	}

	fileName := audio.FileName
	if fileName == "" {
		fileName = "audio.webm"
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(audio.Data), fileName, audio.MIMEType),
		Model: openai.AudioModel(p.transcriptionModel),
	})
	if err != nil {
		return nil, models.NewProviderError(p.name, "transcription request failed", err)
	}

	// Whisper-style endpoints do not report token usage.
	return &Transcription{Text: strings.TrimSpace(resp.Text)}, nil
}

func (p *openAICompatProvider) Analyze(ctx context.Context, transcript, model string) (*Analysis, error) {
	if !p.capabilities.Analyze {
		return nil, models.NewUnsupportedOperationError(p.name, "analyze")
	}

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model(model)),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(analyzeSystemPrompt),
			openai.UserMessage(analyzeUserPrompt(transcript)),
		},
	})
	if err != nil {
		return nil, models.NewProviderError(p.name, "analyze request failed", err)
	}
	if len(resp.Choices) == 0 {
		return nil, models.NewProviderError(p.name, "analyze response had no choices", nil)
	}

	summary, actionItems := parseAnalysis(resp.Choices[0].Message.Content)
	return &Analysis{
		Summary:     summary,
		ActionItems: actionItems,
		Usage: TokenUsage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
	}, nil
}

func (p *openAICompatProvider) Ask(ctx context.Context, transcript, question, model string) (*Answer, error) {
	if !p.capabilities.Ask {
		return nil, models.NewUnsupportedOperationError(p.name, "ask")
	}

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model(model)),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(askSystemPrompt),
			openai.UserMessage(askUserPrompt(transcript, question)),
		},
	})
	if err != nil {
		return nil, models.NewProviderError(p.name, "ask request failed", err)
	}
	if len(resp.Choices) == 0 {
		return nil, models.NewProviderError(p.name, "ask response had no choices", nil)
	}

	return &Answer{
		Text: strings.TrimSpace(resp.Choices[0].Message.Content),
		Usage: TokenUsage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
	}, nil
}

func (p *openAICompatProvider) model(override string) string {
	if override != "" {
		return override
	}
	return p.defaultModel
}
