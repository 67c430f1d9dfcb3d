package provider

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Abhi1997-1/Lumen-sub000/internal/models"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"google.golang.org/genai"
)

const (
	geminiDefaultModel = "gemini-2.0-flash"

	// Uploaded files sit in a "processing" state before they are usable.
	// Polling is bounded: past the cap we return a timeout error instead of
	// hanging the pipeline on a stuck upload.
	fileReadyPollInterval = 2 * time.Second
	fileReadyMaxPolls     = 30
)

// GeminiProvider implements the full capability set through the Gemini API:
// audio transcription via the Files API plus generate, and text analysis.
type GeminiProvider struct {
	cfg    models.ProviderConfig
	client *genai.Client
}

func NewGeminiProvider(ctx context.Context, cfg models.ProviderConfig, apiKey string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{cfg: cfg, client: client}, nil
}

func (p *GeminiProvider) Name() string {
	return models.ProviderGemini
}

func (p *GeminiProvider) Capabilities() models.ProviderCapabilities {
	return models.ProviderCapabilities{Transcribe: true, Analyze: true, Ask: true}
}

func (p *GeminiProvider) Transcribe(ctx context.Context, audio AudioInput) (*Transcription, error) {
	if len(audio.Data) == 0 {
		return nil, models.NewValidationError("audio payload is empty", nil)
	}

	file, err := p.client.Files.Upload(ctx, bytes.NewReader(audio.Data), &genai.UploadFileConfig{
		MIMEType: audio.MIMEType,
	})
	if err != nil {
		return nil, models.NewProviderError(p.Name(), "audio upload failed", err)
	}

	file, err = p.waitForFile(ctx, file)
	if err != nil {
		return nil, err
	}

	parts := []*genai.Part{
		genai.NewPartFromURI(file.URI, file.MIMEType),
		genai.NewPartFromText("Transcribe this audio recording verbatim. Output only the transcript text."),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := p.client.Models.GenerateContent(ctx, p.model(""), contents, nil)
	if err != nil {
		return nil, models.NewProviderError(p.Name(), "transcription request failed", err)
	}

	return &Transcription{
		Text:  strings.TrimSpace(resp.Text()),
		Usage: geminiUsage(resp),
	}, nil
}

func (p *GeminiProvider) Analyze(ctx context.Context, transcript, model string) (*Analysis, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(analyzeSystemPrompt, genai.RoleUser),
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model(model), genai.Text(analyzeUserPrompt(transcript)), config)
	if err != nil {
		return nil, models.NewProviderError(p.Name(), "analyze request failed", err)
	}

	summary, actionItems := parseAnalysis(resp.Text())
	return &Analysis{
		Summary:     summary,
		ActionItems: actionItems,
		Usage:       geminiUsage(resp),
	}, nil
}

func (p *GeminiProvider) Ask(ctx context.Context, transcript, question, model string) (*Answer, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(askSystemPrompt, genai.RoleUser),
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model(model), genai.Text(askUserPrompt(transcript, question)), config)
	if err != nil {
		return nil, models.NewProviderError(p.Name(), "ask request failed", err)
	}

	return &Answer{
		Text:  strings.TrimSpace(resp.Text()),
		Usage: geminiUsage(resp),
	}, nil
}

// waitForFile polls until the uploaded file leaves the processing state.
func (p *GeminiProvider) waitForFile(ctx context.Context, file *genai.File) (*genai.File, error) {
	for poll := 0; poll < fileReadyMaxPolls; poll++ {
		switch file.State {
		case genai.FileStateActive:
			return file, nil
		case genai.FileStateFailed:
			return nil, models.NewProviderError(p.Name(), fmt.Sprintf("file %s failed processing", file.Name), nil)
		}

		select {
		case <-ctx.Done():
			return nil, models.NewTimeoutError("gemini file processing", ctx.Err())
		case <-time.After(fileReadyPollInterval):
		}

		var err error
		file, err = p.client.Files.Get(ctx, file.Name, nil)
		if err != nil {
			return nil, models.NewProviderError(p.Name(), "failed to poll file state", err)
		}
		fiberlog.Debugf("gemini file %s state=%s poll=%d", file.Name, file.State, poll+1)
	}

	return nil, models.NewTimeoutError("gemini file processing", nil)
}

func (p *GeminiProvider) model(override string) string {
	if override != "" {
		return override
	}
	if p.cfg.DefaultModel != "" {
		return p.cfg.DefaultModel
	}
	return geminiDefaultModel
}

func geminiUsage(resp *genai.GenerateContentResponse) TokenUsage {
	if resp == nil || resp.UsageMetadata == nil {
		return TokenUsage{}
	}
	return TokenUsage{
		InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
		OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
	}
}
