package meetings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Abhi1997-1/Lumen-sub000/internal/config"
	"github.com/Abhi1997-1/Lumen-sub000/internal/models"
	"github.com/Abhi1997-1/Lumen-sub000/internal/services/circuitbreaker"
	"github.com/Abhi1997-1/Lumen-sub000/internal/services/provider"
	"github.com/Abhi1997-1/Lumen-sub000/internal/services/usage"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

// KeyResolver resolves the API key to use for a user+provider pair.
type KeyResolver interface {
	HasPersonalKey(ctx context.Context, userID, providerID string) (bool, error)
	Resolve(ctx context.Context, userID, providerID string) (string, error)
}

// ProviderSource constructs providers by id.
type ProviderSource interface {
	Get(ctx context.Context, id, apiKey string) (provider.Provider, error)
}

// AudioFetcher downloads the recording to transcribe.
type AudioFetcher interface {
	FetchAudio(ctx context.Context, url string) ([]byte, string, error)
}

const (
	endpointTranscription = "transcription"
	endpointReprocess     = "reprocess"
	endpointAsk           = "ask"
)

// Orchestrator runs the transcription pipeline: plan gate, rate limit, record
// creation, then the fire-and-forget continuation that talks to the provider
// and lands the terminal state. Every provider attempt, including ones the
// rate limit policy rejects before dispatch, produces one usage row.
type Orchestrator struct {
	cfg         *config.Config
	meetings    *Service
	rateLimit   *usage.RateLimitService
	tracker     *usage.Tracker
	usageWorker *usage.Worker
	keys        KeyResolver
	registry    ProviderSource
	audio       AudioFetcher
	breakers    map[string]*circuitbreaker.CircuitBreaker

	wg sync.WaitGroup
}

func NewOrchestrator(
	cfg *config.Config,
	meetings *Service,
	rateLimit *usage.RateLimitService,
	tracker *usage.Tracker,
	usageWorker *usage.Worker,
	keys KeyResolver,
	registry ProviderSource,
	audio AudioFetcher,
	breakers map[string]*circuitbreaker.CircuitBreaker,
) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		meetings:    meetings,
		rateLimit:   rateLimit,
		tracker:     tracker,
		usageWorker: usageWorker,
		keys:        keys,
		registry:    registry,
		audio:       audio,
		breakers:    breakers,
	}
}

// CreateTranscriptionJob validates and admits a new job. Admission control
// runs before any row exists: a plan-gate rejection leaves no trace. A rate
// limit rejection happens after the meeting row is created, so the meeting is
// marked failed and the rejection lands in the usage ledger.
func (o *Orchestrator) CreateTranscriptionJob(ctx context.Context, userID string, req *models.CreateMeetingRequest) (*models.CreateMeetingResponse, error) {
	providerID := strings.ToLower(strings.TrimSpace(req.Provider))
	if providerID == "" {
		providerID = o.cfg.Pipeline.DefaultProvider
	}
	if !models.IsValidProvider(providerID) {
		return nil, models.NewValidationError(fmt.Sprintf("unknown provider %q", providerID), nil)
	}

	method := req.Method
	if method == "" {
		method = models.TranscriptionMethodServer
	}
	if method != models.TranscriptionMethodBrowser && method != models.TranscriptionMethodServer {
		return nil, models.NewValidationError(fmt.Sprintf("unknown transcription method %q", method), nil)
	}

	clientTranscript := strings.TrimSpace(req.Transcript)
	needsAudio := method == models.TranscriptionMethodServer || clientTranscript == ""
	if needsAudio && req.AudioURL == "" {
		return nil, models.NewValidationError("audio_url is required", nil)
	}
	if req.Duration < 0 {
		return nil, models.NewValidationError("duration must not be negative", nil)
	}

	// Plan gate. Long recordings are a paid feature unless the user brings
	// their own key for the default provider. Checked before any record is
	// created or counted.
	if req.Duration > o.cfg.Pipeline.MaxFreeDurationSeconds {
		hasKey, err := o.keys.HasPersonalKey(ctx, userID, o.cfg.Pipeline.DefaultProvider)
		if err != nil {
			return nil, err
		}
		if !hasKey {
			return nil, models.NewPlanLimitError(fmt.Sprintf(
				"Recordings longer than %d minutes require a Pro plan or a personal API key.",
				o.cfg.Pipeline.MaxFreeDurationSeconds/60))
		}
	}

	meeting := &models.Meeting{
		ID:                  uuid.NewString(),
		UserID:              userID,
		Title:               req.Title,
		AudioURL:            req.AudioURL,
		Duration:            req.Duration,
		Status:              models.MeetingStatusProcessing,
		Provider:            providerID,
		Model:               req.Model,
		TranscriptionMethod: method,
	}
	if err := o.meetings.Create(ctx, meeting); err != nil {
		return nil, err
	}

	limit, err := o.rateLimit.Check(ctx, userID, providerID)
	if err != nil {
		// Could not evaluate policy: fail closed and close out the record.
		if markErr := o.meetings.MarkFailed(ctx, meeting.ID, "Rate limit check failed"); markErr != nil {
			fiberlog.Errorf("failed to mark meeting %s failed: %v", meeting.ID, markErr)
		}
		return nil, err
	}
	if !limit.Allowed {
		o.tracker.RecordRejected(ctx, userID, providerID, endpointTranscription, limit.ErrorMessage)
		if markErr := o.meetings.MarkFailed(ctx, meeting.ID, limit.ErrorMessage); markErr != nil {
			fiberlog.Errorf("failed to mark meeting %s failed: %v", meeting.ID, markErr)
		}
		return nil, models.NewRateLimitError(limit.ErrorMessage, limit.UpgradePrompt)
	}

	var warning string
	if method == models.TranscriptionMethodBrowser && clientTranscript == "" {
		warning = "Browser transcript was empty; falling back to server transcription."
		fiberlog.Warnf("meeting %s: empty browser transcript, using server fallback", meeting.ID)
	}

	o.dispatch(processParams{
		meetingID:        meeting.ID,
		userID:           userID,
		providerID:       providerID,
		model:            req.Model,
		audioURL:         req.AudioURL,
		method:           method,
		clientTranscript: clientTranscript,
		endpoint:         endpointTranscription,
	})

	return &models.CreateMeetingResponse{
		Success:   true,
		MeetingID: meeting.ID,
		Warning:   warning,
	}, nil
}

// Reprocess re-runs a terminal meeting with the chosen provider and model. It
// is the only path that moves a record out of a terminal state, and it is
// always user-initiated.
func (o *Orchestrator) Reprocess(ctx context.Context, userID, meetingID string, req *models.ReprocessRequest) error {
	meeting, err := o.meetings.GetByID(ctx, meetingID, userID)
	if err != nil {
		return err
	}
	if !meeting.IsTerminal() {
		return models.NewValidationError("meeting is still processing", nil)
	}

	providerID := strings.ToLower(strings.TrimSpace(req.Provider))
	if providerID == "" {
		providerID = meeting.Provider
	}
	if !models.IsValidProvider(providerID) {
		return models.NewValidationError(fmt.Sprintf("unknown provider %q", providerID), nil)
	}
	model := req.Model
	if model == "" {
		model = meeting.Model
	}

	limit, err := o.rateLimit.Check(ctx, userID, providerID)
	if err != nil {
		return err
	}
	if !limit.Allowed {
		o.tracker.RecordRejected(ctx, userID, providerID, endpointReprocess, limit.ErrorMessage)
		return models.NewRateLimitError(limit.ErrorMessage, limit.UpgradePrompt)
	}

	if err := o.meetings.MarkReprocessing(ctx, meetingID, userID, providerID, model); err != nil {
		return err
	}

	// A reprocess reuses the stored transcript when one exists; otherwise it
	// goes back to the audio.
	o.dispatch(processParams{
		meetingID:        meetingID,
		userID:           userID,
		providerID:       providerID,
		model:            model,
		audioURL:         meeting.AudioURL,
		method:           meeting.TranscriptionMethod,
		clientTranscript: strings.TrimSpace(meeting.Transcript),
		endpoint:         endpointReprocess,
	})
	return nil
}

// Ask answers a question against a completed meeting's transcript. Synchronous:
// the caller waits for the provider response.
func (o *Orchestrator) Ask(ctx context.Context, userID, meetingID string, req *models.AskRequest) (*models.AskResponse, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, models.NewValidationError("question is required", nil)
	}

	meeting, err := o.meetings.GetByID(ctx, meetingID, userID)
	if err != nil {
		return nil, err
	}
	if meeting.Status != models.MeetingStatusCompleted || strings.TrimSpace(meeting.Transcript) == "" {
		return nil, models.NewValidationError("meeting has no transcript to ask about", nil)
	}

	providerID := strings.ToLower(strings.TrimSpace(req.Provider))
	if providerID == "" {
		providerID = o.cfg.Pipeline.DefaultProvider
	}
	if !models.IsValidProvider(providerID) {
		return nil, models.NewValidationError(fmt.Sprintf("unknown provider %q", providerID), nil)
	}

	limit, err := o.rateLimit.Check(ctx, userID, providerID)
	if err != nil {
		return nil, err
	}
	if !limit.Allowed {
		o.tracker.RecordRejected(ctx, userID, providerID, endpointAsk, limit.ErrorMessage)
		return nil, models.NewRateLimitError(limit.ErrorMessage, limit.UpgradePrompt)
	}

	apiKey, err := o.keys.Resolve(ctx, userID, providerID)
	if err != nil {
		return nil, err
	}
	prov, err := o.registry.Get(ctx, providerID, apiKey)
	if err != nil {
		return nil, err
	}

	answer, err := prov.Ask(ctx, meeting.Transcript, req.Question, req.Model)
	o.recordAttempt(userID, providerID, endpointAsk, req.Model, usageOf(answer), err)
	if err != nil {
		return nil, models.SanitizeError(err)
	}

	return &models.AskResponse{Answer: answer.Text}, nil
}

// Wait blocks until all in-flight continuations finish. Used on shutdown and
// in tests.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

type processParams struct {
	meetingID        string
	userID           string
	providerID       string
	model            string
	audioURL         string
	method           string
	clientTranscript string
	endpoint         string
}

func (o *Orchestrator) dispatch(params processParams) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.process(params)
	}()
}

// process is the detached continuation. It must never leave the meeting in
// processing: every exit path, including a panic, lands a terminal state.
func (o *Orchestrator) process(params processParams) {
	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(o.cfg.Pipeline.ProcessTimeoutMs)*time.Millisecond)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			fiberlog.Errorf("panic processing meeting %s: %v", params.meetingID, r)
			wctx, cancelWrite := terminalWriteContext(ctx)
			defer cancelWrite()
			o.fail(wctx, params.meetingID, "Internal error during processing")
		}
	}()

	result, tokens, err := o.runPipeline(ctx, params)
	o.usageWorker.Submit(models.RecordUsageParams{
		UserID:       params.userID,
		Provider:     params.providerID,
		Endpoint:     params.endpoint,
		Model:        params.model,
		TokensInput:  tokens.InputTokens,
		TokensOutput: tokens.OutputTokens,
		TokensUsed:   tokens.TotalTokens,
		Success:      err == nil,
		ErrorCode:    errCode(err),
		ErrorMessage: errMessage(err),
	}, params.meetingID)

	// The pipeline context may already be dead here: its deadline expiring is
	// itself a failure cause. The terminal write must still land, so it runs
	// on its own deadline detached from the pipeline's cancellation.
	wctx, cancelWrite := terminalWriteContext(ctx)
	defer cancelWrite()

	if err != nil {
		fiberlog.Errorf("meeting %s processing failed: %v", params.meetingID, err)
		o.fail(wctx, params.meetingID, diagnosticFor(err))
		return
	}

	if err := o.meetings.MarkCompleted(wctx, params.meetingID, *result); err != nil {
		fiberlog.Errorf("failed to persist result for meeting %s: %v", params.meetingID, err)
	}
}

func terminalWriteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
}

// runPipeline does the provider work and returns the result plus the token
// total across both calls. It does not touch meeting status.
func (o *Orchestrator) runPipeline(ctx context.Context, params processParams) (*models.MeetingResult, provider.TokenUsage, error) {
	var tokens provider.TokenUsage

	apiKey, err := o.keys.Resolve(ctx, params.userID, params.providerID)
	if err != nil {
		return nil, tokens, err
	}

	breaker := o.breakers[params.providerID]
	if breaker != nil && !breaker.Allow(ctx) {
		return nil, tokens, models.NewCircuitBreakerError(params.providerID)
	}

	prov, err := o.registry.Get(ctx, params.providerID, apiKey)
	if err != nil {
		return nil, tokens, err
	}

	transcript := params.clientTranscript
	if transcript == "" {
		data, mimeType, err := o.audio.FetchAudio(ctx, params.audioURL)
		if err != nil {
			return nil, tokens, err
		}
		transcription, err := prov.Transcribe(ctx, provider.AudioInput{
			Data:     data,
			MIMEType: mimeType,
			FileName: "meeting-audio",
		})
		if err != nil {
			o.recordOutcome(ctx, breaker, err)
			return nil, tokens, err
		}
		addUsage(&tokens, transcription.Usage)
		transcript = strings.TrimSpace(transcription.Text)
		if transcript == "" {
			o.recordOutcome(ctx, breaker, nil)
			return nil, tokens, models.NewProviderError(params.providerID, "transcription returned no text", nil)
		}
	}

	analysis, err := prov.Analyze(ctx, transcript, params.model)
	o.recordOutcome(ctx, breaker, err)
	if err != nil {
		return nil, tokens, err
	}
	addUsage(&tokens, analysis.Usage)

	actionItems, err := json.Marshal(analysis.ActionItems)
	if err != nil {
		actionItems = []byte("[]")
	}

	return &models.MeetingResult{
		Transcript:   transcript,
		Summary:      analysis.Summary,
		ActionItems:  string(actionItems),
		InputTokens:  tokens.InputTokens,
		OutputTokens: tokens.OutputTokens,
		TotalTokens:  tokens.TotalTokens,
	}, tokens, nil
}

func (o *Orchestrator) fail(ctx context.Context, meetingID, diagnostic string) {
	if err := o.meetings.MarkFailed(ctx, meetingID, diagnostic); err != nil {
		fiberlog.Errorf("failed to mark meeting %s failed: %v", meetingID, err)
	}
}

func (o *Orchestrator) recordOutcome(ctx context.Context, breaker *circuitbreaker.CircuitBreaker, err error) {
	if breaker == nil {
		return
	}
	if err != nil {
		breaker.RecordFailure(ctx)
	} else {
		breaker.RecordSuccess(ctx)
	}
}

func addUsage(total *provider.TokenUsage, u provider.TokenUsage) {
	total.InputTokens += u.InputTokens
	total.OutputTokens += u.OutputTokens
	total.TotalTokens += u.TotalTokens
}

func usageOf(answer *provider.Answer) provider.TokenUsage {
	if answer == nil {
		return provider.TokenUsage{}
	}
	return answer.Usage
}

func (o *Orchestrator) recordAttempt(userID, providerID, endpoint, model string, tokens provider.TokenUsage, err error) {
	o.usageWorker.Submit(models.RecordUsageParams{
		UserID:       userID,
		Provider:     providerID,
		Endpoint:     endpoint,
		Model:        model,
		TokensInput:  tokens.InputTokens,
		TokensOutput: tokens.OutputTokens,
		TokensUsed:   tokens.TotalTokens,
		Success:      err == nil,
		ErrorCode:    errCode(err),
		ErrorMessage: errMessage(err),
	}, uuid.NewString())
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// errCode extracts the machine-readable code for the usage row, e.g.
// PROVIDER_gemini_ERROR or CIRCUIT_BREAKER_OPEN. Untyped errors carry none.
func errCode(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// diagnosticFor turns a pipeline error into the short message stored on the
// failed meeting. Typed errors keep their user-facing message; anything else
// gets a generic one so provider internals never leak into the record.
func diagnosticFor(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Processing failed due to an unexpected error"
}
