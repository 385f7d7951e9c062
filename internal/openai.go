package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/KLM-Nandhu/bentsblog/internal/transcript"
)

var (
	ErrLLMRateLimited   = errors.New("LLM rate limit exceeded")
	ErrLLMTimeout       = errors.New("LLM request timed out")
	ErrLLMContentPolicy = errors.New("LLM request rejected by content policy")
	ErrLLMFailed        = errors.New("LLM request failed")
)

// LLMError classifies a failed model call. errors.Is matches both the
// classification sentinel and the underlying cause.
type LLMError struct {
	Op   string
	Kind error
	Err  error
}

func (e *LLMError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *LLMError) Unwrap() []error { return []error{e.Kind, e.Err} }

// classifyLLMError wraps err in an *LLMError with a classification.
func classifyLLMError(op string, err error) error {
	if err == nil {
		return nil
	}
	kind := ErrLLMFailed

	var apiErr *openai.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = ErrLLMTimeout
	case errors.As(err, &apiErr):
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			kind = ErrLLMRateLimited
		case apiErr.StatusCode == http.StatusRequestTimeout || apiErr.StatusCode == http.StatusGatewayTimeout:
			kind = ErrLLMTimeout
		case apiErr.Code == "content_policy_violation" || apiErr.Code == "content_filter":
			kind = ErrLLMContentPolicy
		}
	}
	return &LLMError{Op: op, Kind: kind, Err: err}
}

// ChatRequest is one system+user chat completion.
type ChatRequest struct {
	Model     string
	System    string
	Prompt    string
	MaxTokens int64
}

// OpenAIClientInterface defines the interface for OpenAI client operations
type OpenAIClientInterface interface {
	CreateTranscription(ctx context.Context, audio io.Reader) (string, error)
	CreateChatCompletion(ctx context.Context, req ChatRequest) (string, error)
}

// OpenAIClient wraps the official OpenAI Go SDK
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(apiKey string) *OpenAIClient {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIClient{client: &client}
}

// CreateTranscription implements the transcription method
func (c *OpenAIClient) CreateTranscription(ctx context.Context, audio io.Reader) (string, error) {
	resp, err := c.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  audio,
		Model: openai.AudioModelWhisper1,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// CreateChatCompletion implements the chat completion method
func (c *OpenAIClient) CreateChatCompletion(ctx context.Context, req ChatRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(req.MaxTokens)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices from OpenAI")
	}
	return resp.Choices[0].Message.Content, nil
}

// LLMSettings are the model parameters the AI uses.
type LLMSettings struct {
	ReorganizeModel       string
	BlogModel             string
	ReorganizeMaxTokens   int64
	BlogMaxTokens         int64
	BlogTranscriptChars   int
	ChunkSize             int
	ReorganizeConcurrency int
	Timeout               time.Duration
	WhisperTimeout        time.Duration
	WhisperLimit          int64
}

// SettingsFromConfig extracts the LLM settings from the application config.
func SettingsFromConfig(config *Config) LLMSettings {
	return LLMSettings{
		ReorganizeModel:       config.ReorganizeModel,
		BlogModel:             config.BlogModel,
		ReorganizeMaxTokens:   config.ReorganizeMaxTokens,
		BlogMaxTokens:         config.BlogMaxTokens,
		BlogTranscriptChars:   config.BlogTranscriptChars,
		ChunkSize:             config.ChunkSize,
		ReorganizeConcurrency: config.ReorganizeConcurrency,
		Timeout:               config.LLMTimeout,
		WhisperTimeout:        config.WhisperTimeout,
		WhisperLimit:          WhisperLimit,
	}
}

// AI handles OpenAI API interactions for reorganizing, writing and transcription
type AI struct {
	client     OpenAIClientInterface
	apiKey     string
	clientOnce sync.Once
	prompts    *PromptManager
	audio      *Audio
	settings   LLMSettings
	log        logrus.FieldLogger
}

// NewAI creates a new AI processor around an existing client
func NewAI(client OpenAIClientInterface, prompts *PromptManager, audio *Audio, settings LLMSettings, log logrus.FieldLogger) *AI {
	return &AI{
		client:   client,
		prompts:  prompts,
		audio:    audio,
		settings: settings,
		log:      log,
	}
}

// NewAIWithKey creates a new AI processor with lazy client initialization
func NewAIWithKey(apiKey string, prompts *PromptManager, audio *Audio, settings LLMSettings, log logrus.FieldLogger) *AI {
	ai := NewAI(nil, prompts, audio, settings, log)
	ai.apiKey = apiKey
	return ai
}

// ensureClient initializes the OpenAI client if needed
func (ai *AI) ensureClient() error {
	ai.clientOnce.Do(func() {
		if ai.client == nil && ai.apiKey != "" {
			ai.client = NewOpenAIClient(ai.apiKey)
		}
	})
	if ai.client == nil {
		return ValidateOpenAIAPIKey("")
	}
	return nil
}

func (ai *AI) complete(ctx context.Context, op string, req ChatRequest) (string, error) {
	if ai.settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ai.settings.Timeout)
		defer cancel()
	}

	content, err := ai.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classifyLLMError(op, err)
	}
	return strings.TrimSpace(content), nil
}

// ReorganizeTranscript joins the transcript into timestamped text, splits it
// into fixed windows and has the model restructure each window. Outputs keep
// window order and are separated by a blank line. A window whose call fails
// is replaced by an error note so the rest of the article can still be built.
func (ai *AI) ReorganizeTranscript(ctx context.Context, t transcript.Transcript) (string, error) {
	return ai.ReorganizeWithProgress(ctx, t, nil)
}

// ReorganizeWithProgress is ReorganizeTranscript reporting each finished
// window to a bar created by newBar once the window count is known.
func (ai *AI) ReorganizeWithProgress(ctx context.Context, t transcript.Transcript, newBar func(total int) ProgressBar) (string, error) {
	if err := ai.ensureClient(); err != nil {
		return "", err
	}

	chunks := transcript.Chunk(transcript.Text(t), ai.settings.ChunkSize)
	if len(chunks) == 0 {
		return "", transcript.ErrEmptyTranscript
	}

	var bar ProgressBar = SilentProgressBar{}
	if newBar != nil {
		bar = newBar(len(chunks))
	}
	defer bar.Finish()

	results := make([]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	if ai.settings.ReorganizeConcurrency > 0 {
		g.SetLimit(ai.settings.ReorganizeConcurrency)
	}

	for i, chunk := range chunks {
		g.Go(func() error {
			defer bar.Advance()
			prompt, err := ai.prompts.ReorganizePrompt(chunk)
			if err != nil {
				return err
			}
			out, err := ai.complete(gctx, "reorganize transcript", ChatRequest{
				Model:     ai.settings.ReorganizeModel,
				System:    reorganizeSystemPrompt,
				Prompt:    prompt,
				MaxTokens: ai.settings.ReorganizeMaxTokens,
			})
			if err != nil {
				ai.log.WithError(err).WithField("chunk", i+1).Warn("reorganizing transcript chunk failed")
				results[i] = fmt.Sprintf("An error occurred while reorganizing part %d of the transcript: %v", i+1, err)
				return nil
			}
			results[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ai.log.WithFields(logrus.Fields{"chunks": len(chunks)}).Debug("transcript reorganized")
	return strings.Join(results, "\n\n"), nil
}

// GenerateBlogPost drafts a Markdown article from the organized transcript and metadata.
func (ai *AI) GenerateBlogPost(ctx context.Context, organized string, info *VideoInfo) (string, error) {
	if err := ai.ensureClient(); err != nil {
		return "", err
	}

	prompt, err := ai.prompts.BlogPrompt(TruncateRunes(organized, ai.settings.BlogTranscriptChars), info)
	if err != nil {
		return "", fmt.Errorf("creating prompt: %w", err)
	}

	post, err := ai.complete(ctx, "generate blog post", ChatRequest{
		Model:     ai.settings.BlogModel,
		System:    blogSystemPrompt,
		Prompt:    prompt,
		MaxTokens: ai.settings.BlogMaxTokens,
	})
	if err != nil {
		return "", err
	}
	if post == "" {
		return "", &LLMError{Op: "generate blog post", Kind: ErrLLMFailed, Err: errors.New("empty response")}
	}
	return post, nil
}

// TranscribeAudio transcribes an audio file with Whisper, producing one
// segment per uploaded chunk.
func (ai *AI) TranscribeAudio(ctx context.Context, audioFile string) (transcript.Transcript, error) {
	if err := ai.ensureClient(); err != nil {
		return nil, err
	}
	if ai.settings.WhisperTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ai.settings.WhisperTimeout)
		defer cancel()
	}

	limit := ai.settings.WhisperLimit
	if limit <= 0 {
		limit = WhisperLimit
	}
	chunks, err := ai.audio.SplitBySize(ctx, audioFile, limit)
	if err != nil {
		return nil, fmt.Errorf("splitting audio: %w", err)
	}
	defer func() {
		if len(chunks) > 1 {
			cleanupChunks(ai.log, chunks)
		}
	}()

	return ai.processAudioChunks(ctx, chunks)
}

// processAudioChunks transcribes audio chunks sequentially; concurrent
// uploads occasionally returned a garbled chunk.
func (ai *AI) processAudioChunks(ctx context.Context, chunks []AudioChunk) (transcript.Transcript, error) {
	t := make(transcript.Transcript, 0, len(chunks))
	for i, chunk := range chunks {
		file, err := os.Open(chunk.Path)
		if err != nil {
			return nil, fmt.Errorf("opening chunk %s: %w", chunk.Path, err)
		}

		text, err := ai.client.CreateTranscription(ctx, file)
		if closeErr := file.Close(); closeErr != nil {
			ai.log.WithError(closeErr).WithField("file", chunk.Path).Warn("closing audio chunk")
		}
		if err != nil {
			return nil, fmt.Errorf("transcribing chunk %d: %w", i+1, classifyLLMError("whisper", err))
		}

		t = append(t, transcript.Segment{Text: text, Start: chunk.Start, Duration: chunk.Duration})
		ai.log.WithFields(logrus.Fields{"chunk": i + 1, "of": len(chunks)}).Debug("transcribed audio chunk")
	}
	return t, nil
}
