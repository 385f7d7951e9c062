package internal

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KLM-Nandhu/bentsblog/internal/transcript"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	return &Config{
		ReorganizeModel:       "reorg-model",
		BlogModel:             "blog-model",
		ReorganizeMaxTokens:   2000,
		BlogMaxTokens:         1000,
		BlogTranscriptChars:   2000,
		ChunkSize:             10000,
		ReorganizeConcurrency: 2,
		LLMTimeout:            time.Minute,
		WhisperTimeout:        time.Minute,
		Languages:             []string{"en"},
		CommentLimit:          5,
		ServeAddr:             ":0",
		ConfigDir:             filepath.Join(dir, "config"),
		DataDir:               filepath.Join(dir, "data"),
		CacheDir:              filepath.Join(dir, "cache"),
		TempDir:               filepath.Join(dir, "cache", "temp_chunks"),
	}
}

func okMethod(name string, tr transcript.Transcript) transcript.Method {
	return transcript.MethodFunc{MethodName: name, Func: func(context.Context, string) (transcript.Transcript, error) {
		return tr, nil
	}}
}

func failMethod(name string) transcript.Method {
	return transcript.MethodFunc{MethodName: name, Func: func(context.Context, string) (transcript.Transcript, error) {
		return nil, errors.New(name + " blocked")
	}}
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func keepOrder([]transcript.Method) {}

// blogLLM answers reorganize calls and blog calls differently.
func blogLLM() *fakeLLM {
	return &fakeLLM{reply: func(req ChatRequest) (string, error) {
		if req.Model == "blog-model" {
			return "## Introduction\n\nA post.", nil
		}
		return "organized: " + chunkMarker(req.Prompt), nil
	}}
}

func newTestApp(t *testing.T, provider MetadataProvider, client OpenAIClientInterface, methods ...transcript.Method) *App {
	t.Helper()
	config := testConfig(t)
	log, _ := test.NewNullLogger()
	ai := NewAI(client, NewPromptManager("", nil), nil, SettingsFromConfig(config), log)

	app, err := NewApp(config, log,
		WithProvider(provider),
		WithAI(ai),
		WithRegistry(transcript.NewRegistry(methods...)),
		WithUI(NewSilentUIManager()),
		WithDriverOptions(transcript.WithSleeper(noSleep), transcript.WithShuffler(keepOrder)),
	)
	require.NoError(t, err)
	return app
}

func sampleTranscript() transcript.Transcript {
	return transcript.Transcript{
		{Text: "welcome", Start: 0, Duration: 2},
		{Text: "to the talk", Start: 2, Duration: 3},
	}
}

func TestGenerate(t *testing.T) {
	provider := &countingProvider{}
	app := newTestApp(t, provider, blogLLM(), failMethod("direct"), okMethod("relay", sampleTranscript()))

	res, err := app.Generate(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)

	assert.Equal(t, "Title dQw4w9WgXcQ", res.Video.Title)
	assert.Equal(t, "relay", res.Method)
	assert.Equal(t, sampleTranscript(), res.Transcript)
	assert.Equal(t, "organized: 00:00:00: welcome 00:00:02: to the talk", res.Organized)
	assert.Equal(t, "## Introduction\n\nA post.", res.Post)
	require.Len(t, res.Comments, 1)
	assert.Positive(t, res.Elapsed)
}

func TestGenerateCommentsFailureIsNotFatal(t *testing.T) {
	provider := &countingProvider{commentsError: ErrCommentsDisabled}
	app := newTestApp(t, provider, blogLLM(), okMethod("direct", sampleTranscript()))

	res, err := app.Generate(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Empty(t, res.Comments)
	assert.NotEmpty(t, res.Post)
}

func TestGenerateAllMethodsExhausted(t *testing.T) {
	client := blogLLM()
	app := newTestApp(t, &countingProvider{}, client, failMethod("direct"), failMethod("proxy"))

	_, err := app.Generate(context.Background(), "dQw4w9WgXcQ")
	require.ErrorIs(t, err, transcript.ErrAllMethodsExhausted)
	assert.Empty(t, client.all(), "no LLM calls without a transcript")
	assert.Contains(t, UserMessage(err), "every retrieval method failed")
}

func TestGenerateMetadataFailureIsFatal(t *testing.T) {
	app := newTestApp(t, &countingProvider{}, blogLLM(), okMethod("direct", sampleTranscript()))

	_, err := app.Generate(context.Background(), "missing0000")
	assert.ErrorIs(t, err, ErrVideoNotFound)
}

func TestGenerateBlogFailure(t *testing.T) {
	client := &fakeLLM{reply: func(req ChatRequest) (string, error) {
		if req.Model == "blog-model" {
			return "", fmt.Errorf("slow: %w", context.DeadlineExceeded)
		}
		return "organized", nil
	}}
	app := newTestApp(t, &countingProvider{}, client, okMethod("direct", sampleTranscript()))

	_, err := app.Generate(context.Background(), "dQw4w9WgXcQ")
	require.ErrorIs(t, err, ErrLLMTimeout)
	assert.Equal(t, "The language model took too long to respond. Please try again.", UserMessage(err))
}

func TestGenerateWithSuppliedTranscript(t *testing.T) {
	var calls atomic.Int32
	method := transcript.MethodFunc{MethodName: "direct", Func: func(context.Context, string) (transcript.Transcript, error) {
		calls.Add(1)
		return sampleTranscript(), nil
	}}
	app := newTestApp(t, &countingProvider{}, blogLLM(), method)

	res, err := app.GenerateWith(context.Background(), "dQw4w9WgXcQ", transcript.Transcript{{Text: "from audio"}}, WhisperMethodName)
	require.NoError(t, err)
	assert.Equal(t, WhisperMethodName, res.Method)
	assert.Equal(t, "organized: 00:00:00: from audio", res.Organized)
	assert.Zero(t, calls.Load())
}

func TestAppTranscript(t *testing.T) {
	app := newTestApp(t, &countingProvider{}, blogLLM(), failMethod("direct"), okMethod("headers", sampleTranscript()))

	tr, method, err := app.Transcript(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "headers", method)
	assert.Len(t, tr, 2)
	assert.Equal(t, []string{"direct", "headers"}, app.Methods())
}

func TestDefaultRegistry(t *testing.T) {
	config := testConfig(t)
	config.Methods = []string{"direct", "whisper", "ytdlp"}
	log, _ := test.NewNullLogger()

	app, err := NewApp(config, log, WithProvider(&countingProvider{}), WithUI(NewSilentUIManager()))
	require.NoError(t, err)
	assert.Equal(t, []string{"direct", "ytdlp", WhisperMethodName}, app.Methods())

	config = testConfig(t)
	app, err = NewApp(config, log, WithProvider(&countingProvider{}), WithWhisperFallback(true))
	require.NoError(t, err)
	assert.Equal(t, append(append([]string{}, transcript.DefaultMethods...), WhisperMethodName), app.Methods())

	config = testConfig(t)
	config.Methods = []string{"carrier-pigeon"}
	_, err = NewApp(config, log, WithProvider(&countingProvider{}))
	assert.ErrorContains(t, err, "unknown transcript method")
}

func TestNewAppDefaultProviderIsCached(t *testing.T) {
	log, _ := test.NewNullLogger()
	app, err := NewApp(testConfig(t), log, WithUI(NewSilentUIManager()))
	require.NoError(t, err)
	defer app.Close()

	cached, ok := app.provider.(*CachedProvider)
	require.True(t, ok)
	assert.IsType(t, &YtdlpMetadata{}, cached.MetadataProvider)
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("x: %w", ErrInvalidVideo), "Please enter a valid YouTube URL or video ID."},
		{ErrVideoNotFound, "That video could not be found. It may be private or deleted."},
		{ErrCommentsUnavailable, "Comments need a YouTube Data API key (set YOUTUBE_API_KEY)."},
		{ErrCommentsDisabled, "Comments are disabled for this video."},
		{&LLMError{Op: "x", Kind: ErrLLMRateLimited, Err: errors.New("429")}, "The language model is rate limited right now. Please try again in a minute."},
		{&LLMError{Op: "x", Kind: ErrLLMContentPolicy, Err: errors.New("no")}, "The language model declined to process this video's content."},
		{&LLMError{Op: "x", Kind: ErrLLMFailed, Err: errors.New("500")}, "The language model request failed: 500"},
		{context.Canceled, "The request was cancelled."},
		{errors.New("disk full"), "An unexpected error occurred: disk full"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, UserMessage(tt.err))
	}
}
