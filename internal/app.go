package internal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/KLM-Nandhu/bentsblog/internal/transcript"
)

// App holds the application state and dependencies
type App struct {
	config     *Config
	log        logrus.FieldLogger
	provider   MetadataProvider
	cache      *Cache
	registry   *transcript.Registry
	driverOpts []transcript.DriverOption
	audio      *Audio
	ai         *AI
	prompts    *PromptManager
	renderer   *Renderer
	ui         UIManager
	whisper    bool
}

// BlogResult is everything produced for one video.
type BlogResult struct {
	Video      *VideoInfo            `json:"video"`
	Transcript transcript.Transcript `json:"transcript"`
	Method     string                `json:"method"`
	Organized  string                `json:"organized_transcript"`
	Post       string                `json:"post"`
	Comments   []Comment             `json:"comments"`
	Elapsed    time.Duration         `json:"elapsed"`
}

// AppOption customizes App creation
type AppOption func(*App)

// WithProvider sets the metadata and comments provider
func WithProvider(p MetadataProvider) AppOption {
	return func(a *App) { a.provider = p }
}

// WithAI sets a custom AI processor
func WithAI(ai *AI) AppOption {
	return func(a *App) { a.ai = ai }
}

// WithRegistry replaces the transcript retrieval methods
func WithRegistry(r *transcript.Registry) AppOption {
	return func(a *App) { a.registry = r }
}

// WithDriverOptions appends options to every transcript driver the app builds
func WithDriverOptions(opts ...transcript.DriverOption) AppOption {
	return func(a *App) { a.driverOpts = append(a.driverOpts, opts...) }
}

// WithUI sets the progress and status output
func WithUI(ui UIManager) AppOption {
	return func(a *App) { a.ui = ui }
}

// WithWhisperFallback adds audio transcription to the retrieval methods
func WithWhisperFallback(enabled bool) AppOption {
	return func(a *App) { a.whisper = a.whisper || enabled }
}

// WithCache sets the metadata cache
func WithCache(c *Cache) AppOption {
	return func(a *App) { a.cache = c }
}

// NewApp initializes the application
func NewApp(config *Config, log logrus.FieldLogger, options ...AppOption) (*App, error) {
	app := &App{
		config: config,
		log:    log,
		prompts: NewPromptManager(config.ConfigDir, map[string]string{
			PromptReorganize: config.ReorganizePrompt,
			PromptBlog:       config.BlogPrompt,
		}),
		audio: NewAudio(&DefaultCommandRunner{}, config.TempDir, log),
		ui:    NewUIManager(config.Verbose, config.Quiet),
	}

	for _, option := range options {
		option(app)
	}

	if app.ai == nil {
		app.ai = NewAIWithKey(config.OpenAIAPIKey, app.prompts, app.audio, SettingsFromConfig(config), log)
	}

	if app.provider == nil {
		provider, err := app.defaultProvider()
		if err != nil {
			return nil, err
		}
		if app.cache == nil {
			app.cache = NewCache(context.Background(), config.RedisURL, config.CacheTTL, log)
		}
		app.provider = NewCachedProvider(provider, app.cache)
	}

	if app.registry == nil {
		registry, err := app.defaultRegistry()
		if err != nil {
			return nil, err
		}
		app.registry = registry
	}

	if app.renderer == nil {
		renderer, err := NewRenderer(config.CommentLimit)
		if err != nil {
			return nil, err
		}
		app.renderer = renderer
	}

	return app, nil
}

func (app *App) defaultProvider() (MetadataProvider, error) {
	if app.config.YouTubeAPIKey == "" {
		app.log.Debug("no YouTube API key, reading metadata with yt-dlp")
		return NewYtdlpMetadata(app.log), nil
	}
	return NewDataAPI(context.Background(), app.config.YouTubeAPIKey, app.config.MaxCommentPages, app.log)
}

func (app *App) defaultRegistry() (*transcript.Registry, error) {
	names, whisper := splitWhisper(app.config.Methods)
	var extra []transcript.Method
	if whisper || app.whisper {
		extra = append(extra, app.WhisperMethod())
	}
	return transcript.BuildRegistry(names, transcript.MethodOptions{
		Languages:    app.config.Languages,
		HTTPTimeout:  app.config.HTTPTimeout,
		ProxyListURL: app.config.ProxyListURL,
		MaxProxies:   app.config.MaxProxies,
		ProxyTimeout: app.config.ProxyTimeout,
		RelayURL:     app.config.RelayURL,
		RelayAPIKey:  app.config.RelayAPIKey,
		BrowserPath:  app.config.BrowserPath,
		BrowserWait:  app.config.BrowserWait,
		TempDir:      app.config.TempDir,
	}, extra...)
}

// WhisperMethod returns the audio transcription retrieval method.
func (app *App) WhisperMethod() *WhisperMethod {
	return NewWhisperMethod(app.ai, app.config.TempDir, app.log)
}

// Methods names the registered transcript retrieval methods
func (app *App) Methods() []string { return app.registry.Names() }

// Renderer returns the page and Markdown renderer
func (app *App) Renderer() *Renderer { return app.renderer }

// Close releases cached connections
func (app *App) Close() error {
	return app.cache.Close()
}

// Metadata fetches video details
func (app *App) Metadata(ctx context.Context, videoID string) (*VideoInfo, error) {
	info, err := app.provider.VideoInfo(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("fetching metadata: %w", err)
	}
	return info, nil
}

// Comments fetches up to limit top-level comments
func (app *App) Comments(ctx context.Context, videoID string, limit int) ([]Comment, error) {
	return app.provider.Comments(ctx, videoID, limit)
}

func (app *App) driver(observer func(transcript.Outcome)) *transcript.Driver {
	opts := []transcript.DriverOption{
		transcript.WithDelay(app.config.DelayMin, app.config.DelayMax),
		transcript.WithMethodTimeout(app.config.MethodTimeout),
		transcript.WithLogger(app.log),
	}
	if observer != nil {
		opts = append(opts, transcript.WithObserver(observer))
	}
	opts = append(opts, app.driverOpts...)
	return transcript.NewDriver(app.registry, opts...)
}

// Transcript acquires a transcript with the shuffle-and-try driver, returning
// the name of the method that produced it.
func (app *App) Transcript(ctx context.Context, videoID string) (transcript.Transcript, string, error) {
	return app.transcriptWithStatus(ctx, videoID, app.ui.NewSpinner("Fetching transcript..."))
}

func (app *App) transcriptWithStatus(ctx context.Context, videoID string, spinner ProgressBar) (transcript.Transcript, string, error) {
	defer spinner.Finish()

	d := app.driver(func(o transcript.Outcome) {
		if !o.OK() {
			spinner.Describe(fmt.Sprintf("Fetching transcript (%s: %s, trying next)...", o.Method, o.Kind))
		}
	})
	t, method, err := d.AcquireWithMethod(ctx, videoID)
	if err != nil {
		return nil, "", err
	}
	app.ui.Verbose("Transcript via %s: %d segments\n", method, len(t))
	return t, method, nil
}

// TranscribeWithWhisper transcribes the audio track directly, bypassing the other methods.
func (app *App) TranscribeWithWhisper(ctx context.Context, videoID string) (transcript.Transcript, error) {
	spinner := app.ui.NewSpinner("Transcribing audio with Whisper...")
	defer spinner.Finish()
	return app.WhisperMethod().Fetch(ctx, videoID)
}

// Generate fetches metadata, transcript and comments concurrently, then
// reorganizes the transcript and writes the article. Metadata and transcript
// failures are fatal; a comments failure leaves the comment list empty.
func (app *App) Generate(ctx context.Context, videoID string) (*BlogResult, error) {
	return app.GenerateWith(ctx, videoID, nil, "")
}

// GenerateWith is Generate using a transcript already obtained by method
// when t is non-empty.
func (app *App) GenerateWith(ctx context.Context, videoID string, t transcript.Transcript, method string) (*BlogResult, error) {
	start := time.Now()
	res := &BlogResult{Transcript: t, Method: method}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		info, err := app.Metadata(gctx, videoID)
		if err != nil {
			return err
		}
		res.Video = info
		return nil
	})
	if t.IsEmpty() {
		g.Go(func() error {
			got, method, err := app.Transcript(gctx, videoID)
			if err != nil {
				return err
			}
			res.Transcript, res.Method = got, method
			return nil
		})
	}
	g.Go(func() error {
		comments, err := app.Comments(gctx, videoID, app.config.CommentLimit)
		if err != nil {
			if gctx.Err() == nil {
				app.log.WithError(err).WithField("video_id", videoID).Warn("comments unavailable")
			}
			return nil
		}
		res.Comments = comments
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	organized, err := app.ai.ReorganizeWithProgress(ctx, res.Transcript, func(total int) ProgressBar {
		return app.ui.NewProgressBar(total, "Reorganizing transcript")
	})
	if err != nil {
		return nil, fmt.Errorf("reorganizing transcript: %w", err)
	}
	res.Organized = organized

	spinner := app.ui.NewSpinner("Writing blog post...")
	post, err := app.ai.GenerateBlogPost(ctx, organized, res.Video)
	spinner.Finish()
	if err != nil {
		return nil, fmt.Errorf("generating blog post: %w", err)
	}
	res.Post = post
	res.Elapsed = time.Since(start)

	app.log.WithFields(logrus.Fields{
		"video_id": videoID,
		"method":   res.Method,
		"segments": len(res.Transcript),
		"comments": len(res.Comments),
		"elapsed":  res.Elapsed.Round(time.Millisecond).String(),
	}).Info("blog post generated")
	return res, nil
}

// UserMessage maps an error to the message shown to end users.
func UserMessage(err error) string {
	var llmErr *LLMError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, transcript.ErrAllMethodsExhausted):
		return "Could not fetch a transcript for this video: every retrieval method failed. Please try again later."
	case errors.Is(err, ErrInvalidVideo):
		return "Please enter a valid YouTube URL or video ID."
	case errors.Is(err, ErrVideoNotFound):
		return "That video could not be found. It may be private or deleted."
	case errors.Is(err, ErrCommentsUnavailable):
		return "Comments need a YouTube Data API key (set YOUTUBE_API_KEY)."
	case errors.Is(err, ErrCommentsDisabled):
		return "Comments are disabled for this video."
	case errors.Is(err, ErrLLMRateLimited):
		return "The language model is rate limited right now. Please try again in a minute."
	case errors.Is(err, ErrLLMTimeout):
		return "The language model took too long to respond. Please try again."
	case errors.Is(err, ErrLLMContentPolicy):
		return "The language model declined to process this video's content."
	case errors.As(err, &llmErr):
		return "The language model request failed: " + llmErr.Err.Error()
	case errors.Is(err, context.Canceled):
		return "The request was cancelled."
	default:
		return "An unexpected error occurred: " + err.Error()
	}
}
