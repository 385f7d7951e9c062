package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/KLM-Nandhu/bentsblog/internal/transcript"
)

var (
	ErrVideoNotFound       = errors.New("video not found")
	ErrCommentsDisabled    = errors.New("comments are disabled for this video")
	ErrCommentsUnavailable = errors.New("comments require a YouTube Data API key")
)

// VideoInfo contains YouTube video information
type VideoInfo struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Channel     string         `json:"channel"`
	ChannelID   string         `json:"channel_id,omitempty"`
	PublishedAt time.Time      `json:"published_at"`
	Duration    time.Duration  `json:"duration"`
	ViewCount   *uint64        `json:"view_count,omitempty"`
	LikeCount   *uint64        `json:"like_count,omitempty"`
	Thumbnail   string         `json:"thumbnail,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Chapters    []VideoChapter `json:"chapters,omitempty"`
	HasCaptions bool           `json:"has_captions"`
	Source      string         `json:"source"`
}

// VideoChapter represents a video chapter marker
type VideoChapter struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Title     string  `json:"title"`
}

// Views formats the view count, or "N/A" when hidden.
func (v *VideoInfo) Views() string { return formatCount(v.ViewCount) }

// Likes formats the like count, or "N/A" when hidden.
func (v *VideoInfo) Likes() string { return formatCount(v.LikeCount) }

// Published formats the publication date.
func (v *VideoInfo) Published() string {
	if v.PublishedAt.IsZero() {
		return "N/A"
	}
	return v.PublishedAt.Format("January 2, 2006")
}

// Length formats the duration as HH:MM:SS.
func (v *VideoInfo) Length() string {
	return transcript.FormatTimestamp(v.Duration.Seconds())
}

// URL is the watch page of the video.
func (v *VideoInfo) URL() string { return WatchURL(v.ID) }

func formatCount(n *uint64) string {
	if n == nil {
		return "N/A"
	}
	s := strconv.FormatUint(*n, 10)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Comment is one top-level comment thread.
type Comment struct {
	ID          string    `json:"id"`
	Author      string    `json:"author"`
	AuthorURL   string    `json:"author_url,omitempty"`
	Text        string    `json:"text"`
	TextHTML    string    `json:"text_html"`
	LikeCount   int64     `json:"like_count"`
	ReplyCount  int64     `json:"reply_count"`
	PublishedAt time.Time `json:"published_at"`
}

// MetadataProvider fetches video details and comments.
type MetadataProvider interface {
	VideoInfo(ctx context.Context, videoID string) (*VideoInfo, error)
	// Comments returns up to limit top-level comments; limit <= 0 pages until
	// the provider's page cap.
	Comments(ctx context.Context, videoID string, limit int) ([]Comment, error)
}

// DataAPI reads metadata and comments from the YouTube Data API v3.
type DataAPI struct {
	service  *youtube.Service
	limiter  *rate.Limiter
	maxPages int
	log      logrus.FieldLogger
}

// commentsPerPage is the API maximum for commentThreads.list.
const commentsPerPage = 100

// NewDataAPI creates a Data API provider. Extra options are passed to the
// service constructor (tests point it at a local endpoint).
func NewDataAPI(ctx context.Context, apiKey string, maxPages int, log logrus.FieldLogger, opts ...option.ClientOption) (*DataAPI, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating YouTube service: %w", err)
	}
	return &DataAPI{
		service:  service,
		limiter:  rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		maxPages: maxPages,
		log:      log,
	}, nil
}

// VideoInfo fetches snippet, statistics and content details for one video.
func (d *DataAPI) VideoInfo(ctx context.Context, videoID string) (*VideoInfo, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := d.service.Videos.List([]string{"snippet", "statistics", "contentDetails"}).
		Id(videoID).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("fetching video details: %w", err)
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrVideoNotFound, videoID)
	}

	item := resp.Items[0]
	info := &VideoInfo{ID: videoID, Source: "data-api"}
	if s := item.Snippet; s != nil {
		info.Title = s.Title
		info.Description = s.Description
		info.Channel = s.ChannelTitle
		info.ChannelID = s.ChannelId
		info.Tags = s.Tags
		if t, err := time.Parse(time.RFC3339, s.PublishedAt); err == nil {
			info.PublishedAt = t
		}
		if s.Thumbnails != nil {
			info.Thumbnail = bestThumbnail(s.Thumbnails)
		}
	}
	if st := item.Statistics; st != nil {
		v := st.ViewCount
		info.ViewCount = &v
		// Hidden like counts are omitted from the response.
		if st.LikeCount > 0 {
			l := st.LikeCount
			info.LikeCount = &l
		}
	}
	if cd := item.ContentDetails; cd != nil {
		if dur, err := ParseISODuration(cd.Duration); err == nil {
			info.Duration = dur
		}
		info.HasCaptions = cd.Caption == "true"
	}
	return info, nil
}

func bestThumbnail(t *youtube.ThumbnailDetails) string {
	for _, th := range []*youtube.Thumbnail{t.High, t.Medium, t.Standard, t.Maxres, t.Default} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}

// Comments pages through commentThreads.list in relevance order.
func (d *DataAPI) Comments(ctx context.Context, videoID string, limit int) ([]Comment, error) {
	var comments []Comment
	pageToken := ""

	for page := 0; d.maxPages <= 0 || page < d.maxPages; page++ {
		if err := d.limiter.Wait(ctx); err != nil {
			return comments, err
		}

		call := d.service.CommentThreads.List([]string{"snippet"}).
			VideoId(videoID).
			Order("relevance").
			TextFormat("html").
			MaxResults(commentsPerPage).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return comments, classifyCommentsError(err)
		}

		for _, item := range resp.Items {
			if c, ok := commentFromThread(item); ok {
				comments = append(comments, c)
			}
		}
		d.log.WithFields(logrus.Fields{"video_id": videoID, "page": page + 1, "comments": len(comments)}).Debug("fetched comment page")

		if limit > 0 && len(comments) >= limit {
			return comments[:limit], nil
		}
		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return comments, nil
}

func commentFromThread(item *youtube.CommentThread) (Comment, bool) {
	if item == nil || item.Snippet == nil || item.Snippet.TopLevelComment == nil || item.Snippet.TopLevelComment.Snippet == nil {
		return Comment{}, false
	}
	s := item.Snippet.TopLevelComment.Snippet
	c := Comment{
		ID:         item.Id,
		Author:     s.AuthorDisplayName,
		AuthorURL:  s.AuthorChannelUrl,
		Text:       s.TextOriginal,
		TextHTML:   s.TextDisplay,
		LikeCount:  s.LikeCount,
		ReplyCount: item.Snippet.TotalReplyCount,
	}
	if c.Text == "" {
		c.Text = s.TextDisplay
	}
	if t, err := time.Parse(time.RFC3339, s.PublishedAt); err == nil {
		c.PublishedAt = t
	}
	return c, true
}

func classifyCommentsError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusForbidden {
		for _, e := range apiErr.Errors {
			if e.Reason == "commentsDisabled" {
				return fmt.Errorf("%w: %w", ErrCommentsDisabled, err)
			}
		}
	}
	return fmt.Errorf("fetching comments: %w", err)
}

var isoDurationPattern = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// ParseISODuration parses the ISO 8601 durations the Data API reports, e.g. PT1H2M3S.
func ParseISODuration(s string) (time.Duration, error) {
	m := isoDurationPattern.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "PT" {
		return 0, fmt.Errorf("invalid ISO 8601 duration %q", s)
	}

	var d time.Duration
	units := []time.Duration{24 * time.Hour, time.Hour, time.Minute}
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, fmt.Errorf("invalid ISO 8601 duration %q: %w", s, err)
		}
		d += time.Duration(n) * unit
	}
	if m[4] != "" {
		secs, err := strconv.ParseFloat(m[4], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid ISO 8601 duration %q: %w", s, err)
		}
		d += time.Duration(secs * float64(time.Second))
	}
	return d, nil
}

// YtdlpMetadata reads metadata through yt-dlp when no Data API key is configured.
type YtdlpMetadata struct {
	log logrus.FieldLogger
}

// NewYtdlpMetadata creates a yt-dlp backed metadata provider.
func NewYtdlpMetadata(log logrus.FieldLogger) *YtdlpMetadata {
	return &YtdlpMetadata{log: log}
}

type ytdlpInfo struct {
	ID                string         `json:"id"`
	Title             string         `json:"title"`
	Description       string         `json:"description"`
	Channel           string         `json:"channel"`
	ChannelID         string         `json:"channel_id"`
	Uploader          string         `json:"uploader"`
	Duration          float64        `json:"duration"`
	ViewCount         *uint64        `json:"view_count"`
	LikeCount         *uint64        `json:"like_count"`
	Thumbnail         string         `json:"thumbnail"`
	UploadDate        string         `json:"upload_date"`
	Tags              []string       `json:"tags"`
	Chapters          []VideoChapter `json:"chapters"`
	Subtitles         map[string]any `json:"subtitles"`
	AutomaticCaptions map[string]any `json:"automatic_captions"`
	Timestamp         json.Number    `json:"timestamp"`
}

// VideoInfo fetches video details using go-ytdlp
func (y *YtdlpMetadata) VideoInfo(ctx context.Context, videoID string) (*VideoInfo, error) {
	if err := transcript.EnsureYtdlp(ctx); err != nil {
		return nil, err
	}

	result, err := ytdlp.New().
		DumpSingleJSON().
		NoPlaylist().
		SkipDownload().
		Run(ctx, WatchURL(videoID))
	if err != nil {
		if result != nil && result.Stderr != "" {
			y.log.WithField("stderr", strings.TrimSpace(result.Stderr)).Debug("yt-dlp metadata extraction failed")
		}
		return nil, fmt.Errorf("extracting video metadata: %w", err)
	}

	return parseYtdlpInfo(videoID, []byte(result.Stdout))
}

func parseYtdlpInfo(videoID string, data []byte) (*VideoInfo, error) {
	var raw ytdlpInfo
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing video metadata: %w", err)
	}

	info := &VideoInfo{
		ID:          videoID,
		Title:       raw.Title,
		Description: raw.Description,
		Channel:     raw.Channel,
		ChannelID:   raw.ChannelID,
		Duration:    time.Duration(raw.Duration * float64(time.Second)),
		ViewCount:   raw.ViewCount,
		LikeCount:   raw.LikeCount,
		Thumbnail:   raw.Thumbnail,
		Tags:        raw.Tags,
		Chapters:    raw.Chapters,
		HasCaptions: len(raw.Subtitles) > 0 || len(raw.AutomaticCaptions) > 0,
		Source:      "yt-dlp",
	}
	if info.Channel == "" {
		info.Channel = raw.Uploader
	}
	if ts, err := raw.Timestamp.Int64(); err == nil && ts > 0 {
		info.PublishedAt = time.Unix(ts, 0).UTC()
	} else if t, err := time.Parse("20060102", raw.UploadDate); err == nil {
		info.PublishedAt = t
	}
	return info, nil
}

// Comments is unsupported without the Data API.
func (y *YtdlpMetadata) Comments(context.Context, string, int) ([]Comment, error) {
	return nil, ErrCommentsUnavailable
}

// DownloadAudio fetches the lowest-quality mp3 audio track for Whisper into dir.
func DownloadAudio(ctx context.Context, dir, videoID string, log logrus.FieldLogger) (string, error) {
	if err := transcript.EnsureYtdlp(ctx); err != nil {
		return "", err
	}
	if err := EnsureDirs(dir); err != nil {
		return "", fmt.Errorf("creating audio directory: %w", err)
	}

	result, err := ytdlp.New().
		Format("bestaudio").
		ExtractAudio().
		AudioFormat("mp3").
		AudioQuality("10").
		NoPlaylist().
		Output(filepath.Join(dir, "%(id)s.%(ext)s")).
		Run(ctx, WatchURL(videoID))
	if err != nil {
		if result != nil && result.Stderr != "" {
			return "", fmt.Errorf("yt-dlp failed: %w: %s", err, strings.TrimSpace(result.Stderr))
		}
		return "", fmt.Errorf("yt-dlp failed: %w", err)
	}

	outputFile := filepath.Join(dir, videoID+".mp3")
	if !FileExists(outputFile) {
		return "", fmt.Errorf("audio file not written: %s", outputFile)
	}
	log.WithField("file", outputFile).Debug("audio downloaded")
	return outputFile, nil
}
