package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/KLM-Nandhu/bentsblog/internal/transcript"
)

// MCPServer wraps the MCP server and application dependencies
type MCPServer struct {
	svc       BlogService
	log       logrus.FieldLogger
	mcpServer *server.MCPServer
}

// NewMCPServer creates a new MCP server instance
func NewMCPServer(svc BlogService, version string, log logrus.FieldLogger) *MCPServer {
	mcpServer := server.NewMCPServer(
		AppName,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s := &MCPServer{
		svc:       svc,
		log:       log,
		mcpServer: mcpServer,
	}
	s.registerTools()
	return s
}

// registerTools registers all available MCP tools
func (s *MCPServer) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("get_video_metadata",
		mcp.WithDescription("Get YouTube video metadata: title, channel, publication date, views, likes, duration, description and caption availability."),
		mcp.WithString("url",
			mcp.Description("YouTube video URL or ID"),
			mcp.Required(),
		),
	), s.handleGetMetadata)

	s.mcpServer.AddTool(mcp.NewTool("get_video_transcript",
		mcp.WithDescription("Get the video transcript as timestamped text. Several retrieval methods are tried in random order until one succeeds; the response names the method used. Fails only when every method fails."),
		mcp.WithString("url",
			mcp.Description("YouTube video URL or ID"),
			mcp.Required(),
		),
		mcp.WithString("format",
			mcp.Description("Output format: 'text' (HH:MM:SS: line entries) or 'json' (segments with start and duration)"),
			mcp.Enum("text", "json"),
		),
	), s.handleGetTranscript)

	s.mcpServer.AddTool(mcp.NewTool("get_video_comments",
		mcp.WithDescription("Get top-level comments in relevance order. Requires a YouTube Data API key."),
		mcp.WithString("url",
			mcp.Description("YouTube video URL or ID"),
			mcp.Required(),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of comments (default 5)"),
		),
	), s.handleGetComments)

	s.mcpServer.AddTool(mcp.NewTool("generate_blog_post",
		mcp.WithDescription("Write a Markdown blog post from a YouTube video: fetches the transcript, reorganizes it with an LLM and drafts an article with introduction, key points and conclusion (PAID: uses the OpenAI API)."),
		mcp.WithString("url",
			mcp.Description("YouTube video URL or ID"),
			mcp.Required(),
		),
	), s.handleGenerateBlogPost)
}

func (s *MCPServer) videoArg(request mcp.CallToolRequest) (string, *mcp.CallToolResult) {
	arg, err := request.RequireString("url")
	if err != nil {
		return "", mcp.NewToolResultError("url parameter is required and must be a string")
	}
	videoID, err := ParseVideoArg(arg)
	if err != nil {
		return "", mcp.NewToolResultError(UserMessage(err))
	}
	return videoID, nil
}

func (s *MCPServer) toolError(tool, videoID string, err error) *mcp.CallToolResult {
	s.log.WithError(err).WithFields(logrus.Fields{"tool": tool, "video_id": videoID}).Warn("tool call failed")
	return mcp.NewToolResultErrorFromErr(UserMessage(err), err)
}

// handleGetMetadata implements the get_video_metadata tool
func (s *MCPServer) handleGetMetadata(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	videoID, errResult := s.videoArg(request)
	if errResult != nil {
		return errResult, nil
	}

	info, err := s.svc.Metadata(ctx, videoID)
	if err != nil {
		return s.toolError("get_video_metadata", videoID, err), nil
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, "Title: %s\n", info.Title)
	fmt.Fprintf(&buf, "Channel: %s\n", info.Channel)
	fmt.Fprintf(&buf, "Published: %s\n", info.Published())
	fmt.Fprintf(&buf, "Views: %s\n", info.Views())
	fmt.Fprintf(&buf, "Likes: %s\n", info.Likes())
	fmt.Fprintf(&buf, "Duration: %s\n", info.Length())
	fmt.Fprintf(&buf, "Has Captions: %t\n", info.HasCaptions)
	if info.Thumbnail != "" {
		fmt.Fprintf(&buf, "Thumbnail: %s\n", info.Thumbnail)
	}
	if len(info.Tags) > 0 {
		fmt.Fprintf(&buf, "Tags: %s\n", strings.Join(info.Tags, ", "))
	}
	for _, ch := range info.Chapters {
		fmt.Fprintf(&buf, "Chapter (%s-%s): %s\n", transcript.FormatTimestamp(ch.StartTime), transcript.FormatTimestamp(ch.EndTime), ch.Title)
	}
	fmt.Fprintf(&buf, "Description: %s\n", info.Description)

	return mcp.NewToolResultText(buf.String()), nil
}

// handleGetTranscript implements the get_video_transcript tool
func (s *MCPServer) handleGetTranscript(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	videoID, errResult := s.videoArg(request)
	if errResult != nil {
		return errResult, nil
	}

	t, method, err := s.svc.Transcript(ctx, videoID)
	if err != nil {
		return s.toolError("get_video_transcript", videoID, err), nil
	}
	s.log.WithFields(logrus.Fields{"video_id": videoID, "method": method, "segments": len(t)}).Info("transcript served")

	if request.GetString("format", "text") == "json" {
		data, err := json.Marshal(struct {
			VideoID  string                `json:"video_id"`
			Method   string                `json:"method"`
			Segments transcript.Transcript `json:"segments"`
		}{videoID, method, t})
		if err != nil {
			return mcp.NewToolResultErrorFromErr("encoding transcript", err), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Method: %s\n\n%s", method, transcript.Text(t))), nil
}

// handleGetComments implements the get_video_comments tool
func (s *MCPServer) handleGetComments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	videoID, errResult := s.videoArg(request)
	if errResult != nil {
		return errResult, nil
	}

	limit := request.GetInt("limit", 5)
	comments, err := s.svc.Comments(ctx, videoID, limit)
	if err != nil {
		return s.toolError("get_video_comments", videoID, err), nil
	}
	if len(comments) == 0 {
		return mcp.NewToolResultText("No comments."), nil
	}

	var buf strings.Builder
	for i, c := range comments {
		fmt.Fprintf(&buf, "%d. %s (%d likes)\n%s\n\n", i+1, c.Author, c.LikeCount, CommentMarkdown(c))
	}
	return mcp.NewToolResultText(strings.TrimSpace(buf.String())), nil
}

// handleGenerateBlogPost implements the generate_blog_post tool
func (s *MCPServer) handleGenerateBlogPost(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	videoID, errResult := s.videoArg(request)
	if errResult != nil {
		return errResult, nil
	}

	res, err := s.svc.Generate(ctx, videoID)
	if err != nil {
		return s.toolError("generate_blog_post", videoID, err), nil
	}
	return mcp.NewToolResultText(s.svc.Renderer().Markdown(res)), nil
}

// Start starts the MCP server using the specified transport
func (s *MCPServer) Start(ctx context.Context, transport string, port int) error {
	if transport == "http" {
		httpServer := server.NewStreamableHTTPServer(s.mcpServer)
		addr := fmt.Sprintf(":%d", port)

		errCh := make(chan error, 1)
		go func() { errCh <- httpServer.Start(addr) }()
		s.log.WithField("addr", addr).Info("MCP HTTP server listening")

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			if err := httpServer.Shutdown(context.Background()); err != nil {
				return err
			}
			return nil
		}
	}

	s.log.Info("MCP stdio server starting")
	err := server.NewStdioServer(s.mcpServer).Listen(ctx, os.Stdin, os.Stdout)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// GetServer returns the underlying MCP server for advanced configuration
func (s *MCPServer) GetServer() *server.MCPServer {
	return s.mcpServer
}
