package internal

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testResult() *BlogResult {
	views, likes := uint64(1500), uint64(42)
	return &BlogResult{
		Video: &VideoInfo{
			ID:          "dQw4w9WgXcQ",
			Title:       "Tips & Tricks",
			Channel:     "Gophers",
			PublishedAt: time.Date(2024, time.March, 9, 0, 0, 0, 0, time.UTC),
			Duration:    10*time.Minute + 5*time.Second,
			ViewCount:   &views,
			LikeCount:   &likes,
			Thumbnail:   "https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg",
		},
		Method:    "direct",
		Organized: "Starting timestamp: 00:00:00\nTranscript: hello",
		Post:      "## Introduction\n\nSee https://go.dev for more.\n\n<script>alert(1)</script>\n",
		Comments: []Comment{
			{Author: "Ann", TextHTML: `<b>Great</b> video<script>alert(2)</script>`, LikeCount: 10, PublishedAt: time.Date(2024, time.May, 1, 8, 0, 0, 0, time.UTC)},
			{Author: "Bob", Text: "plain <text>", LikeCount: 3},
			{Author: "Cat", Text: "third", LikeCount: 1},
		},
		Elapsed: 12340 * time.Millisecond,
	}
}

func TestArticleHTML(t *testing.T) {
	r, err := NewRenderer(5)
	require.NoError(t, err)

	out := string(r.ArticleHTML("## Key Points\n\nVisit https://example.com today.\n\n<script>alert(1)</script><img src=x onerror=alert(1)>"))
	assert.Contains(t, out, ">Key Points</h2>")
	assert.Contains(t, out, `href="https://example.com"`)
	assert.Contains(t, out, `target="_blank"`)
	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "onerror")
}

func TestBlogPage(t *testing.T) {
	r, err := NewRenderer(2)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Blog(&buf, testResult(), false))
	page := buf.String()

	assert.Contains(t, page, "<title>Tips &amp; Tricks</title>")
	assert.Contains(t, page, "Gophers · Published March 9, 2024 · 1,500 views · 42 likes · 00:10:05")
	assert.Contains(t, page, `href="https://www.youtube.com/watch?v=dQw4w9WgXcQ"`)
	assert.Contains(t, page, `src="https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg"`)
	assert.Contains(t, page, ">Introduction</h2>")
	assert.Contains(t, page, "Blog post generated in 12.34 seconds · transcript via direct")

	assert.Contains(t, page, "<b>Great</b> video")
	assert.Contains(t, page, `Ann <span class="likes">- May 1, 2024</span>`)
	assert.Contains(t, page, `Bob <span class="likes">3 likes</span>`)
	assert.Contains(t, page, "plain &lt;text&gt;")
	assert.NotContains(t, page, "third", "comments are capped")
	assert.NotContains(t, page, "<script")
	assert.NotContains(t, page, "Organized transcript")
}

func TestBlogPageWithTranscript(t *testing.T) {
	r, err := NewRenderer(5)
	require.NoError(t, err)

	out, err := r.BlogHTML(testResult(), true)
	require.NoError(t, err)
	assert.Contains(t, string(out), "<summary>Organized transcript</summary>")
	assert.Contains(t, string(out), "Transcript: hello")
	assert.Contains(t, string(out), "third")
}

func TestIndexAndErrorPages(t *testing.T) {
	r, err := NewRenderer(5)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Index(&buf, `"><script>`, "bad input"))
	assert.Contains(t, buf.String(), `action="/blog"`)
	assert.Contains(t, buf.String(), `<p class="error">bad input</p>`)
	assert.NotContains(t, buf.String(), "<script>")

	buf.Reset()
	require.NoError(t, r.Error(&buf, "No transcript could be fetched"))
	assert.Contains(t, buf.String(), "No transcript could be fetched")
	assert.Contains(t, buf.String(), `<a href="/">Try another video</a>`)
}

func TestMarkdownDocument(t *testing.T) {
	r, err := NewRenderer(2)
	require.NoError(t, err)

	md := r.Markdown(testResult())
	lines := strings.Split(md, "\n")
	assert.Equal(t, "# Tips & Tricks", lines[0])
	assert.Contains(t, md, "*Gophers · Published March 9, 2024 · 1,500 views · 42 likes · 00:10:05*")
	assert.Contains(t, md, "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	assert.Contains(t, md, "## Introduction")
	assert.Contains(t, md, "## Top comments")
	assert.Contains(t, md, "**Ann** - May 1, 2024 (10 likes)")
	assert.Contains(t, md, "**Bob** (3 likes)\n\nplain <text>")
	assert.NotContains(t, md, "**Cat**")
	assert.True(t, strings.HasSuffix(md, "*Blog post generated in 12.34 seconds · transcript via direct*\n"))
}

func TestMarkdownWithoutComments(t *testing.T) {
	r, err := NewRenderer(5)
	require.NoError(t, err)

	res := testResult()
	res.Comments = nil
	res.Method = ""
	md := r.Markdown(res)
	assert.NotContains(t, md, "Top comments")
	assert.True(t, strings.HasSuffix(md, "*Blog post generated in 12.34 seconds*\n"))
}

func TestCommentMarkdown(t *testing.T) {
	assert.Equal(t, "**Great** video", CommentMarkdown(Comment{TextHTML: "<b>Great</b> video", Text: "Great video"}))
	assert.Equal(t, "[link](https://go.dev)", CommentMarkdown(Comment{TextHTML: `<a href="https://go.dev">link</a>`}))
	assert.Equal(t, "plain", CommentMarkdown(Comment{Text: "plain"}))
}

func TestWriteMarkdownPlainWhenNotTerminal(t *testing.T) {
	if IsTerminal() {
		t.Skip("stdout is a terminal")
	}
	var buf bytes.Buffer
	require.NoError(t, WriteMarkdown(&buf, "# Title\n"))
	assert.Equal(t, "# Title\n", buf.String())
}
