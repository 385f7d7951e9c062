package internal

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/charmbracelet/glamour"
	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/mattn/go-isatty"
	"github.com/microcosm-cc/bluemonday"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

//go:embed templates/page.html
var templateFS embed.FS

// IndexPage is the form page.
type IndexPage struct {
	PageTitle string
	Query     string
	Error     string
}

// BlogPage is the rendered article page.
type BlogPage struct {
	PageTitle string
	Video     *VideoInfo
	Article   template.HTML
	Comments  []CommentView
	Organized string
	Seconds   string
	Method    string
}

// CommentView is a sanitized comment ready for the page.
type CommentView struct {
	Author    string
	Published string
	Likes     int64
	Body      template.HTML
}

// ErrorPage reports a failed generation.
type ErrorPage struct {
	PageTitle string
	Message   string
}

// Renderer turns generation results into HTML pages and terminal Markdown.
type Renderer struct {
	pages        map[string]*template.Template
	policy       *bluemonday.Policy
	commentLimit int
}

// NewRenderer parses the page templates. commentLimit caps the comments shown.
func NewRenderer(commentLimit int) (*Renderer, error) {
	base, err := template.ParseFS(templateFS, "templates/page.html")
	if err != nil {
		return nil, fmt.Errorf("parsing page templates: %w", err)
	}

	pages := make(map[string]*template.Template)
	for _, name := range []string{"index", "blog", "error"} {
		t, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning page template: %w", err)
		}
		if _, err := t.New("content").Parse(`{{template "` + name + `-content" .}}`); err != nil {
			return nil, fmt.Errorf("parsing %s page: %w", name, err)
		}
		pages[name] = t
	}

	policy := bluemonday.UGCPolicy()
	policy.AddTargetBlankToFullyQualifiedLinks(true)

	return &Renderer{pages: pages, policy: policy, commentLimit: commentLimit}, nil
}

func (r *Renderer) execute(w io.Writer, page string, data any) error {
	if err := r.pages[page].ExecuteTemplate(w, "layout", data); err != nil {
		return fmt.Errorf("rendering %s page: %w", page, err)
	}
	return nil
}

// Index renders the form page, optionally with an error message.
func (r *Renderer) Index(w io.Writer, query, errMsg string) error {
	return r.execute(w, "index", IndexPage{PageTitle: AppName, Query: query, Error: errMsg})
}

// Error renders a failure page with a user-facing message.
func (r *Renderer) Error(w io.Writer, message string) error {
	return r.execute(w, "error", ErrorPage{PageTitle: AppName + ": error", Message: message})
}

// Blog renders the article page. The organized transcript is included only when withTranscript is set.
func (r *Renderer) Blog(w io.Writer, res *BlogResult, withTranscript bool) error {
	page := BlogPage{
		PageTitle: res.Video.Title,
		Video:     res.Video,
		Article:   r.ArticleHTML(res.Post),
		Seconds:   fmt.Sprintf("%.2f", res.Elapsed.Seconds()),
		Method:    res.Method,
	}
	for _, c := range r.topComments(res.Comments) {
		body := c.TextHTML
		if body == "" {
			body = template.HTMLEscapeString(c.Text)
		}
		page.Comments = append(page.Comments, CommentView{
			Author:    c.Author,
			Published: commentDate(c.PublishedAt),
			Likes:     c.LikeCount,
			Body:      template.HTML(r.policy.Sanitize(body)),
		})
	}
	if withTranscript {
		page.Organized = res.Organized
	}
	return r.execute(w, "blog", page)
}

// BlogHTML renders the article page into a byte slice.
func (r *Renderer) BlogHTML(res *BlogResult, withTranscript bool) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Blog(&buf, res, withTranscript); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ArticleHTML converts Markdown to sanitized HTML; bare URLs become links
// that open in a new tab.
func (r *Renderer) ArticleHTML(md string) template.HTML {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs | parser.Autolink)
	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Flags: mdhtml.CommonFlags | mdhtml.HrefTargetBlank,
	})
	out := markdown.ToHTML([]byte(md), p, renderer)
	return template.HTML(r.policy.SanitizeBytes(out))
}

func commentDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("January 2, 2006")
}

func (r *Renderer) topComments(comments []Comment) []Comment {
	if r.commentLimit > 0 && len(comments) > r.commentLimit {
		return comments[:r.commentLimit]
	}
	return comments
}

// Markdown assembles the whole result as a Markdown document for the terminal.
func (r *Renderer) Markdown(res *BlogResult) string {
	var b strings.Builder
	v := res.Video

	fmt.Fprintf(&b, "# %s\n\n", v.Title)
	fmt.Fprintf(&b, "*%s · Published %s · %s views · %s likes · %s*\n\n", v.Channel, v.Published(), v.Views(), v.Likes(), v.Length())
	fmt.Fprintf(&b, "%s\n\n", v.URL())
	b.WriteString(strings.TrimSpace(res.Post))
	b.WriteString("\n\n")

	if top := r.topComments(res.Comments); len(top) > 0 {
		b.WriteString("---\n\n## Top comments\n\n")
		for _, c := range top {
			fmt.Fprintf(&b, "**%s**", c.Author)
			if published := commentDate(c.PublishedAt); published != "" {
				fmt.Fprintf(&b, " - %s", published)
			}
			fmt.Fprintf(&b, " (%d likes)\n\n%s\n\n", c.LikeCount, CommentMarkdown(c))
		}
	}

	fmt.Fprintf(&b, "---\n\n*Blog post generated in %.2f seconds", res.Elapsed.Seconds())
	if res.Method != "" {
		fmt.Fprintf(&b, " · transcript via %s", res.Method)
	}
	b.WriteString("*\n")
	return b.String()
}

// CommentMarkdown converts a comment's HTML body to Markdown, falling back to its plain text.
func CommentMarkdown(c Comment) string {
	if c.TextHTML == "" {
		return c.Text
	}
	md, err := htmltomarkdown.ConvertString(c.TextHTML)
	if err != nil || strings.TrimSpace(md) == "" {
		return c.Text
	}
	return strings.TrimSpace(md)
}

// getTerminalWidth gets terminal width with fallback
func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	if width > 10 {
		return width - 4
	}
	return width
}

// RenderMarkdown renders markdown content with glamour
func RenderMarkdown(content string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(getTerminalWidth()),
		glamour.WithColorProfile(termenv.EnvColorProfile()),
	)
	if err != nil {
		return "", fmt.Errorf("creating terminal renderer: %w", err)
	}

	rendered, err := r.Render(content)
	if err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return rendered, nil
}

// IsTerminal reports whether stdout is an interactive terminal.
func IsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// WriteMarkdown writes content to w, styled with glamour when stdout is a
// terminal and as plain Markdown otherwise.
func WriteMarkdown(w io.Writer, content string) error {
	if !IsTerminal() {
		_, err := io.WriteString(w, content)
		return err
	}
	rendered, err := RenderMarkdown(content)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, rendered)
	return err
}
