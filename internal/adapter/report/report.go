package report

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"strings"

	_ "embed"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/jgivc/fetchguard/internal/entity"
	"github.com/spf13/afero"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"go.abhg.dev/goldmark/frontmatter"
)

const (
	defaultTitle = "Location report"

	figuresUnavailableNote = "Figures for this location are temporarily unavailable."
)

var (
	//go:embed templates/page.html
	defaultPageContent string

	markdownEscaper = strings.NewReplacer(
		`\`, `\\`, "`", "\\`", "*", `\*`, "_", `\_`, "[", `\[`, "]", `\]`,
		"(", `\(`, ")", `\)`, "#", `\#`, "|", `\|`, "!", `\!`, "<", `\<`, ">", `\>`,
	)
)

// Message is the guidance shown for a classification. Each kind gets its own wording
// because the user has to do something different for each.
func Message(result entity.ClassificationResult) string {
	switch result.Kind {
	case entity.KindPrimary:
		return fmt.Sprintf("%s is a supported location.", result.Name)
	case entity.KindKnownButOutOfScope:
		return fmt.Sprintf("%s is a known location, but it is outside the supported area. Choose one of the supported locations instead.", result.Name)
	default:
		return fmt.Sprintf("%q is not a recognized location name. Check the spelling and try again.", result.Name)
	}
}

// Table renders the report for a terminal.
func Table(report *entity.LocationReport) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle(Message(report.Result))

	if len(report.Figures) == 0 {
		tw.AppendHeader(table.Row{"Query", "Outcome", "Name"})
		tw.AppendRow(table.Row{report.Query, report.Result.Kind.String(), report.Result.Name})
		if report.FiguresUnavailable {
			tw.SetCaption(figuresUnavailableNote)
		}

		return tw.Render()
	}

	tw.AppendHeader(table.Row{"Figure", "Value"})
	for _, figure := range report.Figures {
		tw.AppendRow(table.Row{figure.Label, figure.Value})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})

	return tw.Render()
}

// Plain renders the report as lines of text, for pipes and logs.
func Plain(report *entity.LocationReport) string {
	var b strings.Builder
	b.WriteString(Message(report.Result))
	b.WriteString("\n")

	for _, figure := range report.Figures {
		fmt.Fprintf(&b, "%s\t%s\n", figure.Label, figure.Value)
	}

	if report.FiguresUnavailable {
		b.WriteString(figuresUnavailableNote)
		b.WriteString("\n")
	}

	return b.String()
}

type Frontmatter struct {
	Title string `yaml:"title"`
}

type htmlRenderer struct {
	fs             afero.Fs
	headerFileName string
	md             goldmark.Markdown
	page           *template.Template
	log            *slog.Logger
}

type PageContext struct {
	Title       string
	ContentHTML template.HTML
	Report      *entity.LocationReport
}

func NewHTMLRenderer(headerFileName string, log *slog.Logger) (*htmlRenderer, error) {
	return NewHTMLRendererWithFS(afero.NewOsFs(), headerFileName, log)
}

func NewHTMLRendererWithFS(fs afero.Fs, headerFileName string, log *slog.Logger) (*htmlRenderer, error) {
	page, err := template.New("page").Parse(defaultPageContent)
	if err != nil {
		return nil, fmt.Errorf("cannot parse page template: %w", err)
	}

	md := goldmark.New(
		goldmark.WithExtensions(
			&frontmatter.Extender{},
			extension.Table,
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)

	return &htmlRenderer{
		fs:             fs,
		headerFileName: headerFileName,
		md:             md,
		page:           page,
		log:            log.With(slog.String("item", "HTMLRenderer")),
	}, nil
}

// Render builds an HTML page. The optional header file is markdown; its frontmatter title,
// if any, becomes the page title.
func (r *htmlRenderer) Render(report *entity.LocationReport) (string, error) {
	header, err := r.readHeader()
	if err != nil {
		return "", err
	}

	var src bytes.Buffer
	src.Write(header)
	if len(header) > 0 && !bytes.HasSuffix(header, []byte("\n")) {
		src.WriteString("\n")
	}
	src.WriteString("\n")
	src.WriteString(toMarkdown(report))

	pc := parser.NewContext()

	var buf bytes.Buffer
	if err := r.md.Convert(src.Bytes(), &buf, parser.WithContext(pc)); err != nil {
		return "", fmt.Errorf("cannot convert markdown: %w", err)
	}

	title := defaultTitle
	if fm := frontmatter.Get(pc); fm != nil {
		var meta Frontmatter
		if err := fm.Decode(&meta); err != nil {
			r.log.Error("Cannot decode frontmatter", slog.String("path", r.headerFileName), slog.Any("error", err))
		} else if meta.Title != "" {
			title = meta.Title
		}
	}

	var page bytes.Buffer
	if err := r.page.Execute(&page, &PageContext{Title: title, ContentHTML: template.HTML(buf.String()), Report: report}); err != nil {
		return "", fmt.Errorf("cannot execute page template: %w", err)
	}

	return page.String(), nil
}

func (r *htmlRenderer) readHeader() ([]byte, error) {
	if r.headerFileName == "" {
		return nil, nil
	}

	content, err := afero.ReadFile(r.fs, r.headerFileName)
	if err != nil {
		return nil, fmt.Errorf("cannot read report header %s: %w", r.headerFileName, err)
	}

	return content, nil
}

func toMarkdown(report *entity.LocationReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## %s\n\n", escapeMarkdown(report.Query))
	fmt.Fprintf(&b, "%s\n", escapeMarkdown(Message(report.Result)))

	if len(report.Figures) > 0 {
		b.WriteString("\n| Figure | Value |\n| --- | ---: |\n")
		for _, figure := range report.Figures {
			fmt.Fprintf(&b, "| %s | %s |\n", escapeMarkdown(figure.Label), escapeMarkdown(figure.Value))
		}
	}

	if report.FiguresUnavailable {
		fmt.Fprintf(&b, "\n%s\n", escapeMarkdown(figuresUnavailableNote))
	}

	return b.String()
}

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
