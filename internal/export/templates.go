package export

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var manuscriptTemplate = template.Must(
	template.New("manuscript.html").Funcs(template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}).ParseFS(templateFS, "templates/manuscript.html"),
)

// TemplateData holds data for manuscript rendering
type TemplateData struct {
	Title        string
	Author       string
	GeneratedAt  time.Time
	ChapterCount int
	ShowStatus   bool
	Chapters     []TemplateChapter
}

type TemplateChapter struct {
	Number   int
	Heading  string
	Status   string
	BodyHTML template.HTML
}

// RenderManuscriptHTML renders the manuscript as a standalone HTML page.
// Chapter status labels are printed for works that are not completed yet.
func RenderManuscriptHTML(m Manuscript) (string, error) {
	generated := m.GeneratedAt
	if generated.IsZero() {
		generated = time.Now().UTC()
	}
	data := TemplateData{
		Title:        m.Title,
		Author:       m.Author,
		GeneratedAt:  generated,
		ChapterCount: len(m.Chapters),
		ShowStatus:   m.Status != "COMPLETED",
		Chapters:     make([]TemplateChapter, 0, len(m.Chapters)),
	}
	for _, ch := range m.Chapters {
		heading := fmt.Sprintf("%d화", ch.Number)
		if ch.Title != "" {
			heading += " " + ch.Title
		}
		data.Chapters = append(data.Chapters, TemplateChapter{
			Number:   ch.Number,
			Heading:  heading,
			Status:   ch.Status,
			BodyHTML: TextToHTML(ch.Text),
		})
	}

	var buf bytes.Buffer
	if err := manuscriptTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render manuscript: %w", err)
	}
	return buf.String(), nil
}

// TextToHTML turns plain chapter text into escaped paragraphs, one per
// non-blank line.
func TextToHTML(text string) template.HTML {
	var b strings.Builder
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(line))
		b.WriteString("</p>\n")
	}
	return template.HTML(b.String())
}
