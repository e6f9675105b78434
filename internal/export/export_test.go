package export

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func sampleManuscript() Manuscript {
	return Manuscript{
		WorkID: "work-1",
		Title:  "검의 노래",
		Author: "김작가",
		Status: "TRANSLATING",
		Chapters: []Chapter{
			{Number: 2, Status: "REVIEWING", Text: "둘째 장 <b>본문</b>"},
			{Number: 1, Title: "서장", Status: "APPROVED", Text: "첫 문단.\n\n  둘째 문단.  \r\n"},
		},
		GeneratedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestTextToHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "single line", input: "안녕", want: "<p>안녕</p>\n"},
		{name: "blank lines dropped", input: "a\n\n\nb", want: "<p>a</p>\n<p>b</p>\n"},
		{name: "escaped", input: `<script>&"`, want: "<p>&lt;script&gt;&amp;&#34;</p>\n"},
		{name: "crlf", input: "a\r\nb", want: "<p>a</p>\n<p>b</p>\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(TextToHTML(tt.input)); got != tt.want {
				t.Fatalf("TextToHTML(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestExportHTMLOrdersChaptersAndEscapes(t *testing.T) {
	svc := NewService()
	result, err := svc.Export(context.Background(), sampleManuscript(), FormatHTML)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	html := string(result.Data)
	first := strings.Index(html, `id="chapter-1"`)
	second := strings.Index(html, `id="chapter-2"`)
	if first < 0 || second < 0 || first > second {
		t.Fatalf("chapters out of order:\n%s", html)
	}
	for _, want := range []string{"<title>검의 노래</title>", "김작가", "1화 서장", "2화", "2026-03-01", "<p>둘째 문단.</p>", "&lt;b&gt;본문&lt;/b&gt;", `class="status">reviewing`} {
		if !strings.Contains(html, want) {
			t.Fatalf("html missing %q:\n%s", want, html)
		}
	}
	if result.Filename != "검의-노래.html" || !strings.HasPrefix(result.MimeType, "text/html") {
		t.Fatalf("unexpected result meta: %s %s", result.Filename, result.MimeType)
	}
}

func TestCompletedManuscriptHidesStatus(t *testing.T) {
	m := sampleManuscript()
	m.Status = "COMPLETED"
	html, err := RenderManuscriptHTML(m)
	if err != nil {
		t.Fatalf("RenderManuscriptHTML() error = %v", err)
	}
	if strings.Contains(html, `class="status"`) {
		t.Fatal("completed manuscript should not print chapter status")
	}
}

func TestExportDispatchesRenderers(t *testing.T) {
	var gotTitle string
	svc := NewService()
	svc.pdf = func(_ context.Context, html, title string) (*Result, error) {
		gotTitle = title
		if !strings.Contains(html, "<section") {
			t.Errorf("pdf renderer got unexpected html")
		}
		return &Result{Data: []byte("%PDF"), Filename: "x.pdf", MimeType: "application/pdf"}, nil
	}
	svc.docx = func(context.Context, string, string) (*Result, error) {
		return nil, ErrDOCXDependencyMissing
	}

	result, err := svc.Export(context.Background(), sampleManuscript(), FormatPDF)
	if err != nil {
		t.Fatalf("Export(pdf) error = %v", err)
	}
	if string(result.Data) != "%PDF" || gotTitle != "검의 노래" {
		t.Fatalf("unexpected pdf result %+v title %q", result, gotTitle)
	}
	if _, err := svc.Export(context.Background(), sampleManuscript(), FormatDOCX); !errors.Is(err, ErrDOCXDependencyMissing) {
		t.Fatalf("Export(docx) error = %v", err)
	}
	if _, err := svc.Export(context.Background(), sampleManuscript(), Format("epub")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("Export(epub) error = %v", err)
	}
}

type memoryArtifacts struct {
	keys []string
}

func (m *memoryArtifacts) Put(_ context.Context, key string, result *Result) (Artifact, error) {
	m.keys = append(m.keys, key)
	return Artifact{Key: key, URL: "https://files.example/" + key, Size: int64(len(result.Data))}, nil
}

func TestPublishUploadsUnderWorkPrefix(t *testing.T) {
	if _, err := NewService().Publish(context.Background(), sampleManuscript(), FormatHTML); !errors.Is(err, ErrStorageNotConfigured) {
		t.Fatalf("Publish() error = %v, want ErrStorageNotConfigured", err)
	}

	store := &memoryArtifacts{}
	svc := NewService(WithArtifacts(store))
	if !svc.StorageConfigured() {
		t.Fatal("expected storage to be configured")
	}
	artifact, err := svc.Publish(context.Background(), sampleManuscript(), FormatHTML)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if artifact.Key != "works/work-1/검의-노래.html" || artifact.Size == 0 {
		t.Fatalf("unexpected artifact %+v", artifact)
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{"": FormatPDF, "PDF": FormatPDF, "docx": FormatDOCX, " html ": FormatHTML}
	for in, want := range cases {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("epub"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("ParseFormat(epub) error = %v", err)
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	if got := percentEncodeForDataURL("a b<"); got != "a%20b%3C" {
		t.Fatalf("percentEncodeForDataURL() = %q", got)
	}
	if got := percentEncodeForDataURL("가"); got != "%EA%B0%80" {
		t.Fatalf("percentEncodeForDataURL() = %q", got)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"검의 노래":        "검의-노래",
		"Hello, World!": "Hello-World",
		"???":           "manuscript",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
