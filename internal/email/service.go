// Package email sends workflow notifications via SMTP.
package email

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net/smtp"
	"strings"
)

var ErrNotConfigured = errors.New("email not configured")

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   sendFunc
}

func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

func (s *Service) IsConfigured() bool {
	return s != nil && s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendHTMLEmail sends a multipart message with a plain-text fallback.
func (s *Service) SendHTMLEmail(to []string, subject, textBody, htmlBody string) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}
	if len(to) == 0 {
		return errors.New("email: no recipients")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", s.config.FromName), s.config.From)
	}

	boundary := "boundary-yunmun"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", textBody)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	if err := s.send(s.server, s.auth, s.config.From, to, msg.Bytes()); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

type WorkCompletedData struct {
	RecipientName string
	WorkTitle     string
	ChapterCount  int
	ArchiveRef    string
}

type ChapterReadyData struct {
	RecipientName string
	WorkTitle     string
	ChapterNumber int
	EditorName    string
}

// SendWorkCompleted tells the author every chapter was approved.
func (s *Service) SendWorkCompleted(to string, data WorkCompletedData) error {
	subject := fmt.Sprintf("[윤문] 「%s」 작업이 완료되었습니다", data.WorkTitle)
	text := fmt.Sprintf("%s님, 「%s」의 %d개 회차가 모두 승인되어 작업이 완료되었습니다.", data.RecipientName, data.WorkTitle, data.ChapterCount)
	html, err := renderTemplate(workCompletedTemplate, data)
	if err != nil {
		return fmt.Errorf("render work completed template: %w", err)
	}
	return s.SendHTMLEmail([]string{to}, subject, text, html)
}

// SendChapterReady tells the author an editor finished a chapter.
func (s *Service) SendChapterReady(to string, data ChapterReadyData) error {
	subject := fmt.Sprintf("[윤문] 「%s」 %d화 윤문이 완료되었습니다", data.WorkTitle, data.ChapterNumber)
	text := fmt.Sprintf("%s님, 「%s」 %d화의 윤문이 완료되었습니다. 검토 후 승인해 주세요.", data.RecipientName, data.WorkTitle, data.ChapterNumber)
	html, err := renderTemplate(chapterReadyTemplate, data)
	if err != nil {
		return fmt.Errorf("render chapter ready template: %w", err)
	}
	return s.SendHTMLEmail([]string{to}, subject, text, html)
}

func renderTemplate(tmpl string, data interface{}) (string, error) {
	t, err := template.New("email").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const emailStyle = `<style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Apple SD Gothic Neo', 'Malgun Gothic', sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #2f6f4f; padding-bottom: 10px; margin-bottom: 20px; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>`

const workCompletedTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.WorkTitle}}</title>
    ` + emailStyle + `
</head>
<body>
    <div class="header"><h1>윤문</h1></div>
    <p>{{.RecipientName}}님,</p>
    <p>「{{.WorkTitle}}」의 {{.ChapterCount}}개 회차가 모두 승인되어 작업이 완료되었습니다.</p>
    {{if .ArchiveRef}}<p>보관 버전: <code>{{.ArchiveRef}}</code></p>{{end}}
    <div class="footer"><p>이 메일은 발신 전용입니다.</p></div>
</body>
</html>`

const chapterReadyTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.WorkTitle}} {{.ChapterNumber}}화</title>
    ` + emailStyle + `
</head>
<body>
    <div class="header"><h1>윤문</h1></div>
    <p>{{.RecipientName}}님,</p>
    <p>{{if .EditorName}}{{.EditorName}} 에디터가 {{end}}「{{.WorkTitle}}」 {{.ChapterNumber}}화의 윤문을 마쳤습니다. 검토 후 승인하거나 재검토를 요청해 주세요.</p>
    <div class="footer"><p>이 메일은 발신 전용입니다.</p></div>
</body>
</html>`
