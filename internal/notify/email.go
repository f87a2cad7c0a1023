package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"text/template"

	"github.com/promfleet/promfleet/internal/config"
	"github.com/promfleet/promfleet/internal/model"
)

var emailSubject = template.Must(template.New("subject").Parse(
	`[{{ .Status }}:{{ len .Alerts }}] {{ index .CommonLabels "alertname" }} {{ index .CommonLabels "service" }} {{ index .CommonLabels "project" }}`,
))

var emailBody = template.Must(template.New("body").Parse(
	`{{ .Status }} alert group
{{ range $k, $v := .CommonAnnotations }}{{ $k }}: {{ $v }}
{{ end }}
{{ range .Alerts }}---
{{ .Status }}{{ if .StartsAt }} since {{ .StartsAt }}{{ end }}
{{ range $k, $v := .Labels }}  {{ $k }} = {{ $v }}
{{ end }}{{ range $k, $v := .Annotations }}  {{ $k }}: {{ $v }}
{{ end }}{{ end }}`,
))

// Email delivers alert groups over SMTP as plain-text messages.
type Email struct {
	cfg config.SMTPConfig

	// sendMail is swapped in tests; defaults to smtp.SendMail.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmail(cfg config.SMTPConfig) *Email {
	return &Email{cfg: cfg, sendMail: smtp.SendMail}
}

func (e *Email) Send(ctx context.Context, target string, data *model.WebhookMessage) error {
	var subject, body bytes.Buffer
	if err := emailSubject.Execute(&subject, data); err != nil {
		return fmt.Errorf("render email subject: %w", err)
	}
	if err := emailBody.Execute(&body, data); err != nil {
		return fmt.Errorf("render email body: %w", err)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", e.cfg.Sender)
	fmt.Fprintf(&msg, "To: %s\r\n", target)
	fmt.Fprintf(&msg, "Subject: %s\r\n", strings.TrimSpace(subject.String()))
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.Write(body.Bytes())

	var auth smtp.Auth
	if e.cfg.User != "" {
		host := e.cfg.Addr
		if i := strings.IndexByte(host, ':'); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", e.cfg.User, e.cfg.Password, host)
	}

	if err := e.sendMail(e.cfg.Addr, auth, e.cfg.Sender, []string{target}, msg.Bytes()); err != nil {
		return fmt.Errorf("send mail to %s: %w", target, err)
	}
	return nil
}
