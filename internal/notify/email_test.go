package notify

import (
	"context"
	"net/smtp"
	"strings"
	"testing"

	"github.com/promfleet/promfleet/internal/config"
	"github.com/promfleet/promfleet/internal/model"
)

func TestEmailMessageShape(t *testing.T) {
	var (
		gotAddr string
		gotFrom string
		gotTo   []string
		gotMsg  []byte
	)
	e := NewEmail(config.SMTPConfig{Addr: "mail.example.com:25", Sender: "promfleet@example.com"})
	e.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	data := &model.WebhookMessage{
		Status:       "firing",
		CommonLabels: model.KV{"alertname": "InstanceDown", "service": "shop", "project": "checkout"},
		Alerts: []model.WebhookAlert{{
			Status:      "firing",
			Labels:      model.KV{"instance": "h1:9100"},
			Annotations: model.KV{"summary": "h1 is down"},
		}},
	}
	if err := e.Send(context.Background(), "oncall@example.com", data); err != nil {
		t.Fatalf("send: %v", err)
	}

	if gotAddr != "mail.example.com:25" || gotFrom != "promfleet@example.com" {
		t.Errorf("addr/from = %q/%q", gotAddr, gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "oncall@example.com" {
		t.Errorf("to = %v", gotTo)
	}

	msg := string(gotMsg)
	if !strings.Contains(msg, "Subject: [firing:1] InstanceDown shop checkout") {
		t.Errorf("subject line missing:\n%s", msg)
	}
	if !strings.Contains(msg, "h1 is down") {
		t.Errorf("alert summary missing from body:\n%s", msg)
	}
	if !strings.Contains(msg, "instance = h1:9100") {
		t.Errorf("alert labels missing from body:\n%s", msg)
	}
}

func TestEmailSendFailureSurfaces(t *testing.T) {
	e := NewEmail(config.SMTPConfig{Addr: "mail:25", Sender: "x@y"})
	e.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		return &smtpError{}
	}
	err := e.Send(context.Background(), "to@y", &model.WebhookMessage{Status: "firing"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "to@y") {
		t.Errorf("error should name the destination: %v", err)
	}
}

type smtpError struct{}

func (*smtpError) Error() string { return "connection refused" }
