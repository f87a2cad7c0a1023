package model

// KV is a label or annotation set as it appears on the wire.
type KV map[string]string

// WebhookAlert is one alert inside an Alertmanager webhook group.
type WebhookAlert struct {
	Status       string `json:"status"`
	Labels       KV     `json:"labels"`
	Annotations  KV     `json:"annotations"`
	StartsAt     string `json:"startsAt,omitempty"`
	EndsAt       string `json:"endsAt,omitempty"`
	GeneratorURL string `json:"generatorURL,omitempty"`
}

// WebhookMessage is the Alertmanager webhook group payload.
// https://prometheus.io/docs/alerting/latest/configuration/#webhook_config
type WebhookMessage struct {
	Status            string         `json:"status"`
	GroupLabels       KV             `json:"groupLabels,omitempty"`
	CommonLabels      KV             `json:"commonLabels"`
	CommonAnnotations KV             `json:"commonAnnotations"`
	Alerts            []WebhookAlert `json:"alerts"`
	ExternalURL       string         `json:"externalURL,omitempty"`
}

// Normalize ensures the maps routing and filtering rely on are non-nil.
func (m *WebhookMessage) Normalize() {
	if m.CommonLabels == nil {
		m.CommonLabels = KV{}
	}
	if m.CommonAnnotations == nil {
		m.CommonAnnotations = KV{}
	}
}
