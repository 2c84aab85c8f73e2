package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Sender interface {
	Send(ctx context.Context, to string, body string) error
	ProviderID() string
}

// VonageSender posts to the Vonage (Nexmo) REST SMS endpoint. The API
// reports per-message delivery status inside a 200 response, so both the
// HTTP status and the embedded status code are checked.
type VonageSender struct {
	apiURL    string
	apiKey    string
	apiSecret string
	from      string
	http      *http.Client
}

const vonageAPIURL = "https://rest.nexmo.com/sms/json"

func NewVonageSender(apiKey, apiSecret, from string) *VonageSender {
	if strings.TrimSpace(from) == "" {
		from = "WestPoint"
	}
	return &VonageSender{
		apiURL:    vonageAPIURL,
		apiKey:    strings.TrimSpace(apiKey),
		apiSecret: strings.TrimSpace(apiSecret),
		from:      from,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *VonageSender) ProviderID() string {
	return "sms-vonage"
}

type vonageResponse struct {
	Messages []struct {
		Status    string `json:"status"`
		MessageID string `json:"message-id"`
		ErrorText string `json:"error-text"`
	} `json:"messages"`
}

func (s *VonageSender) Send(ctx context.Context, to string, body string) error {
	if s.apiKey == "" || s.apiSecret == "" {
		return errors.New("vonage credentials not configured")
	}

	form := url.Values{}
	form.Set("api_key", s.apiKey)
	form.Set("api_secret", s.apiSecret)
	form.Set("to", to)
	form.Set("from", s.from)
	form.Set("text", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("vonage returned status %d", resp.StatusCode)
	}

	var parsed vonageResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return err
	}
	if len(parsed.Messages) == 0 {
		return errors.New("vonage returned no message status")
	}
	if parsed.Messages[0].Status != "0" {
		errText := parsed.Messages[0].ErrorText
		if errText == "" {
			errText = "unknown error"
		}
		return fmt.Errorf("vonage rejected message: %s", errText)
	}
	return nil
}

type WebhookSender struct {
	url   string
	token string
	http  *http.Client
}

func NewWebhookSender(url string, token string) *WebhookSender {
	return &WebhookSender{
		url:   strings.TrimSpace(url),
		token: strings.TrimSpace(token),
		http: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (s *WebhookSender) ProviderID() string {
	return "sms-webhook"
}

func (s *WebhookSender) Send(ctx context.Context, to string, body string) error {
	if s.url == "" {
		return errors.New("sms webhook url not configured")
	}
	payload := map[string]string{
		"to":   to,
		"body": body,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.New("sms webhook returned non-2xx")
	}
	return nil
}

type NoopSender struct{}

func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

func (s *NoopSender) ProviderID() string {
	return "sms-noop"
}

func (s *NoopSender) Send(_ context.Context, _ string, _ string) error {
	return nil
}

// NormalizePhone converts a Philippine mobile number to the 639xxxxxxxxx
// form the gateway expects (no plus sign). Returns false for anything that
// cannot be normalized.
func NormalizePhone(phone string) (string, bool) {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	p := digits.String()

	switch {
	case strings.HasPrefix(p, "09") && len(p) == 11:
		p = "63" + p[1:]
	case strings.HasPrefix(p, "639") && len(p) == 12:
	case strings.HasPrefix(p, "9") && len(p) == 10:
		p = "63" + p
	default:
		return "", false
	}

	if !strings.HasPrefix(p, "639") || len(p) != 12 {
		return "", false
	}
	return p, true
}
