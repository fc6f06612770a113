package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultSMSTimeout     = 10 * time.Second
	defaultSMSAPIBaseURL  = "https://api.twilio.com"
	defaultSMSCountryCode = "256"
)

// SMSRenderer resolves an SMS template into a plain-text body.
type SMSRenderer interface {
	RenderSMS(name string, data map[string]any) (string, error)
}

// SMSConfig carries the SMS gateway settings. Empty credentials yield a
// disabled channel rather than a construction failure.
type SMSConfig struct {
	AccountSID  string
	AuthToken   string
	FromNumber  string
	APIBaseURL  string
	CountryCode string
	Timeout     time.Duration
}

// SMSChannel delivers SMS notifications through a Twilio-compatible REST
// gateway. A channel constructed without credentials reports itself
// unavailable and fails sends cleanly without contacting the provider.
type SMSChannel struct {
	client    *resty.Client
	cfg       SMSConfig
	renderer  SMSRenderer
	available bool
	reason    string
}

func NewSMSChannel(cfg SMSConfig, renderer SMSRenderer) *SMSChannel {
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = defaultSMSAPIBaseURL
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	if strings.TrimSpace(cfg.CountryCode) == "" {
		cfg.CountryCode = defaultSMSCountryCode
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSMSTimeout
	}

	ch := &SMSChannel{cfg: cfg, renderer: renderer}

	switch {
	case strings.TrimSpace(cfg.AccountSID) == "" || strings.TrimSpace(cfg.AuthToken) == "":
		ch.reason = "credentials not configured"
	case strings.TrimSpace(cfg.FromNumber) == "":
		ch.reason = "sender number not configured"
	default:
		client := resty.New()
		client.SetTimeout(cfg.Timeout)
		client.SetRetryCount(0)
		client.SetBasicAuth(cfg.AccountSID, cfg.AuthToken)
		ch.client = client
		ch.available = true
	}

	return ch
}

// NewSMSChannelWithClient injects a prepared resty client, used by tests.
func NewSMSChannelWithClient(cfg SMSConfig, renderer SMSRenderer, client *resty.Client) *SMSChannel {
	ch := NewSMSChannel(cfg, renderer)
	if ch.available && client != nil {
		client.SetBasicAuth(cfg.AccountSID, cfg.AuthToken)
		if client.GetClient().Timeout == 0 {
			client.SetTimeout(ch.cfg.Timeout)
		}
		ch.client = client
	}
	return ch
}

func (c *SMSChannel) Available() bool {
	return c != nil && c.available
}

func (c *SMSChannel) Send(ctx context.Context, msg Message) error {
	if !c.Available() {
		return &ChannelError{Message: fmt.Sprintf("sms channel unavailable: %s", c.unavailableReason())}
	}

	to, err := NormalizePhoneNumber(msg.Recipient, c.cfg.CountryCode)
	if err != nil {
		// Local failure, no provider call.
		return &ChannelError{Message: fmt.Sprintf("invalid phone number %q", msg.Recipient), Cause: err}
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.cfg.APIBaseURL, c.cfg.AccountSID)
	response, err := c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"To":   to,
			"From": c.cfg.FromNumber,
			"Body": msg.Body,
		}).
		Post(endpoint)
	if err != nil {
		return &ChannelError{Message: "sms provider request failed", Cause: err}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return nil
	}

	return &ChannelError{
		StatusCode: statusCode,
		Message:    smsErrorMessage(statusCode, strings.TrimSpace(response.String())),
	}
}

func (c *SMSChannel) SendTemplated(ctx context.Context, recipient string, _ string, templateName string, data map[string]any) error {
	if !c.Available() {
		return &ChannelError{Message: fmt.Sprintf("sms channel unavailable: %s", c.unavailableReason())}
	}

	body, err := c.renderer.RenderSMS(templateName, data)
	if err != nil {
		return err
	}

	return c.Send(ctx, Message{Recipient: recipient, Body: body})
}

// Probe fetches the gateway account resource to verify credentials and
// connectivity.
func (c *SMSChannel) Probe(ctx context.Context) bool {
	if !c.Available() {
		return false
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s.json", c.cfg.APIBaseURL, c.cfg.AccountSID)
	response, err := c.client.R().SetContext(ctx).Get(endpoint)
	if err != nil {
		return false
	}

	return response.StatusCode() >= http.StatusOK && response.StatusCode() < http.StatusMultipleChoices
}

func (c *SMSChannel) unavailableReason() string {
	if c == nil {
		return "channel not initialized"
	}
	if c.reason == "" {
		return "unknown"
	}
	return c.reason
}

func smsErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("sms provider returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}

// NormalizePhoneNumber converts a raw phone number to international dialing
// format: separators are stripped, a leading zero is dropped, and 9-digit
// local numbers get the default country code. Numbers that cannot be
// normalized (too short, non-numeric) return an error.
func NormalizePhoneNumber(raw string, countryCode string) (string, error) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	cleaned := digits.String()
	if cleaned == "" {
		return "", fmt.Errorf("no digits in %q", raw)
	}

	if strings.HasPrefix(cleaned, "0") {
		cleaned = strings.TrimPrefix(cleaned, "0")
	}
	if len(cleaned) == 9 && !strings.HasPrefix(cleaned, countryCode) {
		cleaned = countryCode + cleaned
	}

	if len(cleaned) < 10 {
		return "", fmt.Errorf("number %q too short after normalization", raw)
	}

	return "+" + cleaned, nil
}
