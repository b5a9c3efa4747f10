package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"futurebot/pkg/exception"

	"github.com/bytedance/sonic"
)

// TwilioConfig configures the text message sender.
type TwilioConfig struct {
	BaseURL    string
	AccountSID string
	Token      string
	From       string
	To         string
}

// SMS sends text messages through the Twilio messages API.
type SMS struct {
	cfg    TwilioConfig
	client *http.Client
}

// NewSMS returns nil when no account or recipient is configured.
func NewSMS(cfg TwilioConfig, client *http.Client) *SMS {
	if cfg.AccountSID == "" || cfg.To == "" {
		return nil
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &SMS{cfg: cfg, client: client}
}

type twilioResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Send delivers the body of m.
func (s *SMS) Send(ctx context.Context, m Message) error {
	if s == nil {
		return exception.ErrNotifyDisabled
	}
	form := url.Values{"From": {s.cfg.From}, "To": {s.cfg.To}, "Body": {m.Body}}
	u := s.cfg.BaseURL + "/Accounts/" + s.cfg.AccountSID + "/Messages.json"
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.SetBasicAuth(s.cfg.AccountSID, s.cfg.Token)

	resp, err := s.client.Do(r)
	if err != nil {
		return fmt.Errorf("%w: %w", exception.ErrNotifyFailed, err)
	}
	defer resp.Body.Close()

	var data twilioResponse
	_ = sonic.ConfigFastest.NewDecoder(resp.Body).Decode(&data)
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: twilio status %d %s", exception.ErrNotifyFailed, resp.StatusCode, data.Message)
	}
	return nil
}
