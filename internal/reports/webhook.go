package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// WebhookSender posts the report summary as JSON to a configured endpoint.
// The downstream service owns presentation (HTML email and the like).
type WebhookSender struct {
	url    string
	client *http.Client
}

// NewWebhookSender constructs a sender.
func NewWebhookSender(url string) *WebhookSender {
	return &WebhookSender{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookPayload struct {
	LocationID   string    `json:"location_id"`
	LocationName string    `json:"location_name"`
	Cadence      string    `json:"cadence"`
	PeriodStart  time.Time `json:"period_start"`
	PeriodEnd    time.Time `json:"period_end"`
	TotalServed  int       `json:"total_served"`
	Report       Report    `json:"report"`
}

// Send implements Sender.
func (s *WebhookSender) Send(ctx context.Context, report Report) error {
	if s == nil || s.url == "" {
		return errors.New("webhook sender: empty url")
	}
	payload := webhookPayload{
		LocationID:   report.LocationID,
		LocationName: report.LocationName,
		Cadence:      string(report.Cadence),
		PeriodStart:  report.PeriodStart,
		PeriodEnd:    report.PeriodEnd,
		TotalServed:  report.TotalServed,
		Report:       report,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook sender: status %d", resp.StatusCode)
	}
	return nil
}
