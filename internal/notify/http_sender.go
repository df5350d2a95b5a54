package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPSender posts notifications to an external push gateway.
type HTTPSender struct {
	client *resty.Client
}

func NewHTTPSender(baseURL string) *HTTPSender {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second)
	return &HTTPSender{client: c}
}

func (s *HTTPSender) Send(ctx context.Context, n Notification) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(n).
		Post("/v1/notifications")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("push gateway status %d", resp.StatusCode())
	}
	return nil
}
