// internal/service/email/postmark.go
package email

import (
	"context"
	"fmt"

	"github.com/mrz1836/postmark"
)

// PostmarkSender sends through Postmark's transactional API.
type PostmarkSender struct {
	client *postmark.Client
	from   string
}

func NewPostmarkSender(serverToken, accountToken, from string) (*PostmarkSender, error) {
	if serverToken == "" {
		return nil, fmt.Errorf("postmark: server token is required")
	}
	if from == "" {
		return nil, fmt.Errorf("postmark: sender address is required")
	}
	return &PostmarkSender{
		client: postmark.NewClient(serverToken, accountToken),
		from:   from,
	}, nil
}

func (p *PostmarkSender) Send(ctx context.Context, m Message) error {
	html, err := render(m)
	if err != nil {
		return fmt.Errorf("render email: %w", err)
	}
	resp, err := p.client.SendEmail(ctx, postmark.Email{
		From:       p.from,
		To:         m.To,
		Subject:    m.Subject,
		Tag:        m.Tag,
		HTMLBody:   html,
		TrackOpens: false,
		TrackLinks: "None",
	})
	if err != nil {
		return fmt.Errorf("postmark send: %w", err)
	}
	if resp.ErrorCode > 0 {
		return fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message)
	}
	return nil
}
