package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

// postmarkAPI is the subset of *postmark.Client the sender uses.
type postmarkAPI interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

type postmarkClient struct {
	api    postmarkAPI
	config Config
}

// NewPostmarkClient validates cfg and returns a Postmark backed sender.
func NewPostmarkClient(cfg Config) (EmailSender, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, fmt.Errorf("%w: POSTMARK_SERVER_TOKEN is required", ErrInvalidConfig)
	}
	return newPostmarkSender(postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken), cfg)
}

func newPostmarkSender(api postmarkAPI, cfg Config) (EmailSender, error) {
	if !isAddress(cfg.SenderEmail) {
		return nil, fmt.Errorf("%w: SENDER_EMAIL must be a valid email address", ErrInvalidConfig)
	}
	if !isAddress(cfg.SupportEmail) {
		return nil, fmt.Errorf("%w: SUPPORT_EMAIL must be a valid email address", ErrInvalidConfig)
	}
	return &postmarkClient{api: api, config: cfg}, nil
}

func (c *postmarkClient) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	resp, err := c.api.SendEmail(ctx, postmark.Email{
		From:       c.config.SenderEmail,
		ReplyTo:    c.config.SupportEmail,
		To:         params.SendTo,
		Subject:    params.Subject,
		Tag:        params.Tag,
		HTMLBody:   params.BodyHTML,
		TrackOpens: false,
	})
	if err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrFailedToSendEmail, fmt.Errorf("postmark error %d: %s", resp.ErrorCode, resp.Message))
	}
	return nil
}
