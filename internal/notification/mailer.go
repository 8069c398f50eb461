package notification

import (
	"bytes"
	"context"
	"fmt"

	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/domain"

	"github.com/wneessen/go-mail"
)

// Mailer is the transactional email collaborator. Calls are
// best-effort: callers dispatch them after the primary state change
// commits and log failures instead of surfacing them.
type Mailer interface {
	SendOrderConfirmation(ctx context.Context, order *domain.Order, user *domain.User) error
	SendOrderStatusUpdate(ctx context.Context, order *domain.Order, user *domain.User, receipt []byte) error
}

// SMTPConfig holds the mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type smtpMailer struct {
	client *mail.Client
	from   string
}

// NewSMTPMailer creates a Mailer backed by an SMTP server.
func NewSMTPMailer(cfg SMTPConfig) (Mailer, error) {
	client, err := mail.NewClient(
		cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	return &smtpMailer{client: client, from: cfg.From}, nil
}

func (m *smtpMailer) newMessage(user *domain.User, subject string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(user.Email); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	return msg, nil
}

// SendOrderConfirmation mails the order-created confirmation.
func (m *smtpMailer) SendOrderConfirmation(ctx context.Context, order *domain.Order, user *domain.User) error {
	msg, err := m.newMessage(user, fmt.Sprintf("Order %s confirmed", order.ID))
	if err != nil {
		return err
	}

	body := fmt.Sprintf(
		"Hi %s,\n\nThanks for your order!\n\nOrder ID: %s\nItems: %d\nTotal: %.2f\n\nWe will let you know when it ships.\n",
		user.FirstName, order.ID, len(order.Items), order.TotalPrice,
	)
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("%w: order confirmation mail: %v", domain.ErrExternalService, err)
	}
	return nil
}

// SendOrderStatusUpdate mails a status change, attaching the PDF
// receipt when one was rendered.
func (m *smtpMailer) SendOrderStatusUpdate(ctx context.Context, order *domain.Order, user *domain.User, receipt []byte) error {
	msg, err := m.newMessage(user, fmt.Sprintf("Order %s is now %s", order.ID, order.Status))
	if err != nil {
		return err
	}

	body := fmt.Sprintf(
		"Hi %s,\n\nYour order %s is now %s.\n",
		user.FirstName, order.ID, order.Status,
	)
	if order.TrackingNumber != "" {
		body += fmt.Sprintf("Tracking number: %s\n", order.TrackingNumber)
	}
	msg.SetBodyString(mail.TypeTextPlain, body)

	if len(receipt) > 0 {
		msg.AttachReadSeeker("receipt.pdf", bytes.NewReader(receipt))
	}

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("%w: order status mail: %v", domain.ErrExternalService, err)
	}
	return nil
}

// NopMailer drops all mail; used when SMTP is not configured.
type NopMailer struct{}

func (NopMailer) SendOrderConfirmation(context.Context, *domain.Order, *domain.User) error {
	return nil
}

func (NopMailer) SendOrderStatusUpdate(context.Context, *domain.Order, *domain.User, []byte) error {
	return nil
}
