// Package smtpout submits composed messages through the provider's SMTP
// endpoint, authenticating with the same XOAUTH2 tokens the IMAP side
// uses.
package smtpout

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/emersion/go-smtp"
	"github.com/jhillyerd/enmime"

	"github.com/vdavid/mailsync/internal/auth"
	"github.com/vdavid/mailsync/internal/models"
)

// ErrSendRejected is returned when the SMTP server refuses the
// submission after a successful connection.
var ErrSendRejected = errors.New("SMTP submission rejected")

// Outgoing is a composed message ready for submission.
type Outgoing struct {
	To        []string
	CC        []string
	BCC       []string
	Subject   string
	BodyPlain string
	BodyHTML  string
}

// Sender submits messages for authenticated accounts.
type Sender struct {
	authr *auth.Authenticator
}

// NewSender creates a Sender that mints tokens through the given
// Authenticator.
func NewSender(authr *auth.Authenticator) *Sender {
	return &Sender{authr: authr}
}

// Send connects to the account's SMTP endpoint over STARTTLS,
// authenticates with a fresh access token, and submits the message to
// every To, Cc, and Bcc recipient. Bcc recipients receive the message
// but never appear in its headers.
func (s *Sender) Send(ctx context.Context, account *models.Account, out *Outgoing) error {
	provider, err := s.authr.ProviderFor(account)
	if err != nil {
		return err
	}

	token, err := s.authr.AccessToken(ctx, account)
	if err != nil {
		return err
	}

	c, err := smtp.DialStartTLS(provider.SMTPAddr, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server %s: %w", provider.SMTPAddr, err)
	}
	defer func() { _ = c.Close() }()

	if err := c.Auth(auth.NewXOAuth2(account.Email, token)); err != nil {
		return fmt.Errorf("%w: %v", ErrSendRejected, err)
	}

	if err := c.Mail(account.Email, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrSendRejected, err)
	}

	recipients := make([]string, 0, len(out.To)+len(out.CC)+len(out.BCC))
	recipients = append(recipients, out.To...)
	recipients = append(recipients, out.CC...)
	recipients = append(recipients, out.BCC...)
	for _, rcpt := range recipients {
		if err := c.Rcpt(rcpt, nil); err != nil {
			return fmt.Errorf("%w: recipient %s: %v", ErrSendRejected, rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendRejected, err)
	}

	if err := encodeMessage(w, account, out); err != nil {
		_ = w.Close()
		return err
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrSendRejected, err)
	}

	return c.Quit()
}

// encodeMessage builds the MIME message. Bcc addresses are deliberately
// left out of the headers.
func encodeMessage(w io.Writer, account *models.Account, out *Outgoing) error {
	builder := enmime.Builder().
		From(account.DisplayName, account.Email).
		Subject(out.Subject).
		Text([]byte(out.BodyPlain))

	if out.BodyHTML != "" {
		builder = builder.HTML([]byte(out.BodyHTML))
	}
	for _, to := range out.To {
		builder = builder.To("", to)
	}
	for _, cc := range out.CC {
		builder = builder.CC("", cc)
	}

	root, err := builder.Build()
	if err != nil {
		return fmt.Errorf("failed to build message: %w", err)
	}

	if err := root.Encode(w); err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	return nil
}
