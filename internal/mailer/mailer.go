// Package mailer wraps the outbound SMTP transport. Failures are classified
// into exactly two outcome classes: throttled (retryable) and permanent.
package mailer

import (
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	gomail "gopkg.in/gomail.v2"

	"github.com/unclebandit/mailblast-backend/internal/config"
)

// Sentinel errors callers use with errors.Is to branch on outcome class.
var (
	ErrThrottled = errors.New("transport throttled")
	ErrPermanent = errors.New("permanent delivery failure")
)

// WrapThrottled annotates an error as a throttle signal.
func WrapThrottled(err error) error {
	if err == nil {
		return ErrThrottled
	}
	return fmt.Errorf("%w: %v", ErrThrottled, err)
}

// WrapPermanent annotates an error as a permanent failure.
func WrapPermanent(err error) error {
	if err == nil {
		return ErrPermanent
	}
	return fmt.Errorf("%w: %v", ErrPermanent, err)
}

// Attachment is blob content resolved from the attachment store.
type Attachment struct {
	Filename string
	Content  []byte
}

// OutboundMessage is one fully addressed, rendered mail.
type OutboundMessage struct {
	From        string
	To          string
	Cc          []string
	Bcc         []string
	Subject     string
	HTMLBody    string
	Attachments []Attachment
}

// Sender delivers one message and returns the transport message id. Errors
// wrap ErrThrottled or ErrPermanent.
type Sender interface {
	Send(msg OutboundMessage) (messageID string, err error)
}

// SMTPSender implements Sender over gomail.
type SMTPSender struct {
	dialer *gomail.Dialer
	logger zerolog.Logger
}

func NewSMTPSender(cfg config.SMTPConfig, logger zerolog.Logger) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		logger: logger.With().Str("component", "mailer").Logger(),
	}
}

func (s *SMTPSender) Send(msg OutboundMessage) (string, error) {
	m := gomail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To)
	if len(msg.Cc) > 0 {
		m.SetHeader("Cc", msg.Cc...)
	}
	if len(msg.Bcc) > 0 {
		m.SetHeader("Bcc", msg.Bcc...)
	}
	m.SetHeader("Subject", msg.Subject)

	messageID := uuid.NewString()
	m.SetHeader("Message-ID", fmt.Sprintf("<%s@mailblast>", messageID))
	m.SetBody("text/html", msg.HTMLBody)

	for _, a := range msg.Attachments {
		content := a.Content
		m.Attach(a.Filename, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(content)
			return err
		}))
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Warn().Err(err).Str("to", msg.To).Msg("send failed")
		return "", Classify(err)
	}
	return messageID, nil
}

// Classify buckets a transport error into the throttled or permanent class.
// 4xx SMTP replies and network-level failures are worth retrying; 5xx are not.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrThrottled) || errors.Is(err, ErrPermanent) {
		return err
	}

	var proto *textproto.Error
	if errors.As(err, &proto) {
		if proto.Code >= 500 {
			return WrapPermanent(err)
		}
		return WrapThrottled(err)
	}

	lower := strings.ToLower(err.Error())
	for _, marker := range []string{"throttl", "rate limit", "too many", "try again", "4.7."} {
		if strings.Contains(lower, marker) {
			return WrapThrottled(err)
		}
	}
	for _, marker := range []string{"550", "551", "553", "invalid", "no such user", "rejected"} {
		if strings.Contains(lower, marker) {
			return WrapPermanent(err)
		}
	}
	// Unknown failure, assume transient so the retry budget gets a chance.
	return WrapThrottled(err)
}

var _ Sender = (*SMTPSender)(nil)
