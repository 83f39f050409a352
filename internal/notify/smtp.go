package notify

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/FanyNavas/Sentara.Api/internal/apperr"
)

// SMTPConfig holds the mail relay settings.
type SMTPConfig struct {
	Host      string
	Port      int
	EnableSSL bool
	From      string
	User      string
	Password  string
	Timeout   time.Duration
}

// SMTPSender sends messages through an SMTP relay.
type SMTPSender struct {
	cfg    SMTPConfig
	logger *log.Logger
}

// NewSMTPSender creates a sender. A new connection is opened per message.
func NewSMTPSender(cfg SMTPConfig, logger *log.Logger) *SMTPSender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SMTPSender{cfg: cfg, logger: logger}
}

// Send delivers msg. Attachments whose file is missing at this moment are
// skipped and logged rather than failing the send.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m := mail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return apperr.Notification("invalid from address", err)
	}
	if err := m.To(msg.To); err != nil {
		return apperr.Notification("invalid recipient", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)

	for _, att := range presentAttachments(msg.Attachments, s.logger) {
		opts := []mail.FileOption{mail.WithFileContentType(mail.ContentType(att.ContentType))}
		if att.DisplayName != "" {
			opts = append(opts, mail.WithFileName(att.DisplayName))
		}
		m.AttachFile(att.FilePath, opts...)
	}

	client, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return apperr.Notification("configure smtp client", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return apperr.Notification(fmt.Sprintf("send mail via %s:%d", s.cfg.Host, s.cfg.Port), err)
	}
	return nil
}

func (s *SMTPSender) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(s.cfg.Timeout),
	}
	switch {
	case s.cfg.EnableSSL && s.cfg.Port == 465:
		// implicit TLS
		opts = append(opts, mail.WithSSL())
	case s.cfg.EnableSSL:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if s.cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.User),
			mail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}

// presentAttachments filters out entries whose file does not exist right now.
func presentAttachments(atts []Attachment, logger *log.Logger) []Attachment {
	out := make([]Attachment, 0, len(atts))
	for _, att := range atts {
		if att.FilePath == "" {
			continue
		}
		fi, err := os.Stat(att.FilePath)
		if err != nil || fi.IsDir() {
			if logger != nil {
				logger.Printf("WARN: attachment %s not found, sending without it", att.FilePath)
			}
			continue
		}
		if att.ContentType == "" {
			att.ContentType = "application/octet-stream"
		}
		out = append(out, att)
	}
	return out
}
