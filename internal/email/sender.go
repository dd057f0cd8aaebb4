package email

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"paylink/internal/config"
	"paylink/internal/pkg/utils"
)

// Message is a single outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers one message. Implementations do not retry: a failed send
// is final for that attempt and reported to the caller.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender picks the provider named in cfg.
func NewSender(cfg *config.EmailConfig, logger *zap.Logger) (Sender, error) {
	switch strings.ToLower(cfg.Provider) {
	case "smtp":
		if cfg.SMTPHost == "" {
			return nil, fmt.Errorf("email provider smtp requires SMTP_HOST")
		}
		return NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.From), nil
	case "resend":
		if cfg.ResendAPIKey == "" {
			return nil, fmt.Errorf("email provider resend requires RESEND_API_KEY")
		}
		return NewResendSender(cfg.ResendBaseURL, cfg.ResendAPIKey, cfg.From, cfg.Timeout), nil
	case "", "log":
		return NewLogSender(logger), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger.Named("email")}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("Email not delivered (log provider)",
		zap.String("to", utils.MaskEmail(msg.To)),
		zap.String("subject", msg.Subject),
	)
	return nil
}
