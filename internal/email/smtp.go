package email

import (
	"context"

	"gopkg.in/gomail.v2"
)

// SMTPSender delivers mail through an SMTP relay.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(host string, port int, user, pass, from string) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, user, pass),
		from:   from,
	}
}

// Send delivers msg synchronously. The context is only checked before the
// relay is contacted: a started SMTP exchange runs to completion so its
// result is always the one reported. gomail bounds the dial at 10s.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	return s.dialer.DialAndSend(m)
}
