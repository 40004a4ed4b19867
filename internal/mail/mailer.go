package mail

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/sportshop/api/internal/config"
	"github.com/sportshop/api/internal/model"
)

// Sender delivers a single rendered email. The worker owns retries.
type Sender interface {
	Send(msg model.EmailMessage) error
}

type SMTPSender struct {
	cfg config.MailConfig
}

func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(msg model.EmailMessage) error {
	body := Render(msg)

	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&sb, "To: %s\r\n", msg.To)
	fmt.Fprintf(&sb, "Subject: %s\r\n", msg.Subject)
	sb.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	sb.WriteString(body)

	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)
	}
	if err := smtp.SendMail(s.cfg.Addr(), auth, s.cfg.From, []string{msg.To}, []byte(sb.String())); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// Render produces the plain-text body for a template name. Unknown
// templates fall back to a generic notification so a message never
// hard-fails on rendering.
func Render(msg model.EmailMessage) string {
	name := msg.Context["first_name"]
	switch msg.Template {
	case "welcome":
		return fmt.Sprintf("Hi %s,\n\nWelcome aboard! Your account is ready.\n", name)
	case "order-confirmation":
		return fmt.Sprintf(
			"Hi %s,\n\nThanks for your order %s. The total is %s. We will let you know as soon as it ships.\n",
			name, msg.Context["order_number"], msg.Context["total"],
		)
	case "order-status":
		return fmt.Sprintf(
			"Hi %s,\n\nYour order %s is now %s.\n",
			name, msg.Context["order_number"], msg.Context["status"],
		)
	default:
		return fmt.Sprintf("Hi %s,\n\nYou have a new notification from the shop.\n", name)
	}
}
