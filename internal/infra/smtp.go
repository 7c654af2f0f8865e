package infra

import (
	"fmt"
	"net/smtp"

	"pricewatch/internal/config"
	"pricewatch/internal/model"

	"github.com/jordan-wright/email"
)

// Mailer sends self-addressed alert emails. Host and port come from env
// config; the account credentials live in Settings so the user can change
// them from the dashboard without a restart.
type Mailer struct {
	host string
	port int
}

func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{host: cfg.SMTPHost, port: cfg.SMTPPort}
}

// For returns a notifier bound to the given settings' credentials.
func (m *Mailer) For(st *model.Settings) *MailNotifier {
	return &MailNotifier{
		addr:     fmt.Sprintf("%s:%d", m.host, m.port),
		host:     m.host,
		account:  st.EmailAddress,
		password: st.EmailPassword,
	}
}

// MailNotifier delivers one alert to the configured account.
type MailNotifier struct {
	addr     string
	host     string
	account  string
	password string
}

// Send delivers a plain-text message, optionally attaching an image file.
func (n *MailNotifier) Send(subject, body, attachmentPath string) error {
	if n.account == "" || n.password == "" {
		return fmt.Errorf("mailer: credentials not configured")
	}

	e := email.NewEmail()
	e.From = n.account
	e.To = []string{n.account}
	e.Subject = subject
	e.Text = []byte(body)

	if attachmentPath != "" {
		if _, err := e.AttachFile(attachmentPath); err != nil {
			return fmt.Errorf("mailer: attach image: %w", err)
		}
	}

	auth := smtp.PlainAuth("", n.account, n.password, n.host)
	return e.Send(n.addr, auth)
}
