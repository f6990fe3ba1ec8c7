package infra

import (
	"fmt"
	"net/smtp"
	"os"

	"github.com/VictorVasquezZT2005/Prestamos/internal/config"

	"github.com/jordan-wright/email"
)

// Mailer wraps SMTP configuration for sending vouchers as PDF attachments.
type Mailer struct {
	host     string
	user     string
	password string
	addr     string
	breaker  *Breaker
}

func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		host:     cfg.SMTPHost,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		breaker:  NewBreaker("smtp", DefaultBreakerConfig()),
	}
}

// Breaker exposes the relay breaker for the health endpoint.
func (m *Mailer) Breaker() *Breaker { return m.breaker }

// SendVale mails the rendered voucher stored at pdfPath.
func (m *Mailer) SendVale(to, folio, pdfPath string) error {
	e := email.NewEmail()
	e.From = m.user
	e.To = []string{to}
	e.Subject = fmt.Sprintf("Vale de préstamo #%s", folio)
	e.Text = []byte(fmt.Sprintf("Se adjunta el vale de préstamo #%s (original y copia).\n", folio))

	if pdfPath != "" {
		f, err := os.Open(pdfPath)
		if err != nil {
			return fmt.Errorf("mailer: attach PDF: %w", err)
		}
		_, err = e.Attach(f, fmt.Sprintf("vale_%s.pdf", folio), "application/pdf")
		f.Close()
		if err != nil {
			return fmt.Errorf("mailer: attach PDF: %w", err)
		}
	}

	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.password, m.host)
	}
	return m.breaker.Ejecutar(func() error {
		return e.Send(m.addr, auth)
	})
}
