package adapter

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/bagly/claim-intake/internal/auth"
	"github.com/bagly/claim-intake/internal/domain"
)

var (
	_ auth.EmailSender = (*SMTPEmailSender)(nil)
	_ auth.EmailSender = (*LogEmailSender)(nil)
)

const otpEmailSubject = "Bagly - Código de Verificação"

var otpEmailTemplate = template.Must(template.New("otp").Parse(`<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto;">
  <h1 style="color: #6B8DD6;">Bagly</h1>
  <p>Seu código de verificação é:</p>
  <h2 style="font-size: 32px; letter-spacing: 4px; color: #1A1A1A; background: #F5F5F5; padding: 20px; text-align: center; border-radius: 8px;">{{.Code}}</h2>
  <p style="color: #666666;">Este código expira em {{.Minutes}} minutos.</p>
  <p style="color: #666666;">Se você não solicitou este código, ignore este e-mail.</p>
</div>`))

// mailDialer is the part of *gomail.Dialer the sender uses.
type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPConfig configures SMTPEmailSender.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password domain.SecretString
	From     string
	Validity time.Duration // rendered in the message body
}

// SMTPEmailSender delivers codes through an SMTP relay.
type SMTPEmailSender struct {
	dialer   mailDialer
	from     string
	validity time.Duration
}

// NewSMTPEmailSender creates a sender that dials cfg.Host for every message.
func NewSMTPEmailSender(cfg SMTPConfig) *SMTPEmailSender {
	return newSMTPEmailSender(
		gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password.Expose()),
		cfg.From, cfg.Validity)
}

func newSMTPEmailSender(d mailDialer, from string, validity time.Duration) *SMTPEmailSender {
	return &SMTPEmailSender{dialer: d, from: from, validity: validity}
}

// SendOTP renders and sends the verification email.
func (s *SMTPEmailSender) SendOTP(ctx context.Context, to, code string) error {
	ctx, span := startSpan(ctx, "smtp.send_otp", "smtp", "DialAndSend")
	defer span.End()

	// gomail takes no context; honor cancellation before dialing.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("smtp email: send otp: %w", err)
	}

	body, err := renderOTPEmail(code, s.validity)
	if err != nil {
		return failSpan(span, fmt.Errorf("smtp email: render: %w", err))
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", otpEmailSubject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return failSpan(span, fmt.Errorf("smtp email: send otp to %s: %w", domain.MaskEmail(to), err))
	}
	return nil
}

func renderOTPEmail(code string, validity time.Duration) (string, error) {
	var buf bytes.Buffer
	err := otpEmailTemplate.Execute(&buf, struct {
		Code    string
		Minutes int
	}{Code: code, Minutes: int(validity.Minutes())})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// LogEmailSender stands in for SMTP when no relay is configured. It never
// fails. The code itself is only written in local environments.
type LogEmailSender struct {
	logger *slog.Logger
	local  bool
}

// NewLogEmailSender creates a LogEmailSender. Pass local=true to include
// the code in the log line.
func NewLogEmailSender(logger *slog.Logger, local bool) *LogEmailSender {
	return &LogEmailSender{logger: logger, local: local}
}

func (s *LogEmailSender) SendOTP(ctx context.Context, to, code string) error {
	if s.local {
		s.logger.InfoContext(ctx, "otp email (log-only)",
			slog.String("to", domain.MaskEmail(to)),
			slog.String("otp", code),
		)
		return nil
	}
	s.logger.WarnContext(ctx, "otp email not sent: smtp not configured",
		slog.String("to", domain.MaskEmail(to)),
	)
	return nil
}
