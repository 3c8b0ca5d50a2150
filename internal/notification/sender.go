package notification

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/yourorg/softstore/internal/reliability/circuitbreaker"
	"github.com/yourorg/softstore/internal/reliability/retry"
)

// Message is a single outbound email
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers messages to purchasers
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender delivers mail over plain SMTP. Sends are retried with backoff and
// short-circuited while the mail relay is known to be failing.
type SMTPSender struct {
	host     string
	port     int
	from     string
	username string
	password string
	logger   *slog.Logger
	breaker  *circuitbreaker.CircuitBreaker
	retryCfg *retry.Config
}

// NewSMTPSender creates a new SMTP sender
func NewSMTPSender(host string, port int, from, username, password string, logger *slog.Logger) *SMTPSender {
	if logger == nil {
		logger = slog.Default()
	}

	breaker := circuitbreaker.NewCircuitBreaker(5, 2, 30*time.Second)
	breaker.SetStateChangeCallback(func(from, to circuitbreaker.State) {
		logger.Warn("mail relay circuit state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})

	return &SMTPSender{
		host:     host,
		port:     port,
		from:     from,
		username: username,
		password: password,
		logger:   logger,
		breaker:  breaker,
		retryCfg: retry.DefaultConfig(),
	}
}

// Send delivers one message. A delivery failure is reported to the caller but
// carries no transactional meaning: consumed keys stay consumed.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if !s.breaker.AllowRequest() {
		return fmt.Errorf("mail relay unavailable (circuit open)")
	}

	_, err := retry.Do(ctx, s.retryCfg, s.logger, "smtp send", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.send(msg)
	})
	if err != nil {
		s.breaker.RecordFailure()
		s.logger.Error("notification delivery failed",
			slog.String("to", msg.To),
			slog.String("error", err.Error()),
		)
		return err
	}

	s.breaker.RecordSuccess()
	s.logger.Info("notification sent",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	return nil
}

func (s *SMTPSender) send(msg Message) error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	return smtp.SendMail(addr, auth, s.from, []string{msg.To}, []byte(b.String()))
}
