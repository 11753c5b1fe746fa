package functions

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/shaiso/Sequencer/internal/config"
	"github.com/shaiso/Sequencer/internal/domain"
)

const defaultSubject = "Automated Report"

// ErrInvalidRecipient — адрес получателя некорректен.
var ErrInvalidRecipient = errors.New("invalid recipient")

// Message — письмо.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Mailer отправляет письма.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer отправляет письма через SMTP сервер.
type SMTPMailer struct {
	cfg config.SMTPConfig
}

// NewSMTPMailer создаёт SMTPMailer.
func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// Send отправляет письмо. net/smtp не принимает контекст, поэтому при
// отмене ctx Send возвращается сразу, а отправка завершается в фоне.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	from := msg.From
	if from == "" {
		from = m.cfg.From
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, from, []string{msg.To}, buildMessage(from, msg))
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildMessage(from string, msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

func (l *library) emailFunctions() []domain.FunctionSpec {
	return []domain.FunctionSpec{
		{
			Name:        "send_email",
			Description: "Send an email report with the given content",
			Inputs: []domain.Param{
				in("content", domain.TypeAny, "Report content: text, record or list"),
				in("recipient", domain.TypeString, "Recipient email address"),
				optional("subject", domain.TypeString, "Email subject", domain.String(defaultSubject)),
			},
			Outputs: []domain.Field{
				out("status", domain.TypeString, "Delivery status"),
				out("recipient", domain.TypeString, "Recipient address"),
				out("subject", domain.TypeString, "Email subject"),
			},
			Impl: l.sendEmail,
		},
	}
}

func (l *library) sendEmail(ctx context.Context, args domain.Args) (domain.Value, error) {
	content, ok := args["content"]
	if !ok {
		return domain.Value{}, argError("content", "any value", content, false)
	}
	recipient, err := stringArg(args, "recipient")
	if err != nil {
		return domain.Value{}, err
	}
	subject, err := stringArg(args, "subject")
	if err != nil {
		return domain.Value{}, err
	}

	recipient = strings.TrimSpace(recipient)
	if !emailPattern.MatchString(recipient) {
		return domain.Value{}, fmt.Errorf("%w: %q", ErrInvalidRecipient, recipient)
	}

	msg := Message{
		To:      recipient,
		Subject: subject,
		Body:    emailBody(content),
	}

	status := "Email sent successfully"
	if l.deps.Mailer == nil {
		l.deps.Logger.InfoContext(ctx, "email delivery skipped, smtp not configured",
			"recipient", recipient,
			"subject", subject,
			"body_bytes", len(msg.Body),
		)
		status = "Email logged (SMTP not configured)"
	} else if err := l.deps.Mailer.Send(ctx, msg); err != nil {
		return domain.Value{}, fmt.Errorf("send email to %s: %w", recipient, err)
	}

	return record(map[string]any{
		"status":    status,
		"recipient": recipient,
		"subject":   subject,
	})
}

func emailBody(content domain.Value) string {
	return "Hello,\n\nHere is your automated report:\n\n" +
		formatContent(content) +
		"\n\n--\nThis email was sent automatically by Sequencer.\n"
}

// formatContent превращает содержимое отчёта в текст письма.
func formatContent(v domain.Value) string {
	switch v.Kind() {
	case domain.KindRecord:
		return formatValue(v, 0)
	case domain.KindList:
		items, _ := v.Items()
		if len(items) == 0 {
			return "No items found."
		}
		var b strings.Builder
		fmt.Fprintf(&b, "List of %d items:\n\n", len(items))
		for i, item := range items {
			fmt.Fprintf(&b, "%d. %s\n", i+1, formatValue(item, 0))
		}
		return b.String()
	default:
		return v.String()
	}
}

func formatValue(v domain.Value, indent int) string {
	spaces := strings.Repeat("  ", indent)

	switch v.Kind() {
	case domain.KindRecord:
		var b strings.Builder
		b.WriteString("{\n")
		for _, k := range v.Keys() {
			f, _ := v.Field(k)
			fmt.Fprintf(&b, "%s  %s: %s\n", spaces, k, formatValue(f, indent+1))
		}
		b.WriteString(spaces + "}")
		return b.String()
	case domain.KindList:
		items, _ := v.Items()
		if len(items) == 0 {
			return "[]"
		}
		var b strings.Builder
		b.WriteString("[\n")
		for _, item := range items {
			fmt.Fprintf(&b, "%s  %s\n", spaces, formatValue(item, indent+1))
		}
		b.WriteString(spaces + "]")
		return b.String()
	default:
		return v.String()
	}
}
