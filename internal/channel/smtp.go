package channel

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/dispatch-engine/internal/domain"
)

const defaultSMTPPort = 587

// SMTPChannel relays each message through the Domain's SMTP server. Merge
// fields are always substituted locally, even for provider templates.
type SMTPChannel struct {
	timeout time.Duration
	helo    string
	now     func() time.Time
}

// NewSMTPChannel creates an SMTP channel. timeout bounds one whole session.
func NewSMTPChannel(timeout time.Duration, helo string) *SMTPChannel {
	if helo == "" {
		helo = "localhost"
	}
	return &SMTPChannel{timeout: timeout, helo: helo, now: time.Now}
}

// Send implements Channel. The returned id is the Message-ID header value.
func (c *SMTPChannel) Send(ctx context.Context, d *domain.Domain, msg *Message) (string, error) {
	if d.SMTPHost == "" {
		return "", &SendError{Channel: NameSMTP, Err: errors.New("smtp host not configured")}
	}
	port := d.SMTPPort
	if port == 0 {
		port = defaultSMTPPort
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.New().String(), mailDomain(msg.From.Email, d.Domain))
	data, err := c.build(msg, messageID)
	if err != nil {
		return "", &SendError{Channel: NameSMTP, Err: err}
	}

	addr := net.JoinHostPort(d.SMTPHost, strconv.Itoa(port))
	if err := c.deliver(ctx, addr, d, msg.From.Email, msg.To.Email, data); err != nil {
		se := &SendError{Channel: NameSMTP, Err: err}
		var tpErr *textproto.Error
		if errors.As(err, &tpErr) {
			se.StatusCode = tpErr.Code
			se.Payload = tpErr.Msg
		}
		return "", se
	}
	return messageID, nil
}

func (c *SMTPChannel) build(msg *Message, messageID string) ([]byte, error) {
	subject, body := msg.Rendered()

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", msg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", c.now().Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "Message-ID: %s\r\n", messageID)
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n\r\n")

	qp := quotedprintable.NewWriter(&buf)
	if _, err := qp.Write([]byte(body)); err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	if err := qp.Close(); err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	buf.WriteString("\r\n")
	return buf.Bytes(), nil
}

// deliver runs one SMTP transaction. STARTTLS is used when offered, and
// credentials are sent only if the Domain has them and the server
// advertises AUTH.
func (c *SMTPChannel) deliver(ctx context.Context, addr string, d *domain.Domain, from, to string, data []byte) error {
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, d.SMTPHost)
	if err != nil {
		conn.Close()
		return fmt.Errorf("greeting: %w", err)
	}
	defer client.Close()

	if err := client.Hello(c.helo); err != nil {
		return fmt.Errorf("EHLO: %w", err)
	}
	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: d.SMTPHost}); err != nil {
			return fmt.Errorf("STARTTLS: %w", err)
		}
	}
	if d.SMTPUser != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(smtp.PlainAuth("", d.SMTPUser, d.SMTPPass, d.SMTPHost)); err != nil {
				return fmt.Errorf("AUTH: %w", err)
			}
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("RCPT TO: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("end DATA: %w", err)
	}
	// The message is accepted once DATA completes.
	_ = client.Quit()
	return nil
}

func mailDomain(addr, fallback string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 && i < len(addr)-1 {
		return addr[i+1:]
	}
	if fallback != "" {
		return fallback
	}
	return "localhost"
}
