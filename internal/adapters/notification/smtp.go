package notification

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/AchilleasB/inrem/pulse-service/internal/config"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/ports"
)

const smtpDialTimeout = 10 * time.Second

// SMTPGateway delivers multipart (text + HTML) email over SMTP, upgrading
// to STARTTLS when the server offers it.
type SMTPGateway struct {
	host     string
	addr     string
	from     string
	username string
	password string
	cb       *gobreaker.CircuitBreaker
	now      func() time.Time
}

var _ ports.EmailGateway = (*SMTPGateway)(nil)

func NewSMTPGateway(cfg config.SMTPConfig) *SMTPGateway {
	return &SMTPGateway{
		host:     cfg.Host,
		addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		from:     cfg.From,
		username: cfg.Username,
		password: cfg.Password,
		cb:       config.NewCircuitBreaker(config.BreakerSMTP),
		now:      time.Now,
	}
}

func (g *SMTPGateway) SendEmail(ctx context.Context, msg ports.EmailMessage) error {
	body, err := buildMessage(g.from, msg, g.now())
	if err != nil {
		return fmt.Errorf("build email: %w", err)
	}
	_, err = g.cb.Execute(func() (interface{}, error) {
		return nil, g.deliver(ctx, msg.To, body)
	})
	if err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (g *SMTPGateway) deliver(ctx context.Context, to string, body []byte) error {
	dialer := net.Dialer{Timeout: smtpDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", g.addr)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, g.host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: g.host}); err != nil {
			return err
		}
	}
	if g.username != "" {
		if err := c.Auth(smtp.PlainAuth("", g.username, g.password, g.host)); err != nil {
			return err
		}
	}
	if err := c.Mail(g.from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// buildMessage renders msg as a multipart/alternative RFC 5322 message.
func buildMessage(from string, msg ports.EmailMessage, now time.Time) ([]byte, error) {
	var parts bytes.Buffer
	mw := multipart.NewWriter(&parts)

	for _, p := range []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=UTF-8", msg.Text},
		{"text/html; charset=UTF-8", msg.HTML},
	} {
		if p.content == "" {
			continue
		}
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {p.contentType},
			"Content-Transfer-Encoding": {"8bit"},
		})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(p.content)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", now.Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "Message-ID: <%s@inrem>\r\n", uuid.NewString())
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n", mw.Boundary())
	buf.WriteString("\r\n")
	buf.Write(parts.Bytes())
	return buf.Bytes(), nil
}
