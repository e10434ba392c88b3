package notification

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/smtp"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

type SendResult struct {
	MessageID string
	SentAt    time.Time
}

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) (SendResult, error)
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, msg string) (SendResult, error)
}

type SMTPSender struct {
	host     string
	port     string
	username string
	password string
	from     string
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(host, port, username, password, from string) (*SMTPSender, error) {
	if host == "" {
		return nil, fmt.Errorf("SMTP_HOST not set")
	}
	if port == "" {
		return nil, fmt.Errorf("SMTP_PORT not set")
	}
	if from == "" {
		from = username
	}
	return &SMTPSender{host: host, port: port, username: username, password: password, from: from, send: smtp.SendMail}, nil
}

func (s *SMTPSender) SendEmail(ctx context.Context, to, subject, body string) (SendResult, error) {
	if err := ctx.Err(); err != nil {
		return SendResult{}, err
	}
	addr := s.host + ":" + s.port
	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	msg := []byte(
		"From: " + s.from + "\r\n" +
			"To: " + to + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n" +
			"\r\n" +
			body,
	)

	if err := s.send(addr, auth, s.from, []string{to}, msg); err != nil {
		return SendResult{}, fmt.Errorf("smtp send failed: %w", err)
	}
	now := time.Now()
	return SendResult{MessageID: fmt.Sprintf("smtp-%d", now.UnixNano()), SentAt: now}, nil
}

const twilioBaseURL = "https://api.twilio.com"

type TwilioSender struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	httpClient *http.Client
}

func NewTwilioSender(sid, token, from string) (*TwilioSender, error) {
	if sid == "" {
		return nil, fmt.Errorf("TWILIO_ACCOUNT_SID not set")
	}
	if token == "" {
		return nil, fmt.Errorf("TWILIO_AUTH_TOKEN not set")
	}
	if from == "" {
		return nil, fmt.Errorf("TWILIO_FROM_NUMBER not set")
	}
	return &TwilioSender{
		accountSID: sid,
		authToken:  token,
		fromNumber: from,
		baseURL:    twilioBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// WithBaseURL points the sender at another API host.
func (t *TwilioSender) WithBaseURL(u string) *TwilioSender {
	t.baseURL = strings.TrimRight(u, "/")
	return t
}

func (t *TwilioSender) SendSMS(ctx context.Context, to, msg string) (SendResult, error) {
	apiURL := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.baseURL, t.accountSID)

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", t.fromNumber)
	form.Set("Body", msg)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return SendResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(t.accountSID, t.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return SendResult{}, fmt.Errorf("twilio request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return SendResult{}, fmt.Errorf("twilio error %s: %s", resp.Status, string(respBody))
	}
	now := time.Now()
	return SendResult{MessageID: fmt.Sprintf("twilio-%d", now.UnixNano()), SentAt: now}, nil
}

// LogSender stands in for an unconfigured channel.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (l *LogSender) SendEmail(_ context.Context, to, subject, _ string) (SendResult, error) {
	l.logger.Info("Email channel not configured, skipping", zap.String("to", to), zap.String("subject", subject))
	return SendResult{MessageID: "log", SentAt: time.Now()}, nil
}

func (l *LogSender) SendSMS(_ context.Context, to, _ string) (SendResult, error) {
	l.logger.Info("SMS channel not configured, skipping", zap.String("to", to))
	return SendResult{MessageID: "log", SentAt: time.Now()}, nil
}
