// Package sender превращает доменные события из брокера в письма пользователям.
package sender

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/designhub/internal/lib/sl"
	"github.com/magabrotheeeer/designhub/internal/lib/smtp"
	"github.com/magabrotheeeer/designhub/internal/models"
)

// Mailer открывает SMTP-сессии и знает адрес отправителя.
type Mailer interface {
	Connect() (smtp.Client, error)
	Sender() string
}

// Service отправляет письма по событиям.
type Service struct {
	transport Mailer
	log       *slog.Logger
	publicURL string
}

// New создает новый экземпляр Service.
func New(log *slog.Logger, transport Mailer, publicURL string) *Service {
	return &Service{
		transport: transport,
		log:       log,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

type letter struct {
	subject string
	body    string
}

// HandleEvent разбирает событие и отправляет соответствующее письмо.
//
// Неизвестные события и события без адреса подтверждаются без отправки.
func (s *Service) HandleEvent(body []byte) error {
	const op = "sender.HandleEvent"
	var event models.Event
	if err := json.Unmarshal(body, &event); err != nil {
		s.log.Error("failed to unmarshal message body", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: error unmarshalling message: %w", op, err)
	}
	log := s.log.With(slog.String("op", op), slog.String("event", event.Type), slog.String("user_id", event.UserID))

	if event.Email == "" {
		log.Warn("event without recipient, skipped")
		return nil
	}
	l, ok := s.compose(event)
	if !ok {
		log.Info("event type has no email template, skipped")
		return nil
	}
	if err := s.sendEmail([]string{event.Email}, l.subject, l.body); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("email sent")
	return nil
}

func (s *Service) compose(event models.Event) (letter, bool) {
	name := event.Name
	if name == "" {
		name = "there"
	}
	switch event.Type {
	case models.EventUserRegistered:
		return letter{
			subject: "Welcome to DesignHub",
			body: fmt.Sprintf("Hi %s,\n\nYour account is ready. Pick a plan to start sending design requests: %s/dashboard/billing\n",
				name, s.publicURL),
		}, true
	case models.EventSubscriptionChanged:
		return letter{
			subject: "Your subscription status changed",
			body: fmt.Sprintf("Hi %s,\n\nYour subscription is now %s.\nManage billing: %s/dashboard/billing\n",
				name, event.Attributes["status"], s.publicURL),
		}, true
	case models.EventRequestStatusChanged:
		return letter{
			subject: fmt.Sprintf("Request \"%s\" is %s", event.Attributes["title"], humanStatus(event.Attributes["status"])),
			body: fmt.Sprintf("Hi %s,\n\nYour design request \"%s\" moved to %s.\nOpen it: %s/dashboard/requests/%s\n",
				name, event.Attributes["title"], humanStatus(event.Attributes["status"]), s.publicURL, event.Attributes["request_id"]),
		}, true
	}
	return letter{}, false
}

func humanStatus(status string) string {
	return strings.ToLower(strings.ReplaceAll(status, "_", " "))
}

func (s *Service) sendEmail(to []string, subject, bodyText string) error {
	from := s.transport.Sender()
	msg := strings.Join([]string{
		"From: " + from,
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer client.Close()

	if err := client.Mail(from); err != nil {
		s.log.Error("failed to set MAIL FROM", slog.String("from", from), sl.Err(err))
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", slog.String("recipient", addr), sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get Data writer", sl.Err(err))
		return err
	}

	if _, err = wc.Write([]byte(msg)); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}

	if err = wc.Close(); err != nil {
		s.log.Error("failed to close Data writer", sl.Err(err))
		return err
	}

	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}
	return nil
}
