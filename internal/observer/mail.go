package observer

import (
	"fmt"
	"log/slog"

	"github.com/roach88/userwatch/internal/entity"
	"github.com/roach88/userwatch/internal/event"
)

// Message is an outgoing notification mail.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a Message.
type Sender interface {
	Send(msg Message) error
}

// LogSender is the stub Sender: it logs the message instead of mailing it.
type LogSender struct {
	Logger *slog.Logger
}

// Send implements Sender.
func (s LogSender) Send(msg Message) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("mail", "to", msg.To, "subject", msg.Subject)
	return nil
}

// MailSink mails the user when their record is created or deleted.
// Entities without an email attribute, and all other events, are ignored.
type MailSink struct {
	sender Sender
}

// NewMailSink creates a sink that hands messages to sender.
// A nil sender defaults to LogSender.
func NewMailSink(sender Sender) *MailSink {
	if sender == nil {
		sender = LogSender{}
	}
	return &MailSink{sender: sender}
}

// Update implements event.Observer.
func (m *MailSink) Update(_ event.Subject, name string, data any) error {
	e, ok := data.(entity.Entity)
	if !ok {
		return nil
	}
	to, ok := e.Attrs.StringValue("email")
	if !ok || to == "" {
		return nil
	}
	who, _ := e.Attrs.StringValue("name")
	if who == "" {
		who = to
	}

	var msg Message
	switch name {
	case entity.EventCreated:
		msg = Message{
			To:      to,
			Subject: "Welcome",
			Body:    fmt.Sprintf("Hello %s, your account %s has been created.", who, e.ID),
		}
	case entity.EventDeleted:
		msg = Message{
			To:      to,
			Subject: "Goodbye",
			Body:    fmt.Sprintf("Hello %s, your account %s has been deleted.", who, e.ID),
		}
	default:
		return nil
	}

	if err := m.sender.Send(msg); err != nil {
		return fmt.Errorf("mail sink: send to %s: %w", to, err)
	}
	return nil
}
