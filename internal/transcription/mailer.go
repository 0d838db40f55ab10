package transcription

import (
	"fmt"

	gomail "gopkg.in/gomail.v2"

	"github.com/chikitsa360/telehealth-booking/internal/booking"
)

// Mailer delivers the finished transcript to the consultation parties.
type Mailer interface {
	SendTranscript(ap *booking.Appointment, t *Transcription, recipients []string) error
}

// SMTPMailer sends transcripts over SMTP via gomail.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (m *SMTPMailer) SendTranscript(ap *booking.Appointment, t *Transcription, recipients []string) error {
	if len(recipients) == 0 {
		return nil
	}

	minutes := int(t.AudioDuration) / 60
	seconds := int(t.AudioDuration) % 60

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", recipients...)
	msg.SetHeader("Subject", fmt.Sprintf("Consultation transcript - %s %s",
		ap.Date.Format("2006-01-02"), booking.FormatMinute(ap.StartMinute)))
	msg.SetBody("text/plain", fmt.Sprintf(
		"Consultation on %s at %s (recording length %d min %d s)\n\n%s\n",
		ap.Date.Format("2006-01-02"),
		booking.FormatMinute(ap.StartMinute),
		minutes, seconds,
		t.Content,
	))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send transcript mail: %w", err)
	}
	return nil
}
