package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/ayunierto/ascencio-tax-api/internal/consumer"
)

// AppointmentConfirmedHandler emails both parties when a booking lands.
// Missing addresses are skipped, not failed: a staff member without email
// must not block the client's confirmation.
func AppointmentConfirmedHandler(sender Sender, logger *slog.Logger) consumer.Handler {
	return func(_ context.Context, msg kafka.Message) error {
		var ev AppointmentEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			return fmt.Errorf("decode appointment confirmed event: %w", err)
		}

		when := ev.Start.Format("Mon, 02 Jan 2006 15:04 MST")
		if ev.ClientEmail != "" {
			body := fmt.Sprintf("Hi %s,\n\nYour %s appointment with %s is confirmed for %s.",
				ev.ClientName, ev.ServiceName, ev.StaffName, when)
			if ev.MeetingLink != "" {
				body += "\n\nJoin link: " + ev.MeetingLink
			}
			if err := sender.Send(ev.ClientEmail, "Appointment confirmed", body); err != nil {
				logger.Warn("client confirmation email failed", "appointment_id", ev.AppointmentID, "err", err)
			}
		}
		if ev.StaffEmail != "" {
			body := fmt.Sprintf("New %s appointment with %s on %s.", ev.ServiceName, ev.ClientName, when)
			if ev.Comments != "" {
				body += "\n\nClient notes: " + ev.Comments
			}
			if err := sender.Send(ev.StaffEmail, "New appointment booked", body); err != nil {
				logger.Warn("staff confirmation email failed", "appointment_id", ev.AppointmentID, "err", err)
			}
		}
		return nil
	}
}

// AppointmentCancelledHandler emails both parties about a cancellation.
func AppointmentCancelledHandler(sender Sender, logger *slog.Logger) consumer.Handler {
	return func(_ context.Context, msg kafka.Message) error {
		var ev AppointmentEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			return fmt.Errorf("decode appointment cancelled event: %w", err)
		}

		when := ev.Start.Format("Mon, 02 Jan 2006 15:04 MST")
		reason := ev.Reason
		if reason == "" {
			reason = "no reason given"
		}
		if ev.ClientEmail != "" {
			body := fmt.Sprintf("Hi %s,\n\nYour %s appointment on %s was cancelled (%s).",
				ev.ClientName, ev.ServiceName, when, reason)
			if err := sender.Send(ev.ClientEmail, "Appointment cancelled", body); err != nil {
				logger.Warn("client cancellation email failed", "appointment_id", ev.AppointmentID, "err", err)
			}
		}
		if ev.StaffEmail != "" {
			body := fmt.Sprintf("The %s appointment with %s on %s was cancelled (%s).",
				ev.ServiceName, ev.ClientName, when, reason)
			if err := sender.Send(ev.StaffEmail, "Appointment cancelled", body); err != nil {
				logger.Warn("staff cancellation email failed", "appointment_id", ev.AppointmentID, "err", err)
			}
		}
		return nil
	}
}

// UserCreatedHandler sends the welcome email.
func UserCreatedHandler(sender Sender, logger *slog.Logger) consumer.Handler {
	return func(_ context.Context, msg kafka.Message) error {
		var ev UserEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			return fmt.Errorf("decode user created event: %w", err)
		}
		if ev.Email == "" {
			return nil
		}
		body := fmt.Sprintf("Hi %s,\n\nYour Ascencio Tax account is ready. You can now book appointments online.", ev.Name)
		if err := sender.Send(ev.Email, "Welcome to Ascencio Tax", body); err != nil {
			logger.Warn("welcome email failed", "user_id", ev.UserID, "err", err)
		}
		return nil
	}
}
