// Package notify is the sink for lifecycle events: it records user-facing
// notifications and fans change events out to subscribers over Redis pub/sub.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/dentalink/clinic-scheduler/internal/appointment"
	"github.com/dentalink/clinic-scheduler/internal/clinic"
)

const eventsChannel = "appointments:events"

// ChangeEvent is the payload published for every appointment mutation.
// Snapshot-driven consumers (appointment lists, dashboards) re-derive their
// state on receipt instead of patching it incrementally.
type ChangeEvent struct {
	Event         string    `json:"event"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	Clinic        string    `json:"clinic"`
	Status        string    `json:"status"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NotificationStore is the slice of the storage boundary this package needs.
type NotificationStore interface {
	InsertNotification(ctx context.Context, n appointment.Notification) error
}

// Publisher is satisfied by *redis.Client.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type Notifier struct {
	store NotificationStore
	pub   Publisher
	log   zerolog.Logger
}

func NewNotifier(store NotificationStore, pub Publisher, log zerolog.Logger) *Notifier {
	return &Notifier{store: store, pub: pub, log: log}
}

// AppointmentChanged records a notification for the owning patient and
// publishes a change event. Both writes are fire-and-forget: failures are
// logged and never surfaced to the lifecycle operation that raised the event.
func (n *Notifier) AppointmentChanged(ctx context.Context, a *appointment.Appointment, event string) {
	title, message := describe(a, event)
	if title != "" {
		err := n.store.InsertNotification(ctx, appointment.Notification{
			UserID:    a.PatientID,
			Title:     title,
			Message:   message,
			Type:      notificationType(event),
			Link:      "/appointments/" + a.ID.String(),
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			n.log.Error().Err(err).Str("event", event).Stringer("appointment_id", a.ID).Msg("insert notification failed")
		}
	}

	ev := ChangeEvent{
		Event:         event,
		AppointmentID: a.ID,
		PatientID:     a.PatientID,
		Date:          a.Date.UTC().Format(clinic.DateLayout),
		Time:          a.Time,
		Clinic:        a.Clinic,
		Status:        string(a.Status),
		OccurredAt:    time.Now().UTC(),
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		n.log.Error().Err(err).Str("event", event).Msg("marshal change event failed")
		return
	}
	if err := n.pub.Publish(ctx, eventsChannel, payload).Err(); err != nil {
		n.log.Error().Err(err).Str("event", event).Msg("publish change event failed")
	}
}

// Subscribe registers onChange for all appointment change events and returns
// an unsubscribe func. Malformed payloads are dropped.
func Subscribe(ctx context.Context, rdb *redis.Client, log zerolog.Logger, onChange func(ChangeEvent)) func() {
	sub := rdb.Subscribe(ctx, eventsChannel)

	go func() {
		for msg := range sub.Channel() {
			var ev ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warn().Err(err).Msg("drop malformed change event")
				continue
			}
			onChange(ev)
		}
	}()

	return func() {
		_ = sub.Close()
	}
}

func describe(a *appointment.Appointment, event string) (title, message string) {
	when := fmt.Sprintf("%s at %s (%s)", a.Date.UTC().Format(clinic.DateLayout), a.Time, a.Clinic)
	switch event {
	case appointment.EventAppointmentBooked:
		return "Appointment booked", "Your appointment is confirmed for " + when + "."
	case appointment.EventAppointmentUpdated:
		return "Appointment updated", "Your appointment was updated: " + when + "."
	case appointment.EventAppointmentCancelled:
		return "Appointment cancelled", "Your appointment on " + when + " was cancelled."
	case appointment.EventAppointmentCompleted:
		return "Visit completed", "Thank you for visiting. Your appointment on " + when + " is complete."
	case appointment.EventAppointmentMissed:
		return "Appointment missed", "You missed your appointment on " + when + ". Please rebook."
	case appointment.EventAppointmentDeleted:
		return "", ""
	default:
		return "", ""
	}
}

func notificationType(event string) string {
	switch event {
	case appointment.EventAppointmentCancelled, appointment.EventAppointmentMissed:
		return "warning"
	default:
		return "info"
	}
}
