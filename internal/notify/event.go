package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hackgods/care-scheduling/internal/directory"
)

type EventType string

const (
	EventNewAppointment    EventType = "NewAppointment"
	EventAppointmentUpdate EventType = "AppointmentUpdate"
)

// Event is raised by the core after a booking or transition has committed.
// It carries ids only; names are resolved off the request path.
type Event struct {
	Type          EventType
	AppointmentID uuid.UUID
	DoctorID      uuid.UUID
	PatientID     uuid.UUID
	Status        string
	SlotDateTime  time.Time
	OccurredAt    time.Time
}

// Message is the delivery-agnostic notification. Consumers re-render on the
// latest status, so duplicates and reordering are harmless.
type Message struct {
	ID            uuid.UUID       `json:"id"`
	Type          EventType       `json:"type"`
	AppointmentID uuid.UUID       `json:"appointmentId"`
	DoctorID      uuid.UUID       `json:"doctorId"`
	PatientID     uuid.UUID       `json:"patientId"`
	Appointment   AppointmentView `json:"appointment"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

type AppointmentView struct {
	PatientName  string    `json:"patientName"`
	DoctorName   string    `json:"doctorName"`
	Status       string    `json:"status"`
	SlotDateTime time.Time `json:"slotDateTime"`
}

// Emitter accepts events from the core. Emit never blocks on delivery and
// never reports delivery failure to the caller.
type Emitter interface {
	Emit(ctx context.Context, ev Event)
}

// Publisher hands a built message to a delivery channel.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

type PublisherFunc func(ctx context.Context, msg Message) error

func (f PublisherFunc) Publish(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Fanout publishes to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, msg Message) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Emit(context.Context, Event) {}

// Builder turns events into messages.
type Builder struct {
	dir directory.Directory
	log logrus.FieldLogger
}

func NewBuilder(dir directory.Directory, log logrus.FieldLogger) *Builder {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Builder{dir: dir, log: log}
}

// Build resolves display names. A name that cannot be resolved falls back to
// the id so the notification still goes out.
func (b *Builder) Build(ctx context.Context, ev Event) Message {
	occurred := ev.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}

	return Message{
		ID:            uuid.New(),
		Type:          ev.Type,
		AppointmentID: ev.AppointmentID,
		DoctorID:      ev.DoctorID,
		PatientID:     ev.PatientID,
		Appointment: AppointmentView{
			PatientName:  b.name(ctx, "patient", ev.PatientID, b.patientName),
			DoctorName:   b.name(ctx, "doctor", ev.DoctorID, b.doctorName),
			Status:       ev.Status,
			SlotDateTime: ev.SlotDateTime.UTC(),
		},
		OccurredAt: occurred.UTC(),
	}
}

func (b *Builder) doctorName(ctx context.Context, id uuid.UUID) (string, error) {
	return b.dir.DoctorName(ctx, id)
}

func (b *Builder) patientName(ctx context.Context, id uuid.UUID) (string, error) {
	return b.dir.PatientName(ctx, id)
}

func (b *Builder) name(ctx context.Context, kind string, id uuid.UUID, lookup func(context.Context, uuid.UUID) (string, error)) string {
	if b.dir == nil {
		return id.String()
	}
	name, err := lookup(ctx, id)
	if err != nil || name == "" {
		b.log.WithFields(logrus.Fields{"kind": kind, "id": id}).WithError(err).Debug("name lookup failed, using id")
		return id.String()
	}
	return name
}
