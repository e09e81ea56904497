package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"checkin/internal/docstore"
	"checkin/internal/metrics"
	"checkin/internal/queue"
	"checkin/internal/roster"
)

// isoLayout matches the millisecond ISO-8601 form browsers produce.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// Repository persists guests, student copies and check-ins through a RecordStore.
type Repository struct {
	store docstore.RecordStore
}

// NewRepository creates a repo.
func NewRepository(store docstore.RecordStore) *Repository {
	return &Repository{store: store}
}

// Durable reports whether writes outlive the process.
func (r *Repository) Durable() bool { return r.store.Durable() }

// StoreName names the backend for notifications and health output.
func (r *Repository) StoreName() string { return r.store.Name() }

// SaveRegistered writes one check-in.
func (r *Repository) SaveRegistered(ctx context.Context, e RegisteredGuest) (string, error) {
	return r.store.Put(ctx, docstore.CollectionRegistered, registeredFields(e))
}

// ListRegistered reads every stored check-in; undecodable documents are skipped.
func (r *Repository) ListRegistered(ctx context.Context) []RegisteredGuest {
	docs := r.store.ListAll(ctx, docstore.CollectionRegistered)
	out := make([]RegisteredGuest, 0, len(docs))
	for _, d := range docs {
		e, err := decodeRegistered(d.Fields)
		if err != nil {
			log.Printf("skipping registered document %s: %v", d.ID, err)
			continue
		}
		out = append(out, e)
	}
	return out
}

// SaveBookkeeping writes a queued guest or student copy.
func (r *Repository) SaveBookkeeping(ctx context.Context, msg queue.Message) error {
	if msg.Type != docstore.CollectionGuests && msg.Type != docstore.CollectionStudents {
		metrics.QueueMessages.WithLabelValues(msg.Type, "rejected").Inc()
		return fmt.Errorf("unexpected bookkeeping collection %q: %w", msg.Type, queue.ErrMalformed)
	}
	var fields docstore.Fields
	if err := json.Unmarshal(msg.Body, &fields); err != nil {
		metrics.QueueMessages.WithLabelValues(msg.Type, "rejected").Inc()
		return fmt.Errorf("decode %s message: %w", msg.Type, errors.Join(queue.ErrMalformed, err))
	}
	if _, err := r.store.Put(ctx, msg.Type, fields); err != nil {
		metrics.QueueMessages.WithLabelValues(msg.Type, "failed").Inc()
		return err
	}
	metrics.QueueMessages.WithLabelValues(msg.Type, "saved").Inc()
	return nil
}

func (r *Repository) put(ctx context.Context, collection string, fields docstore.Fields) error {
	_, err := r.store.Put(ctx, collection, fields)
	return err
}

func guestFields(g roster.Guest) docstore.Fields {
	return docstore.Fields{
		"id":          docstore.StringField(g.ID),
		"name":        docstore.StringField(g.Name),
		"studentName": docstore.StringField(g.StudentName),
		"career":      docstore.StringField(g.Career),
		"type":        docstore.StringField(g.Type),
		"qrGenerated": docstore.StringField(g.QRGenerated.UTC().Format(isoLayout)),
	}
}

func studentFields(s roster.Student, uploadedAt time.Time) docstore.Fields {
	return docstore.Fields{
		"name":        docstore.StringField(s.Name),
		"career":      docstore.StringField(s.Career),
		"guestsCount": docstore.IntegerField(int64(len(s.Guests))),
		"uploadedAt":  docstore.StringField(uploadedAt.UTC().Format(isoLayout)),
	}
}

func registeredFields(e RegisteredGuest) docstore.Fields {
	f := guestFields(e.Guest)
	f["registeredAt"] = docstore.StringField(e.RegisteredAt.UTC().Format(isoLayout))
	f["registeredTime"] = docstore.StringField(e.RegisteredTime)
	return f
}

func decodeRegistered(f docstore.Fields) (RegisteredGuest, error) {
	id := f["id"].Str()
	if id == "" {
		return RegisteredGuest{}, errors.New("missing id")
	}
	registeredAt, err := time.Parse(time.RFC3339, f["registeredAt"].Str())
	if err != nil {
		return RegisteredGuest{}, fmt.Errorf("registeredAt: %w", err)
	}
	// qrGenerated is informational; a malformed value is left zero.
	qrGenerated, _ := time.Parse(time.RFC3339, f["qrGenerated"].Str())

	return RegisteredGuest{
		Guest: roster.Guest{
			ID:          id,
			Name:        f["name"].Str(),
			StudentName: f["studentName"].Str(),
			Career:      f["career"].Str(),
			Type:        f["type"].Str(),
			QRGenerated: qrGenerated,
		},
		RegisteredAt:   registeredAt,
		RegisteredTime: f["registeredTime"].Str(),
	}, nil
}
