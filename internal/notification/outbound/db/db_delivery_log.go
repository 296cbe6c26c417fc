package db

import (
	"context"
	"time"

	"github.com/shandysiswandi/ayurclinic/internal/notification/entity"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/goerror"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/valueobject"
)

// CreateDeliveryLog inserts a log row for (event, channel). A redelivered
// event reuses its existing row, which is reset to the given status; the
// returned id is that of the stored row.
func (s *DB) CreateDeliveryLog(ctx context.Context, dl entity.CreateDeliveryLog, now time.Time) (_ int64, err error) {
	ctx, span := s.startSpan(ctx, "CreateDeliveryLog")
	defer func() { s.endSpan(span, err) }()

	const q = `INSERT INTO notification_delivery_logs
		(id, event_id, channel, recipient, trigger_key, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (event_id, channel) DO UPDATE
		SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
		RETURNING id`

	var id int64
	if err := s.conn.QueryRow(ctx, q,
		dl.ID, dl.EventID, int16(dl.Channel), dl.Recipient, dl.TriggerKey.String(), int16(dl.Status), now,
	).Scan(&id); err != nil {
		return 0, s.mapError(err)
	}

	return id, nil
}

func (s *DB) UpdateDeliveryLogStatus(ctx context.Context, u entity.UpdateDeliveryLog, now time.Time) (err error) {
	ctx, span := s.startSpan(ctx, "UpdateDeliveryLogStatus")
	defer func() { s.endSpan(span, err) }()

	resp := u.ProviderResponse
	if resp == nil {
		resp = valueobject.JSONMap{}
	}

	const q = `UPDATE notification_delivery_logs
		SET status = $2, provider_response = $3, sent_at = $4, updated_at = $5
		WHERE id = $1`

	tag, err := s.conn.Exec(ctx, q, u.ID, int16(u.Status), resp, u.SentAt, now)
	if err != nil {
		return s.mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return goerror.ErrNotFound
	}

	return nil
}

func (s *DB) GetDeliveryLogByEvent(ctx context.Context, eventID string, ch entity.Channel) (_ *entity.DeliveryLog, err error) {
	ctx, span := s.startSpan(ctx, "GetDeliveryLogByEvent")
	defer func() { s.endSpan(span, err) }()

	const q = `SELECT id, event_id, channel, recipient, trigger_key, status, provider_response,
		sent_at, created_at, updated_at
		FROM notification_delivery_logs WHERE event_id = $1 AND channel = $2`

	var (
		dl         entity.DeliveryLog
		channel    int16
		status     int16
		triggerKey string
	)
	if err := s.conn.QueryRow(ctx, q, eventID, int16(ch)).Scan(
		&dl.ID, &dl.EventID, &channel, &dl.Recipient, &triggerKey, &status, &dl.ProviderResponse,
		&dl.SentAt, &dl.CreatedAt, &dl.UpdatedAt,
	); err != nil {
		return nil, s.mapError(err)
	}
	dl.Channel = entity.Channel(channel)
	dl.Status = entity.DeliveryStatus(status)
	dl.TriggerKey = entity.TriggerKey(triggerKey)

	return &dl, nil
}
