package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"festhub-backend/internal/attendance"
)

// RedemptionFeed forwards successful redemptions to Redis pub/sub so the
// WebSocket hub can stream them to the session owner's open dashboards.
type RedemptionFeed struct {
	redis *redis.Client
}

type RedemptionEvent struct {
	Type       string    `json:"type"`
	SessionID  uuid.UUID `json:"session_id"`
	Label      string    `json:"label"`
	AttendeeID uuid.UUID `json:"attendee_id"`
	RedeemedAt time.Time `json:"redeemed_at"`
}

func NewRedemptionFeed(redisClient *redis.Client) *RedemptionFeed {
	return &RedemptionFeed{redis: redisClient}
}

func (f *RedemptionFeed) RedemptionRecorded(ctx context.Context, s *attendance.Session, r attendance.Redemption) {
	event := RedemptionEvent{
		Type:       "redemption",
		SessionID:  s.ID,
		Label:      s.Label,
		AttendeeID: r.AttendeeID,
		RedeemedAt: r.RedeemedAt,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	channel := "attendance_updates:" + s.OwnerID.String()
	if err := f.redis.Publish(ctx, channel, data).Err(); err != nil {
		// The redemption already committed; a lost feed message only
		// degrades the live view.
		log.Printf("redemption feed: publish failed: %v", err)
	}
}
