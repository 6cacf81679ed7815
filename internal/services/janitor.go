package services

import (
	"context"
	"log"
	"time"

	"festhub-backend/internal/attendance"
)

const janitorPollInterval = 1 * time.Hour

// RetentionJanitor evicts long-terminated attendance sessions. Expiry
// correctness never depends on it: sessions expire lazily at read time and
// the janitor only reclaims storage once the audit window has passed.
type RetentionJanitor struct {
	store     attendance.Store
	retention time.Duration
	stopChan  chan struct{}
}

func NewRetentionJanitor(store attendance.Store, retention time.Duration) *RetentionJanitor {
	return &RetentionJanitor{
		store:     store,
		retention: retention,
		stopChan:  make(chan struct{}),
	}
}

func (j *RetentionJanitor) Start() {
	if j.store == nil || j.retention <= 0 {
		return
	}

	go j.loop()

	log.Printf("Retention janitor started (retention %s)", j.retention)
}

func (j *RetentionJanitor) Stop() {
	select {
	case <-j.stopChan:
		return
	default:
		close(j.stopChan)
	}
}

func (j *RetentionJanitor) loop() {
	// Run on startup as well as by interval.
	j.purge(context.Background(), time.Now().UTC())

	ticker := time.NewTicker(janitorPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stopChan:
			return
		case <-ticker.C:
			j.purge(context.Background(), time.Now().UTC())
		}
	}
}

func (j *RetentionJanitor) purge(ctx context.Context, now time.Time) {
	cutoff := now.Add(-j.retention)
	purged, err := j.store.PurgeTerminatedBefore(ctx, cutoff)
	if err != nil {
		log.Printf("retention janitor: purge failed: %v", err)
		return
	}
	if purged > 0 {
		log.Printf("retention janitor: purged %d terminated session(s)", purged)
	}
}
