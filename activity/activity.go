package activity

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"tripweave/models"
	"tripweave/rdx"
	"tripweave/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Logger appends audit records off the mutation path. Log never blocks the
// caller and never lets a failure escape; a lost audit record is only a log
// line.
type Logger struct {
	store store.Store
}

func NewLogger(s store.Store) *Logger {
	return &Logger{store: s}
}

func (l *Logger) Log(tripID, userID primitive.ObjectID, action, details string) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("activity log panic recovered: %v", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		record := &models.Activity{
			TripID:    tripID,
			UserID:    userID,
			Action:    action,
			Details:   details,
			Timestamp: time.Now(),
		}
		if err := l.store.InsertActivity(ctx, record); err != nil {
			log.Printf("activity insert failed (%s on trip %s): %v", action, tripID.Hex(), err)
			return
		}

		// Fan out for anything listening (feeds, recommendations).
		if payload, err := json.Marshal(record); err == nil {
			rdx.Publish(ctx, "activity_events", payload)
		}
	}()
}
