package store

import (
	"context"

	"dinein-service/internal/models"
)

// CreateFeedback inserts a session's feedback. A second submission for the
// same session fails with ErrConflict.
func (q *Queries) CreateFeedback(ctx context.Context, f *models.Feedback) error {
	query := `
		INSERT INTO feedback (id, session_id, restaurant_id, rating, comments, categories, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := q.exec(ctx, query,
		f.ID, f.SessionID, f.RestaurantID, f.Rating, f.Comments, f.Categories, f.SubmittedAt)
	return err
}

// IsEventProcessed checks if an event has been processed
func (q *Queries) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := q.get(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (q *Queries) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := q.exec(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
