package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// QueueRepo is the Postgres-backed queue store. Semantics match the file
// snapshot: SaveQueues replaces the whole table in one transaction, LoadQueues
// rebuilds the per-activity order from the stored positions.
type QueueRepo struct{ db *sql.DB }

func NewQueueRepo(db *sql.DB) *QueueRepo { return &QueueRepo{db: db} }

func (r *QueueRepo) LoadQueues(ctx context.Context) (map[string][]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT activity, member_id
  FROM queue_entries
 ORDER BY activity, position ASC
`)
	if err != nil {
		return nil, fmt.Errorf("queues load: %w", err)
	}
	defer rows.Close()

	queues := map[string][]string{}
	for rows.Next() {
		var activity, member string
		if err := rows.Scan(&activity, &member); err != nil {
			return nil, err
		}
		queues[activity] = append(queues[activity], member)
	}
	return queues, rows.Err()
}

func (r *QueueRepo) SaveQueues(ctx context.Context, queues map[string][]string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("queues save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM queue_entries`); err != nil {
		return fmt.Errorf("queues clear: %w", err)
	}

	// Stable activity order keeps the insert sequence deterministic.
	activities := make([]string, 0, len(queues))
	for a := range queues {
		activities = append(activities, a)
	}
	sort.Strings(activities)

	for _, activity := range activities {
		for pos, member := range queues[activity] {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO queue_entries (activity, member_id, position)
VALUES ($1,$2,$3)
`, activity, member, pos); err != nil {
				return fmt.Errorf("queues insert %s/%s: %w", activity, member, err)
			}
		}
	}
	return tx.Commit()
}
