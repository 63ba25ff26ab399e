package ingest

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
)

// Queue manages the River job queue for call reports.
type Queue struct {
	client *river.Client[pgx.Tx]
}

// NewQueue creates the queue with its worker registered. maxWorkers bounds
// how many call reports are processed concurrently.
func NewQueue(pool *pgxpool.Pool, calls CallInserter, maxWorkers int) (*Queue, error) {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &CallReportWorker{calls: calls})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: maxWorkers},
		},
		Workers: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	return &Queue{client: client}, nil
}

// Migrate applies River's own schema migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("failed to create River migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("failed to run River migrations: %w", err)
	}
	return nil
}

// Start starts the job queue workers.
func (q *Queue) Start(ctx context.Context) error {
	return q.client.Start(ctx)
}

// Stop stops the job queue workers, waiting for in-flight jobs.
func (q *Queue) Stop(ctx context.Context) error {
	return q.client.Stop(ctx)
}

// Enqueue queues one call report for classification and storage.
func (q *Queue) Enqueue(ctx context.Context, args CallReportArgs) error {
	if _, err := q.client.Insert(ctx, args, nil); err != nil {
		return fmt.Errorf("failed to queue call report: %w", err)
	}
	return nil
}
