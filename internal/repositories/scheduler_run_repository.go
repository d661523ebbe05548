package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SchedulerRunRepositoryInterface - суточные отметки запусков задач планировщика.
// day - локальная дата в формате constants.RunDateLayout.
type SchedulerRunRepositoryInterface interface {
	// ClaimDailyRun атомарно занимает день. false - день уже занят.
	ClaimDailyRun(ctx context.Context, tx pgx.Tx, jobName, day string) (bool, error)
	// ReleaseDailyRun откатывает занятый день, чтобы задача повторилась.
	ReleaseDailyRun(ctx context.Context, tx pgx.Tx, jobName, day string) error
}

type schedulerRunRepository struct {
	storage *pgxpool.Pool
}

func NewSchedulerRunRepository(storage *pgxpool.Pool) SchedulerRunRepositoryInterface {
	return &schedulerRunRepository{storage: storage}
}

func (r *schedulerRunRepository) getQuerier(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.storage
}

func (r *schedulerRunRepository) ClaimDailyRun(ctx context.Context, tx pgx.Tx, jobName, day string) (bool, error) {
	query := `
		INSERT INTO scheduler_runs (job_name, last_run_date, updated_at)
		VALUES ($1, $2::date, now())
		ON CONFLICT (job_name) DO UPDATE
			SET last_run_date = EXCLUDED.last_run_date, updated_at = now()
			WHERE scheduler_runs.last_run_date < EXCLUDED.last_run_date
		RETURNING job_name`

	var claimed string
	err := r.getQuerier(tx).QueryRow(ctx, query, jobName, day).Scan(&claimed)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ошибка захвата запуска %s за %s: %w", jobName, day, err)
	}
	return true, nil
}

func (r *schedulerRunRepository) ReleaseDailyRun(ctx context.Context, tx pgx.Tx, jobName, day string) error {
	query := `
		UPDATE scheduler_runs
		SET last_run_date = $2::date - 1, updated_at = now()
		WHERE job_name = $1 AND last_run_date = $2::date`
	if _, err := r.getQuerier(tx).Exec(ctx, query, jobName, day); err != nil {
		return fmt.Errorf("ошибка отката запуска %s за %s: %w", jobName, day, err)
	}
	return nil
}
