package training

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shamoevthomas/forceapp/internal/contexthelpers"
	"github.com/shamoevthomas/forceapp/internal/sqlite"
)

// sqliteLogRepository implements logRepository.
type sqliteLogRepository struct {
	baseRepository
}

func newSQLiteLogRepository(db *sqlite.Database, logger *slog.Logger) *sqliteLogRepository {
	return &sqliteLogRepository{
		baseRepository: newBaseRepository(db, logger),
	}
}

// Get retrieves the log of a program day on a date together with its sets.
func (r *sqliteLogRepository) Get(ctx context.Context, date time.Time, programDayID string) (WorkoutLog, error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)

	log, err := r.scanLog(r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT id, program_day_id, workout_date, completed, is_skipped
		FROM workout_logs
		WHERE user_id = ? AND workout_date = ? AND program_day_id = ?`,
		userID, formatDate(date), programDayID))
	if err != nil {
		return WorkoutLog{}, err
	}
	if log.Sets, err = r.sets(ctx, log.ID); err != nil {
		return WorkoutLog{}, err
	}
	return log, nil
}

// MostRecentCompleted retrieves the latest completed log of a program day dated before the given date.
func (r *sqliteLogRepository) MostRecentCompleted(
	ctx context.Context,
	programDayID string,
	before time.Time,
) (WorkoutLog, error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)

	log, err := r.scanLog(r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT id, program_day_id, workout_date, completed, is_skipped
		FROM workout_logs
		WHERE user_id = ? AND program_day_id = ? AND completed = 1 AND workout_date < ?
		ORDER BY workout_date DESC
		LIMIT 1`,
		userID, programDayID, formatDate(before)))
	if err != nil {
		return WorkoutLog{}, err
	}
	if log.Sets, err = r.sets(ctx, log.ID); err != nil {
		return WorkoutLog{}, err
	}
	return log, nil
}

func (r *sqliteLogRepository) scanLog(row *sql.Row) (WorkoutLog, error) {
	var (
		log     WorkoutLog
		dateStr string
	)
	err := row.Scan(&log.ID, &log.ProgramDayID, &dateStr, &log.Completed, &log.Skipped)
	if errors.Is(err, sql.ErrNoRows) {
		return WorkoutLog{}, ErrNotFound
	}
	if err != nil {
		return WorkoutLog{}, fmt.Errorf("query workout log: %w", err)
	}
	if log.Date, err = parseDate(dateStr); err != nil {
		return WorkoutLog{}, err
	}
	return log, nil
}

// sets loads the sets of a log ordered by exercise and set number.
func (r *sqliteLogRepository) sets(ctx context.Context, logID string) (_ []WorkoutSet, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT exercise_id, set_number, weight_kg, reps, is_amrap
		FROM workout_sets
		WHERE workout_log_id = ?
		ORDER BY exercise_id, set_number`, logID)
	if err != nil {
		return nil, fmt.Errorf("query workout sets: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var sets []WorkoutSet
	for rows.Next() {
		var s WorkoutSet
		if err = rows.Scan(&s.ExerciseID, &s.SetNumber, &s.WeightKg, &s.Reps, &s.IsAMRAP); err != nil {
			return nil, fmt.Errorf("scan workout set: %w", err)
		}
		sets = append(sets, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return sets, nil
}

// ListBetween retrieves the logs dated within [from, to] without their sets, oldest first.
func (r *sqliteLogRepository) ListBetween(ctx context.Context, from, to time.Time) (_ []WorkoutLog, err error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)

	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT id, program_day_id, workout_date, completed, is_skipped
		FROM workout_logs
		WHERE user_id = ? AND workout_date BETWEEN ? AND ?
		ORDER BY workout_date, program_day_id`,
		userID, formatDate(from), formatDate(to))
	if err != nil {
		return nil, fmt.Errorf("query workout logs: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var logs []WorkoutLog
	for rows.Next() {
		var (
			log     WorkoutLog
			dateStr string
		)
		if err = rows.Scan(&log.ID, &log.ProgramDayID, &dateStr, &log.Completed, &log.Skipped); err != nil {
			return nil, fmt.Errorf("scan workout log: %w", err)
		}
		if log.Date, err = parseDate(dateStr); err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return logs, nil
}

// Commit upserts the log, replaces its sets and applies the weight updates in one transaction.
//
// The log keeps its id when one already exists for the date and program day. Failures are reported as *CommitError
// naming the step that failed.
func (r *sqliteLogRepository) Commit(ctx context.Context, plan CommitPlan) (_ WorkoutLog, err error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	log := plan.Log
	fail := func(step CommitStep, cause error) error {
		return &CommitError{Step: step, Date: log.Date, Err: cause}
	}

	tx, err := r.db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return WorkoutLog{}, fail(StepUpsertLog, fmt.Errorf("begin transaction: %w", err))
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback transaction: %w", rollbackErr))
		}
	}()

	if err = tx.QueryRowContext(ctx, `
		INSERT INTO workout_logs (id, user_id, program_day_id, workout_date, completed, is_skipped)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, workout_date, program_day_id) DO UPDATE SET
			completed = excluded.completed,
			is_skipped = excluded.is_skipped
		RETURNING id`,
		log.ID, userID, log.ProgramDayID, formatDate(log.Date), log.Completed, log.Skipped).Scan(&log.ID); err != nil {
		return WorkoutLog{}, fail(StepUpsertLog, err)
	}

	if err = replaceSets(ctx, tx, log.ID, log.Sets); err != nil {
		return WorkoutLog{}, fail(StepReplaceSets, err)
	}

	for _, u := range plan.WeightUpdates {
		if err = updateExerciseWeight(ctx, tx, userID, u); err != nil {
			return WorkoutLog{}, fail(StepUpdateWeights, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return WorkoutLog{}, fail(StepFinalize, err)
	}
	return log, nil
}

func replaceSets(ctx context.Context, tx *sql.Tx, logID string, sets []WorkoutSet) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM workout_sets WHERE workout_log_id = ?`, logID); err != nil {
		return fmt.Errorf("delete sets: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO workout_sets (workout_log_id, exercise_id, set_number, weight_kg, reps, is_amrap)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert set: %w", err)
	}
	defer stmt.Close()

	for _, s := range sets {
		if _, err = stmt.ExecContext(ctx, logID, s.ExerciseID, s.SetNumber, s.WeightKg, s.Reps, s.IsAMRAP); err != nil {
			return fmt.Errorf("insert set %d of exercise %s: %w", s.SetNumber, s.ExerciseID, err)
		}
	}
	return nil
}

func updateExerciseWeight(ctx context.Context, tx *sql.Tx, userID int, u WeightUpdate) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE exercises
		SET current_weight_kg = ?
		WHERE id = ?
		  AND program_day_id IN (SELECT d.id
		                         FROM program_days d
		                                  JOIN programs p ON p.id = d.program_id
		                         WHERE p.user_id = ?)`,
		u.WeightKg, u.ExerciseID, userID)
	if err != nil {
		return fmt.Errorf("update weight of exercise %s: %w", u.ExerciseID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected != 1 {
		return fmt.Errorf("update weight of exercise %s: %w", u.ExerciseID, ErrNotFound)
	}
	return nil
}

// ResetHistory removes every log of the user and zeroes the aggregates in one transaction. Sets cascade.
func (r *sqliteLogRepository) ResetHistory(ctx context.Context) (err error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)

	tx, err := r.db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback transaction: %w", rollbackErr))
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM workout_logs WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete workout logs: %w", err)
	}
	result, err := tx.ExecContext(ctx, `
		UPDATE users
		SET streak_days = 0,
		    total_volume_kg = 0,
		    force_grade = (SELECT name FROM grade_tiers ORDER BY min_volume_kg LIMIT 1)
		WHERE id = ?`, userID)
	if err != nil {
		return fmt.Errorf("reset aggregates: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("reset aggregates: %w", ErrNotFound)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
