package training

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/shamoevthomas/forceapp/internal/contexthelpers"
	"github.com/shamoevthomas/forceapp/internal/sqlite"
)

// sqliteAggregateRepository implements aggregateRepository on the users table.
type sqliteAggregateRepository struct {
	baseRepository
}

func newSQLiteAggregateRepository(db *sqlite.Database, logger *slog.Logger) *sqliteAggregateRepository {
	return &sqliteAggregateRepository{
		baseRepository: newBaseRepository(db, logger),
	}
}

// RecomputeStreak recalculates and stores the streak as seen on today.
//
// The schedule is the active program. Without one the streak is 0.
func (r *sqliteAggregateRepository) RecomputeStreak(ctx context.Context, today time.Time) (int, error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)

	days, err := r.scheduledDays(ctx, userID)
	if err != nil {
		return 0, err
	}
	streak := 0
	if len(days) > 0 {
		var logs []WorkoutLog
		from := today.AddDate(0, 0, -(streakLookbackDays - 1))
		if logs, err = r.outcomes(ctx, userID, from, today); err != nil {
			return 0, err
		}
		streak = computeStreak(days, logs, today)
	}

	if err = r.updateUser(ctx, `UPDATE users SET streak_days = ? WHERE id = ?`, streak, userID); err != nil {
		return 0, fmt.Errorf("store streak: %w", err)
	}
	return streak, nil
}

// scheduledDays loads the weekday schedule of the active program without exercises.
func (r *sqliteAggregateRepository) scheduledDays(ctx context.Context, userID int) (_ []ProgramDay, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT d.id, d.program_id, d.weekday, d.is_rest_day
		FROM program_days d
		JOIN programs p ON p.id = d.program_id
		WHERE p.user_id = ? AND p.is_active = 1`, userID)
	if err != nil {
		return nil, fmt.Errorf("query scheduled days: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var days []ProgramDay
	for rows.Next() {
		var d ProgramDay
		if err = rows.Scan(&d.ID, &d.ProgramID, &d.Weekday, &d.RestDay); err != nil {
			return nil, fmt.Errorf("scan scheduled day: %w", err)
		}
		days = append(days, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return days, nil
}

// outcomes loads the completed and skipped flags of every log within [from, to].
func (r *sqliteAggregateRepository) outcomes(
	ctx context.Context,
	userID int,
	from, to time.Time,
) (_ []WorkoutLog, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT workout_date, completed, is_skipped
		FROM workout_logs
		WHERE user_id = ? AND workout_date BETWEEN ? AND ?`,
		userID, formatDate(from), formatDate(to))
	if err != nil {
		return nil, fmt.Errorf("query log outcomes: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var logs []WorkoutLog
	for rows.Next() {
		var (
			l       WorkoutLog
			dateStr string
		)
		if err = rows.Scan(&dateStr, &l.Completed, &l.Skipped); err != nil {
			return nil, fmt.Errorf("scan log outcome: %w", err)
		}
		if l.Date, err = parseDate(dateStr); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return logs, nil
}

// RecomputeGrade recalculates the total volume and stores the grade it reaches.
func (r *sqliteAggregateRepository) RecomputeGrade(ctx context.Context) (string, error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)

	var total float64
	if err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(s.weight_kg * s.reps), 0)
		FROM workout_sets s
		JOIN workout_logs l ON l.id = s.workout_log_id
		WHERE l.user_id = ? AND l.completed = 1`, userID).Scan(&total); err != nil {
		return "", fmt.Errorf("query total volume: %w", err)
	}

	grade, err := r.gradeFor(ctx, total)
	if err != nil {
		return "", err
	}

	if err = r.updateUser(ctx, `UPDATE users SET force_grade = ?, total_volume_kg = ? WHERE id = ?`,
		grade, total, userID); err != nil {
		return "", fmt.Errorf("store grade: %w", err)
	}
	return grade, nil
}

// gradeFor returns the highest tier whose threshold is at most volume.
func (r *sqliteAggregateRepository) gradeFor(ctx context.Context, volume float64) (string, error) {
	var grade string
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT name
		FROM grade_tiers
		WHERE min_volume_kg <= ?
		ORDER BY min_volume_kg DESC
		LIMIT 1`, volume).Scan(&grade)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errors.New("no grade tier covers volume 0")
	}
	if err != nil {
		return "", fmt.Errorf("query grade tier: %w", err)
	}
	return grade, nil
}

func (r *sqliteAggregateRepository) updateUser(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ReadWrite.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update user: %w", ErrNotFound)
	}
	return nil
}

// Stats retrieves the stored aggregates and the next tier to reach.
func (r *sqliteAggregateRepository) Stats(ctx context.Context) (Stats, error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)

	var stats Stats
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT streak_days, force_grade, total_volume_kg
		FROM users
		WHERE id = ?`, userID).Scan(&stats.StreakDays, &stats.Grade, &stats.TotalVolumeKg)
	if errors.Is(err, sql.ErrNoRows) {
		return Stats{}, ErrNotFound
	}
	if err != nil {
		return Stats{}, fmt.Errorf("query user aggregates: %w", err)
	}

	err = r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT name, min_volume_kg
		FROM grade_tiers
		WHERE min_volume_kg > ?
		ORDER BY min_volume_kg
		LIMIT 1`, stats.TotalVolumeKg).Scan(&stats.NextGrade, &stats.NextGradeVolumeKg)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Stats{}, fmt.Errorf("query next grade tier: %w", err)
	}
	return stats, nil
}

// VolumeHistory retrieves the volume of every completed log, oldest first.
func (r *sqliteAggregateRepository) VolumeHistory(ctx context.Context) (_ []VolumePoint, err error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)

	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT l.workout_date, COALESCE(SUM(s.weight_kg * s.reps), 0)
		FROM workout_logs l
		LEFT JOIN workout_sets s ON s.workout_log_id = l.id
		WHERE l.user_id = ? AND l.completed = 1
		GROUP BY l.id
		ORDER BY l.workout_date, l.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query volume history: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var points []VolumePoint
	for rows.Next() {
		var (
			p       VolumePoint
			dateStr string
		)
		if err = rows.Scan(&dateStr, &p.VolumeKg); err != nil {
			return nil, fmt.Errorf("scan volume point: %w", err)
		}
		if p.Date, err = parseDate(dateStr); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return points, nil
}

// ExerciseProgress retrieves the heaviest completed set of an exercise per date. The most recent limit dates are
// returned oldest first.
func (r *sqliteAggregateRepository) ExerciseProgress(
	ctx context.Context,
	exerciseID string,
	limit int,
) (_ []ProgressPoint, err error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)

	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT l.workout_date, MAX(s.weight_kg)
		FROM workout_sets s
		JOIN workout_logs l ON l.id = s.workout_log_id
		WHERE l.user_id = ? AND l.completed = 1 AND s.exercise_id = ?
		GROUP BY l.workout_date
		ORDER BY l.workout_date DESC
		LIMIT ?`, userID, exerciseID, limit)
	if err != nil {
		return nil, fmt.Errorf("query exercise progress: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var points []ProgressPoint
	for rows.Next() {
		var (
			p       ProgressPoint
			dateStr string
		)
		if err = rows.Scan(&dateStr, &p.MaxWeightKg); err != nil {
			return nil, fmt.Errorf("scan progress point: %w", err)
		}
		if p.Date, err = parseDate(dateStr); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	slices.Reverse(points)
	return points, nil
}
