package training

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shamoevthomas/forceapp/internal/contexthelpers"
	"github.com/shamoevthomas/forceapp/internal/progression"
	"github.com/shamoevthomas/forceapp/internal/sqlite"
)

// sqliteProgramRepository implements programRepository.
type sqliteProgramRepository struct {
	baseRepository
}

func newSQLiteProgramRepository(db *sqlite.Database, logger *slog.Logger) *sqliteProgramRepository {
	return &sqliteProgramRepository{
		baseRepository: newBaseRepository(db, logger),
	}
}

// Active retrieves the active program with its days and exercises.
func (r *sqliteProgramRepository) Active(ctx context.Context) (Program, error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)

	var program Program
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT id, name, is_active
		FROM programs
		WHERE user_id = ? AND is_active = 1`, userID).Scan(&program.ID, &program.Name, &program.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return Program{}, ErrNoActiveProgram
	}
	if err != nil {
		return Program{}, fmt.Errorf("query active program: %w", err)
	}

	if program.Days, err = r.days(ctx, program.ID); err != nil {
		return Program{}, err
	}
	return program, nil
}

// days loads the days of a program ordered by weekday, each with its exercises.
func (r *sqliteProgramRepository) days(ctx context.Context, programID string) (_ []ProgramDay, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT id, weekday, COALESCE(label, ''), is_rest_day
		FROM program_days
		WHERE program_id = ?
		ORDER BY weekday, id`, programID)
	if err != nil {
		return nil, fmt.Errorf("query program days: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var days []ProgramDay
	index := make(map[string]int)
	for rows.Next() {
		day := ProgramDay{ID: "", ProgramID: programID, Weekday: 0, Label: "", RestDay: false, Exercises: nil}
		if err = rows.Scan(&day.ID, &day.Weekday, &day.Label, &day.RestDay); err != nil {
			return nil, fmt.Errorf("scan program day: %w", err)
		}
		index[day.ID] = len(days)
		days = append(days, day)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	exercises, err := r.exercises(ctx, programID)
	if err != nil {
		return nil, err
	}
	for _, ex := range exercises {
		i, ok := index[ex.ProgramDayID]
		if !ok {
			continue
		}
		days[i].Exercises = append(days[i].Exercises, ex)
	}
	return days, nil
}

func (r *sqliteProgramRepository) exercises(ctx context.Context, programID string) (_ []Exercise, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT e.id, e.program_day_id, e.name, e.target_sets, e.target_reps, e.current_weight_kg,
		       e.weight_increment, e.sort_order
		FROM exercises e
		JOIN program_days d ON d.id = e.program_day_id
		WHERE d.program_id = ?
		ORDER BY e.program_day_id, e.sort_order, e.id`, programID)
	if err != nil {
		return nil, fmt.Errorf("query exercises: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var exercises []Exercise
	for rows.Next() {
		var (
			ex        Exercise
			increment string
		)
		if err = rows.Scan(&ex.ID, &ex.ProgramDayID, &ex.Name, &ex.TargetSets, &ex.TargetReps, &ex.CurrentWeightKg,
			&increment, &ex.SortOrder); err != nil {
			return nil, fmt.Errorf("scan exercise: %w", err)
		}
		if ex.Increment, err = progression.ParseIncrement(increment); err != nil {
			return nil, fmt.Errorf("exercise %s: %w", ex.ID, err)
		}
		exercises = append(exercises, ex)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return exercises, nil
}

// Create stores a program and activates it. Other programs of the user are deactivated in the same transaction.
func (r *sqliteProgramRepository) Create(ctx context.Context, program Program) (err error) {
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

	if _, err = tx.ExecContext(ctx, `
		UPDATE programs SET is_active = 0 WHERE user_id = ? AND is_active = 1`, userID); err != nil {
		return fmt.Errorf("deactivate programs: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO programs (id, user_id, name, is_active) VALUES (?, ?, ?, 1)`,
		program.ID, userID, program.Name); err != nil {
		return fmt.Errorf("insert program: %w", err)
	}

	for _, day := range program.Days {
		var label sql.NullString
		if day.Label != "" {
			label = sql.NullString{String: day.Label, Valid: true}
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO program_days (id, program_id, weekday, label, is_rest_day) VALUES (?, ?, ?, ?, ?)`,
			day.ID, program.ID, day.Weekday, label, day.RestDay); err != nil {
			return fmt.Errorf("insert program day %d: %w", day.Weekday, err)
		}
		for _, ex := range day.Exercises {
			if _, err = tx.ExecContext(ctx, `
				INSERT INTO exercises (id, program_day_id, name, target_sets, target_reps, current_weight_kg,
				                       weight_increment, sort_order)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				ex.ID, day.ID, ex.Name, ex.TargetSets, ex.TargetReps, ex.CurrentWeightKg, ex.Increment.String(),
				ex.SortOrder); err != nil {
				return fmt.Errorf("insert exercise %q: %w", ex.Name, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// List retrieves the programs of the user, newest first.
func (r *sqliteProgramRepository) List(ctx context.Context) (_ []Program, err error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)

	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT id, name, is_active
		FROM programs
		WHERE user_id = ?
		ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query programs: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var programs []Program
	for rows.Next() {
		var p Program
		if err = rows.Scan(&p.ID, &p.Name, &p.Active); err != nil {
			return nil, fmt.Errorf("scan program: %w", err)
		}
		programs = append(programs, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return programs, nil
}
