package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"
)

// migrateTo makes the live schema equal to schemaDefinition without hand-written migration scripts.
//
// The target schema is built in a scratch database attached as schemaTarget and diffed against sqlite_schema:
// removed tables are dropped, new tables created, and changed tables rebuilt with the generic procedure from
// https://www.sqlite.org/lang_altertable.html#otheralter. Triggers and indexes are then synchronised by name.
// See also https://david.rothlis.net/declarative-schema-migration-for-sqlite/.
func (db *Database) migrateTo(ctx context.Context, schemaDefinition string) (err error) {
	start := time.Now()

	detach, err := db.attachTarget(ctx, schemaDefinition)
	if err != nil {
		return fmt.Errorf("attach schema target: %w", err)
	}
	defer detach()

	// Foreign keys cannot be toggled inside a transaction.
	if _, err = db.ReadWrite.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("disable foreign keys: %w", err)
	}
	defer db.enableForeignKeys(ctx)

	tx, err := db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
	}()

	m := migration{tx: tx, logger: db.logger}
	if err = m.syncTables(ctx); err != nil {
		return fmt.Errorf("sync tables: %w", err)
	}
	for _, typ := range []string{"trigger", "index"} {
		if err = m.syncEntities(ctx, typ); err != nil {
			return fmt.Errorf("sync %ss: %w", typ, err)
		}
	}
	if _, err = tx.ExecContext(ctx, "PRAGMA foreign_key_check"); err != nil {
		return fmt.Errorf("foreign key check: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	db.logger.LogAttrs(ctx, slog.LevelInfo, "migrated database", slog.Duration("duration", time.Since(start)))
	return nil
}

// enableForeignKeys turns foreign keys back on. Running without them would silently corrupt data, so the process is
// interrupted if it fails.
func (db *Database) enableForeignKeys(ctx context.Context) {
	if _, err := db.ReadWrite.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.logger.LogAttrs(ctx, slog.LevelError, "re-enable foreign keys failed, exiting", slog.Any("error", err))
		if err = syscall.Kill(syscall.Getpid(), syscall.SIGINT); err != nil {
			os.Exit(1)
		}
	}
}

// attachTarget creates the target schema in a scratch in-memory database and attaches it to the writer connection.
func (db *Database) attachTarget(ctx context.Context, schemaDefinition string) (func(), error) {
	name := fmt.Sprintf("file:%s?mode=memory&cache=shared", rand.Text())
	scratch, err := sql.Open("sqlite3", name)
	if err != nil {
		return nil, fmt.Errorf("open scratch database: %w", err)
	}
	// The scratch connection only has to outlive the ATTACH below, after which the writer keeps the memory alive.
	defer func() {
		if closeErr := scratch.Close(); closeErr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "close scratch database", slog.Any("error", closeErr))
		}
	}()
	if _, err = scratch.ExecContext(ctx, schemaDefinition); err != nil {
		return nil, fmt.Errorf("create target schema: %w", err)
	}
	if _, err = db.ReadWrite.ExecContext(ctx, "ATTACH DATABASE ? AS schemaTarget", name); err != nil {
		return nil, fmt.Errorf("attach: %w", err)
	}
	return func() {
		if _, detachErr := db.ReadWrite.ExecContext(ctx, "DETACH DATABASE schemaTarget"); detachErr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "detach schema target", slog.Any("error", detachErr))
		}
	}, nil
}

type migration struct {
	tx     *sql.Tx
	logger *slog.Logger
}

// entity is a row of sqlite_schema present in the live schema, the target schema, or both.
type entity struct {
	name      string
	liveSQL   string
	targetSQL string
}

// diff compares the live and target schema for entities of typ.
//
// Internal sqlite_ entities and Litestream's bookkeeping tables are ignored. Double quotes are stripped before
// comparing because renaming a table quotes its name in sqlite_schema.
func (m migration) diff(ctx context.Context, typ string) (removed, added, changed []entity, err error) {
	rows, err := m.tx.QueryContext(ctx, `
SELECT COALESCE(live.name, target.name), COALESCE(live.sql, ''), COALESCE(target.sql, '')
FROM (SELECT name, sql FROM main.sqlite_schema WHERE type = :type) AS live
         FULL OUTER JOIN (SELECT name, sql FROM schemaTarget.sqlite_schema WHERE type = :type) AS target
                         ON live.name = target.name
WHERE COALESCE(live.name, target.name) NOT LIKE 'sqlite_%'
  AND COALESCE(live.name, target.name) NOT LIKE '_litestream_%'
ORDER BY 1`, sql.Named("type", typ))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("query schema diff: %w", err)
	}
	defer func() {
		err = errors.Join(err, rows.Close())
	}()

	for rows.Next() {
		var e entity
		if err = rows.Scan(&e.name, &e.liveSQL, &e.targetSQL); err != nil {
			return nil, nil, nil, fmt.Errorf("scan schema diff: %w", err)
		}
		switch {
		case e.targetSQL == "":
			removed = append(removed, e)
		case e.liveSQL == "":
			added = append(added, e)
		case strings.ReplaceAll(e.liveSQL, `"`, "") != strings.ReplaceAll(e.targetSQL, `"`, ""):
			changed = append(changed, e)
		}
	}
	if err = rows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate schema diff: %w", err)
	}
	return removed, added, changed, nil
}

func (m migration) exec(ctx context.Context, msg string, query string) error {
	m.logger.LogAttrs(ctx, slog.LevelInfo, msg, slog.String("query", query))
	if _, err := m.tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return nil
}

func (m migration) syncTables(ctx context.Context) error {
	removed, added, changed, err := m.diff(ctx, "table")
	if err != nil {
		return err
	}
	for _, t := range removed {
		if err = m.exec(ctx, "drop table", fmt.Sprintf("DROP TABLE %s", t.name)); err != nil {
			return err
		}
	}
	for _, t := range added {
		if err = m.exec(ctx, "create table", t.targetSQL); err != nil {
			return err
		}
	}
	for _, t := range changed {
		if err = m.rebuildTable(ctx, t); err != nil {
			return fmt.Errorf("rebuild %s: %w", t.name, err)
		}
	}
	return nil
}

// rebuildTable creates the new definition under a temporary name, copies the columns both definitions share, and
// swaps the tables.
func (m migration) rebuildTable(ctx context.Context, t entity) error {
	tempName := t.name + "_migration_temp"
	if err := m.exec(ctx, "create rebuilt table", strings.Replace(t.targetSQL, t.name, tempName, 1)); err != nil {
		return err
	}

	columns, err := m.commonColumns(ctx, t.name)
	if err != nil {
		return err
	}
	copySQL := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", tempName, columns, columns, t.name)
	if err = m.exec(ctx, "copy rows", copySQL); err != nil {
		return err
	}
	if err = m.exec(ctx, "drop old table", fmt.Sprintf("DROP TABLE %s", t.name)); err != nil {
		return err
	}
	return m.exec(ctx, "rename rebuilt table", fmt.Sprintf("ALTER TABLE %s RENAME TO %s", tempName, t.name))
}

// commonColumns returns the quoted, comma separated columns present in both the live and the target table.
func (m migration) commonColumns(ctx context.Context, table string) (string, error) {
	var columns sql.NullString
	if err := m.tx.QueryRowContext(ctx, `
SELECT GROUP_CONCAT('"' || target.name || '"', ', ')
FROM PRAGMA_TABLE_INFO(:table) AS live
         JOIN PRAGMA_TABLE_INFO(:table, 'schemaTarget') AS target ON target.name = live.name`,
		sql.Named("table", table)).Scan(&columns); err != nil {
		return "", fmt.Errorf("query common columns: %w", err)
	}
	if !columns.Valid {
		return "", fmt.Errorf("no common columns in %s", table) //nolint:err113 // schema definition bug.
	}
	return columns.String, nil
}

// syncEntities drops, creates, and recreates triggers or indexes so that they match the target schema.
func (m migration) syncEntities(ctx context.Context, typ string) error {
	removed, added, changed, err := m.diff(ctx, typ)
	if err != nil {
		return err
	}
	drop := func(e entity) error {
		return m.exec(ctx, "drop "+typ, fmt.Sprintf("DROP %s IF EXISTS %s", strings.ToUpper(typ), e.name))
	}
	for _, e := range removed {
		if err = drop(e); err != nil {
			return err
		}
	}
	for _, e := range changed {
		if err = drop(e); err != nil {
			return err
		}
		if err = m.exec(ctx, "recreate "+typ, e.targetSQL); err != nil {
			return err
		}
	}
	for _, e := range added {
		if err = m.exec(ctx, "create "+typ, e.targetSQL); err != nil {
			return err
		}
	}
	return nil
}
