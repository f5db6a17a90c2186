package skeletonconv

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tekkamanendless/altumview-skeleton-processor/skeleton"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteTable is the table that rows are written to.
const SQLiteTable = "skeleton_rows"

func sqliteColumns() []string {
	columns := []string{"time", "camera_id", "person_id"}
	for k := 0; k < skeleton.KeypointCount; k++ {
		columns = append(columns, fmt.Sprintf("x%d", k), fmt.Sprintf("y%d", k))
	}
	return columns
}

func sqliteSchema() string {
	definitions := []string{
		"time INTEGER NOT NULL",
		"camera_id INTEGER NOT NULL",
		"person_id INTEGER NOT NULL",
	}
	for k := 0; k < skeleton.KeypointCount; k++ {
		definitions = append(definitions, fmt.Sprintf("x%d REAL NOT NULL", k), fmt.Sprintf("y%d REAL NOT NULL", k))
	}
	definitions = append(definitions, "PRIMARY KEY (time, person_id)")
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", SQLiteTable, strings.Join(definitions, ",\n\t"))
}

// ExportSQLite writes the rows to a SQLite database file, creating the table if needed.
//
// A row whose (time, person_id) is already in the table is skipped, so the
// first row written for a person at a given time always wins.  It returns the
// number of rows inserted.
func ExportSQLite(ctx context.Context, filename string, rows []Row) (int64, error) {
	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return 0, fmt.Errorf("could not open %s: %w", filename, err)
	}
	defer db.Close()

	_, err = db.ExecContext(ctx, sqliteSchema())
	if err != nil {
		return 0, fmt.Errorf("could not create table: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	columns := sqliteColumns()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	statement, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (%s)", SQLiteTable, strings.Join(columns, ", "), placeholders))
	if err != nil {
		return 0, fmt.Errorf("could not prepare insert: %w", err)
	}
	defer statement.Close()

	var inserted int64
	values := make([]interface{}, len(columns))
	for i, row := range rows {
		values[0] = int64(row.Timestamp)
		values[1] = int64(row.CameraID)
		values[2] = int64(row.PersonID)
		for k, point := range row.Keypoints {
			values[3+2*k] = point.X
			values[4+2*k] = point.Y
		}
		result, err := statement.ExecContext(ctx, values...)
		if err != nil {
			return 0, fmt.Errorf("could not insert row %d: %w", i, err)
		}
		affected, err := result.RowsAffected()
		if err == nil {
			inserted += affected
		}
	}

	err = tx.Commit()
	if err != nil {
		return 0, fmt.Errorf("could not commit: %w", err)
	}
	logger.Debugf("Inserted %d of %d rows into %s", inserted, len(rows), filename)
	return inserted, nil
}

// ReadSQLite reads every row back from a SQLite database file, ordered by time.
func ReadSQLite(ctx context.Context, filename string) ([]Row, error) {
	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", filename, err)
	}
	defer db.Close()

	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY time, rowid", strings.Join(sqliteColumns(), ", "), SQLiteTable)
	result, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("could not query rows: %w", err)
	}
	defer result.Close()

	rows := []Row{}
	for result.Next() {
		var row Row
		var timestamp, cameraID, personID int64
		destinations := []interface{}{&timestamp, &cameraID, &personID}
		for k := range row.Keypoints {
			destinations = append(destinations, &row.Keypoints[k].X, &row.Keypoints[k].Y)
		}
		err = result.Scan(destinations...)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		row.Timestamp = uint64(timestamp)
		row.CameraID = uint32(cameraID)
		row.PersonID = uint32(personID)
		rows = append(rows, row)
	}
	return rows, result.Err()
}
