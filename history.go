package samillogger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// History logs every publish attempt to a sqlite database.
type History struct {
	db     *sql.DB
	insert *sql.Stmt
}

// HistoryRow is one logged publish.
type HistoryRow struct {
	ID        int64
	Record    Record
	Result    Result
	Delivered bool
}

const historySchemaVersion = 1

// OpenHistory opens (or creates) the database file and brings the schema up
// to date.
func OpenHistory(filename string) (*History, error) {
	database, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", filename, err)
	}
	if err := migrate(database); err != nil {
		database.Close()
		return nil, err
	}
	statement, err := database.Prepare(`INSERT INTO pvoutputStatus (timestamp, energy_wh, samples,
                                    avg_power, avg_temperature, avg_voltage,
                                    ac_voltage, ac_current, ac_frequency, pv_voltage_a, pv_voltage_b,
                                    error_message, http_status, payload, delivered)
                                    values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("history: prepare insert: %w", err)
	}
	return &History{db: database, insert: statement}, nil
}

func migrate(database *sql.DB) error {
	_, err := database.Exec(`CREATE TABLE IF NOT EXISTS pvoutputStatus (id INTEGER PRIMARY KEY,
                        timestamp datetime, energy_wh REAL, samples INTEGER,
                        avg_power REAL, avg_temperature REAL, avg_voltage REAL,
                        ac_voltage REAL, ac_current REAL, ac_frequency REAL,
                        pv_voltage_a REAL, pv_voltage_b REAL, error_message TEXT )`)
	if err != nil {
		return fmt.Errorf("history: create table: %w", err)
	}

	vers := -1
	if err := database.QueryRow("PRAGMA user_version;").Scan(&vers); err != nil {
		return fmt.Errorf("history: schema get failed: %w", err)
	}
	if vers == 0 { // Augment table with delivery outcome, schema version 1
		for _, stmt := range []string{
			"ALTER TABLE pvoutputStatus ADD COLUMN http_status INTEGER;",
			"ALTER TABLE pvoutputStatus ADD COLUMN payload TEXT;",
			"ALTER TABLE pvoutputStatus ADD COLUMN delivered BOOLEAN;",
			fmt.Sprintf("PRAGMA user_version=%d;", historySchemaVersion),
		} {
			if _, err := database.Exec(stmt); err != nil {
				return fmt.Errorf("history: upgrade schema: %w", err)
			}
		}
	}
	return nil
}

// Record implements Sink.
func (h *History) Record(ctx context.Context, d Delivery) error {
	rec := d.Record
	var avgPower, avgTemp, avgVoltage sql.NullFloat64
	if rec.Averages != nil {
		avgPower = sql.NullFloat64{Float64: rec.Averages.Power, Valid: true}
		avgTemp = sql.NullFloat64{Float64: rec.Averages.Temperature, Valid: true}
		avgVoltage = sql.NullFloat64{Float64: rec.Averages.Voltage, Valid: true}
	}
	_, err := h.insert.ExecContext(ctx,
		rec.Time.UTC().Format(time.RFC3339Nano), rec.Energy, int64(rec.Samples),
		avgPower, avgTemp, avgVoltage,
		rec.ACVoltage, rec.ACCurrent, rec.ACFrequency, rec.VoltageA, rec.VoltageB,
		rec.ErrorMessage, d.Result.StatusCode, d.Result.Payload, d.Delivered())
	if err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}
	return nil
}

// Recent returns up to n rows, newest first.
func (h *History) Recent(ctx context.Context, n int) ([]HistoryRow, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT id, timestamp, energy_wh, samples,
                            avg_power, avg_temperature, avg_voltage,
                            ac_voltage, ac_current, ac_frequency, pv_voltage_a, pv_voltage_b,
                            error_message, http_status, payload, delivered
                            FROM pvoutputStatus ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var out []HistoryRow
	for rows.Next() {
		var (
			row                           HistoryRow
			ts                            string
			samples                       int64
			avgPower, avgTemp, avgVoltage sql.NullFloat64
		)
		rec := &row.Record
		err := rows.Scan(&row.ID, &ts, &rec.Energy, &samples,
			&avgPower, &avgTemp, &avgVoltage,
			&rec.ACVoltage, &rec.ACCurrent, &rec.ACFrequency, &rec.VoltageA, &rec.VoltageB,
			&rec.ErrorMessage, &row.Result.StatusCode, &row.Result.Payload, &row.Delivered)
		if err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		if rec.Time, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("history: bad timestamp %q: %w", ts, err)
		}
		rec.Samples = uint(samples)
		if avgPower.Valid {
			rec.Averages = &Averages{Power: avgPower.Float64, Temperature: avgTemp.Float64, Voltage: avgVoltage.Float64}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (h *History) Close() error {
	h.insert.Close()
	return h.db.Close()
}
