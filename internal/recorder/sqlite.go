package recorder

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"TrendChannel/internal/calculator"
	"TrendChannel/internal/logger"
	"TrendChannel/internal/model"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists historical data to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode for better concurrent read performance (Grafana reads while bot writes).
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("[recorder] sqlite recorder opened", logger.Pair("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trend_bands (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp         INTEGER NOT NULL,
			mode              TEXT NOT NULL,
			symbol            TEXT,
			label             TEXT,
			at                INTEGER,
			x_start           INTEGER,
			x_end             INTEGER,
			y_start           REAL,
			y_end             REAL,
			candles           INTEGER,
			lower_a           REAL,
			lower_b           REAL,
			middle_a          REAL,
			middle_b          REAL,
			upper_a           REAL,
			upper_b           REAL,
			line_x_end        INTEGER,
			lower_confidence  REAL,
			middle_confidence REAL,
			upper_confidence  REAL,
			angle_percent     REAL,
			widened           INTEGER,
			error             TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trend_bands_ts ON trend_bands(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_trend_bands_mode ON trend_bands(mode, at)`,

		`CREATE TABLE IF NOT EXISTS strategy_signals (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp    INTEGER NOT NULL,
			strategy     TEXT,
			symbol       TEXT,
			at           INTEGER,
			last_close   REAL,
			trigger_type TEXT,
			warning      TEXT,
			periods      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_ts ON strategy_signals(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordTrends stores every event in a single transaction.
func (r *SQLiteRecorder) RecordTrends(events []TrendEvent) error {
	if len(events) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO trend_bands
		(timestamp, mode, symbol, label, at, x_start, x_end, y_start, y_end, candles,
		 lower_a, lower_b, middle_a, middle_b, upper_a, upper_b, line_x_end,
		 lower_confidence, middle_confidence, upper_confidence, angle_percent, widened, error)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, e := range events {
		b := e.Band
		if _, err := stmt.Exec(
			now, e.Mode, e.Symbol, e.Label, e.At,
			e.Window.XStart, e.Window.XEnd, e.Window.YStart, e.Window.YEnd, e.Candles,
			b.Lower.A, b.Lower.B, b.Middle.A, b.Middle.B, b.Upper.A, b.Upper.B, b.Middle.XEnd,
			b.Lower.ConfidencePercent, b.Middle.ConfidencePercent, b.Upper.ConfidencePercent,
			b.AnglePercent, b.Widened, e.Error,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert %s: %w", e.Label, err)
		}
	}
	return tx.Commit()
}

// periodRow is the stored summary of one strategy period.
type periodRow struct {
	Period     model.Period       `json:"period"`
	Direction  string             `json:"direction"`
	Position   model.BandPosition `json:"position"`
	Angle      float64            `json:"angle"`
	Confidence float64            `json:"confidence"`
	Slope      float64            `json:"slope"`
	Error      string             `json:"error,omitempty"`
}

func (r *SQLiteRecorder) RecordSignal(sig *model.TrendSignal) error {
	rows := make([]periodRow, len(sig.Periods))
	for i, p := range sig.Periods {
		rows[i] = periodRow{
			Period:     p.Period,
			Direction:  p.Direction.Label,
			Position:   p.Position,
			Angle:      p.Band.AnglePercent,
			Confidence: p.Band.Middle.ConfidencePercent,
			Slope:      p.RegressionSlope,
		}
		if p.Err != nil {
			rows[i].Error = p.Err.Error()
		}
	}
	periods, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode periods: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, err = r.db.Exec(`INSERT INTO strategy_signals
		(timestamp, strategy, symbol, at, last_close, trigger_type, warning, periods)
		VALUES (?,?,?,?,?,?,?,?)`,
		time.Now().Unix(), sig.Strategy, sig.Symbol, sig.At.UnixMilli(), sig.LastClose,
		string(sig.TriggerType), sig.WarningMsg, string(periods),
	)
	return err
}

// RecentTrends returns the newest stored bands for mode, newest first.
// Lines prolonged past the fitted window are extended again to the stored end.
func (r *SQLiteRecorder) RecentTrends(mode string, limit int) ([]TrendEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT mode, symbol, label, at, x_start, x_end, y_start, y_end, candles,
		lower_a, lower_b, middle_a, middle_b, upper_a, upper_b, line_x_end,
		lower_confidence, middle_confidence, upper_confidence, angle_percent, widened, error
		FROM trend_bands WHERE mode = ? ORDER BY id DESC LIMIT ?`, mode, limit)
	if err != nil {
		return nil, fmt.Errorf("query trend bands: %w", err)
	}
	defer rows.Close()

	var events []TrendEvent
	for rows.Next() {
		var (
			e                       TrendEvent
			la, lb, ma, mb, ua, ub  float64
			lowerC, middleC, upperC float64
			lineXEnd                int64
		)
		if err := rows.Scan(&e.Mode, &e.Symbol, &e.Label, &e.At,
			&e.Window.XStart, &e.Window.XEnd, &e.Window.YStart, &e.Window.YEnd, &e.Candles,
			&la, &lb, &ma, &mb, &ua, &ub, &lineXEnd,
			&lowerC, &middleC, &upperC, &e.Band.AnglePercent, &e.Band.Widened, &e.Error,
		); err != nil {
			return nil, fmt.Errorf("scan trend band: %w", err)
		}
		e.Band.Lower = lineOf(la, lb, e.Window, lowerC, lineXEnd)
		e.Band.Middle = lineOf(ma, mb, e.Window, middleC, lineXEnd)
		e.Band.Upper = lineOf(ua, ub, e.Window, upperC, lineXEnd)
		events = append(events, e)
	}
	return events, rows.Err()
}

// lineOf rebuilds a stored line; an end past the window restores prolongation.
func lineOf(a, b float64, w model.Window, confidence float64, xEnd int64) model.TrendLine {
	line := calculator.NewLine(a, b, w, confidence)
	if xEnd > w.XEnd {
		line = calculator.Prolong(line, xEnd, w.YStart)
	}
	return line
}

func (r *SQLiteRecorder) Close() error {
	logger.Info("[recorder] closing sqlite recorder")
	return r.db.Close()
}
