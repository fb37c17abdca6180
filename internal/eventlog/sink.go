// Package eventlog implements the controller's durable event sink: an
// append-only SQLite-backed log of every significant thing the core does
// (zone activations, program starts/ends, cancellations, skips,
// configuration updates), with optional syslog fan-out and a retention
// trim (§4.2). It is the persisted counterpart to the in-process
// events.Bus, which fans the same moments out live to subscribers (the
// HTTP SSE stream, the TUI) without touching disk.
package eventlog

import (
	"database/sql"
	"fmt"
	"log/syslog"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sprinklerd/internal/database"
	"github.com/aristath/sprinklerd/internal/model"
)

// Filter narrows a Find query. Zero values mean "no constraint" for that
// field; Since/Until bound Timestamp inclusively when non-zero.
type Filter struct {
	Zone    *int
	Program string
	Action  model.EventAction
	RunID   string
	Since   time.Time
	Until   time.Time
	Limit   int
}

// Sink is the durable, append-only event log.
type Sink struct {
	db  *database.DB
	log zerolog.Logger

	mu            sync.Mutex
	lastTimestamp time.Time
	lastSequence  int

	cleanupDays int

	syslogMu     sync.Mutex
	syslogWriter *syslog.Writer
}

// Config configures a Sink.
type Config struct {
	// Path is the sqlite file the event log is stored in. Resolved by the
	// caller via config.Resolve before being passed here.
	Path string
	// Syslog enables fan-out of every recorded event to the local syslog
	// daemon (§4.2).
	Syslog bool
	// CleanupDays is the retention window; 0 disables purging.
	CleanupDays int
}

// Open creates or opens the event database, migrates its schema and
// returns a ready-to-use Sink.
func Open(cfg Config, log zerolog.Logger) (*Sink, error) {
	db, err := database.New(database.Config{
		Path:    cfg.Path,
		Profile: database.ProfileLedger,
		Name:    "events",
	})
	if err != nil {
		return nil, fmt.Errorf("open event database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate event database: %w", err)
	}

	s := &Sink{
		db:          db,
		log:         log.With().Str("component", "eventlog").Logger(),
		cleanupDays: cfg.CleanupDays,
	}

	if row := db.Conn().QueryRow(`SELECT timestamp, sequence FROM events ORDER BY timestamp DESC, sequence DESC LIMIT 1`); row != nil {
		var ts string
		var seq int
		if err := row.Scan(&ts, &seq); err == nil {
			if parsed, perr := time.Parse(time.RFC3339Nano, ts); perr == nil {
				s.lastTimestamp = parsed
				s.lastSequence = seq
			}
		}
	}

	if cfg.Syslog {
		w, err := syslog.New(syslog.LOG_INFO|syslog.LOG_DAEMON, "sprinklerd")
		if err != nil {
			s.log.Warn().Err(err).Msg("syslog fan-out requested but unavailable, continuing without it")
		} else {
			s.syslogWriter = w
		}
	}

	return s, nil
}

// Close releases the underlying database (and syslog connection, if any).
func (s *Sink) Close() error {
	if s.syslogWriter != nil {
		_ = s.syslogWriter.Close()
	}
	return s.db.Close()
}

// Record assigns timestamp and sequence to rec (per §4.2: sequence resets
// to 1 when the wall clock has advanced since the last record, otherwise
// increments), persists it, fans it out to syslog if enabled, and — if
// this record got sequence 1 and retention is configured — purges
// records older than the retention window. A persistence failure is
// logged; Record still returns the in-memory-assigned record rather than
// an error, since the caller (the Executor, the reset tool) has nothing
// useful to do with a failed audit write mid-run.
func (s *Sink) Record(rec model.EventRecord) model.EventRecord {
	now := time.Now()

	s.mu.Lock()
	if s.lastTimestamp.IsZero() || now.After(s.lastTimestamp) {
		s.lastSequence = 1
	} else {
		s.lastSequence++
	}
	rec.Timestamp = now
	rec.Sequence = s.lastSequence
	s.lastTimestamp = now
	seq := s.lastSequence
	s.mu.Unlock()

	if err := s.persist(rec); err != nil {
		s.log.Error().Err(err).Str("action", string(rec.Action)).Msg("failed to persist event, in-memory record still recorded")
	}

	s.fanOutSyslog(rec)

	if s.cleanupDays > 0 && seq == 1 {
		if err := s.purge(now); err != nil {
			s.log.Warn().Err(err).Msg("event log retention purge failed")
		}
	}

	return rec
}

func (s *Sink) persist(rec model.EventRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO events (timestamp, sequence, action, zone, program, parent, seconds, runtime, adjustment, source, temperature, humidity, rain, ratio, run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp.Format(time.RFC3339Nano), rec.Sequence, string(rec.Action),
		nullableInt(rec.Zone), nullableString(rec.Program), nullableString(rec.Parent),
		nullableInt(rec.Seconds), nullableInt(rec.Runtime), nullableInt(rec.Adjustment),
		nullableString(rec.Source), nullableFloat(rec.Temperature), nullableFloat(rec.Humidity),
		nullableFloat(rec.Rain), nullableInt(rec.Ratio), nullableString(rec.RunID),
	)
	return err
}

func (s *Sink) purge(now time.Time) error {
	cutoff := now.Add(-time.Duration(s.cleanupDays) * 24 * time.Hour)
	_, err := s.db.Exec(`DELETE FROM events WHERE timestamp < ?`, cutoff.Format(time.RFC3339Nano))
	return err
}

// fanOutSyslog emits one line per record formatted as
// "<action> [zone N] [program P] [(program P')]" per §4.2.
func (s *Sink) fanOutSyslog(rec model.EventRecord) {
	if s.syslogWriter == nil {
		return
	}

	line := string(rec.Action)
	if rec.Zone != nil {
		line += fmt.Sprintf(" [zone %d]", *rec.Zone)
	}
	if rec.Program != nil {
		line += fmt.Sprintf(" [program %s]", *rec.Program)
	}
	if rec.Parent != nil {
		line += fmt.Sprintf(" [(program %s)]", *rec.Parent)
	}

	s.syslogMu.Lock()
	_ = s.syslogWriter.Info(line)
	s.syslogMu.Unlock()
}

// Find returns every record matching filter, sorted by (timestamp desc,
// sequence desc). filter.Limit, when > 0, bounds the result size.
func (s *Sink) Find(filter Filter) ([]model.EventRecord, error) {
	query := `SELECT timestamp, sequence, action, zone, program, parent, seconds, runtime, adjustment, source, temperature, humidity, rain, ratio, run_id FROM events WHERE 1=1`
	var args []interface{}

	if filter.Zone != nil {
		query += " AND zone = ?"
		args = append(args, *filter.Zone)
	}
	if filter.Program != "" {
		query += " AND (program = ? OR parent = ?)"
		args = append(args, filter.Program, filter.Program)
	}
	if filter.Action != "" {
		query += " AND action = ?"
		args = append(args, string(filter.Action))
	}
	if filter.RunID != "" {
		query += " AND run_id = ?"
		args = append(args, filter.RunID)
	}
	if !filter.Since.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.Since.Format(time.RFC3339Nano))
	}
	if !filter.Until.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, filter.Until.Format(time.RFC3339Nano))
	}

	query += " ORDER BY timestamp DESC, sequence DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("find events: %w", err)
	}
	defer rows.Close()

	var out []model.EventRecord
	for rows.Next() {
		var rec model.EventRecord
		var ts, action string
		var zone, seconds, runtime, adjustment, ratio sql.NullInt64
		var program, parent, source, runID sql.NullString
		var temperature, humidity, rain sql.NullFloat64

		if err := rows.Scan(&ts, &rec.Sequence, &action, &zone, &program, &parent, &seconds, &runtime, &adjustment, &source, &temperature, &humidity, &rain, &ratio, &runID); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}

		rec.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		rec.Action = model.EventAction(action)
		if zone.Valid {
			rec.Zone = model.IntPtr(int(zone.Int64))
		}
		if program.Valid {
			rec.Program = model.StringPtr(program.String)
		}
		if parent.Valid {
			rec.Parent = model.StringPtr(parent.String)
		}
		if seconds.Valid {
			rec.Seconds = model.IntPtr(int(seconds.Int64))
		}
		if runtime.Valid {
			rec.Runtime = model.IntPtr(int(runtime.Int64))
		}
		if adjustment.Valid {
			rec.Adjustment = model.IntPtr(int(adjustment.Int64))
		}
		if source.Valid {
			rec.Source = model.StringPtr(source.String)
		}
		if temperature.Valid {
			rec.Temperature = model.Float64Ptr(temperature.Float64)
		}
		if humidity.Valid {
			rec.Humidity = model.Float64Ptr(humidity.Float64)
		}
		if rain.Valid {
			rec.Rain = model.Float64Ptr(rain.Float64)
		}
		if ratio.Valid {
			rec.Ratio = model.IntPtr(int(ratio.Int64))
		}
		if runID.Valid {
			rec.RunID = model.StringPtr(runID.String)
		}

		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
