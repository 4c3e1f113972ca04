package recorder

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"drift-control-core/closed_loop/drift"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the on-disk run log: one row per run, per tick and per event.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the sqlite file at path and brings its schema up
// to date. Pragmas go in the DSN so every pooled connection gets them.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	s := &Store{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrations source: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("migrate instance: %w", err)
	}
	return m, nil
}

// migrateUp applies pending migrations. The migrate instance is not closed:
// closing it would close the shared *sql.DB.
func (s *Store) migrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// SchemaVersion reports the applied migration version.
func (s *Store) SchemaVersion() (version uint, dirty bool, err error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

type Run struct {
	ID            string
	StartedAt     time.Time
	Law           drift.LawKind
	TargetYawRate float64
	Profile       string
}

// TickRow is a recorded tick, flattened the way it is stored.
type TickRow struct {
	Tick       int
	At         time.Time
	Phase      drift.Phase
	YawRate    float64
	YawAccel   float64
	LinAccelX  float64
	WaterTemp  float64
	WheelSpeed float64
	Airspeed   float64
	Turn       string
	Motion     string
	Steering   float64
	Throttle   float64
	Brake      float64
	Gear       int
	Dispatched bool
}

type EventRow struct {
	At     time.Time
	Kind   drift.EventKind
	Detail string
}

// StartRun inserts a run header. A run without an ID gets a fresh UUID.
func (s *Store) StartRun(run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO runs (run_id, started_at, law, target_yaw_rate, profile) VALUES (?, ?, ?, ?, ?)`,
		run.ID, unixSeconds(run.StartedAt), string(run.Law), run.TargetYawRate, run.Profile)
	if err != nil {
		return run, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

func (s *Store) InsertTick(runID string, r drift.TickRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO ticks (
			run_id, tick, ts, phase,
			yaw_rate, yaw_accel, lin_accel_x, water_temp, wheel_speed, airspeed,
			turn, motion, steering, throttle, brake, gear, dispatched
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, r.Tick, unixSeconds(r.At), string(r.Phase),
		r.Sample.YawRate, r.Sample.YawAccel, r.Sample.LinAccelX, r.Sample.WaterTemp, r.Sample.WheelSpeed, r.Sample.Airspeed,
		r.Turn.String(), r.Motion.Motion.String(), r.Command.Steering, r.Command.Throttle, r.Command.Brake, int(r.Command.Gear), r.Dispatched,
	)
	if err != nil {
		return fmt.Errorf("insert tick %d: %w", r.Tick, err)
	}
	return nil
}

func (s *Store) InsertEvent(runID string, e drift.Event) error {
	_, err := s.db.Exec(`INSERT INTO events (run_id, ts, kind, detail) VALUES (?, ?, ?, ?)`,
		runID, unixSeconds(e.At), string(e.Kind), e.Detail)
	if err != nil {
		return fmt.Errorf("insert %s event: %w", e.Kind, err)
	}
	return nil
}

// Runs lists recorded runs, newest first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query(`SELECT run_id, started_at, law, target_yaw_rate, COALESCE(profile, '') FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			run     Run
			started float64
			law     string
		)
		if err := rows.Scan(&run.ID, &started, &law, &run.TargetYawRate, &run.Profile); err != nil {
			return nil, err
		}
		run.StartedAt = fromUnixSeconds(started)
		run.Law = drift.LawKind(law)
		out = append(out, run)
	}
	return out, rows.Err()
}

// Ticks returns a run's ticks in order.
func (s *Store) Ticks(runID string) ([]TickRow, error) {
	rows, err := s.db.Query(`
		SELECT tick, ts, phase,
			COALESCE(yaw_rate, 0), COALESCE(yaw_accel, 0), COALESCE(lin_accel_x, 0),
			COALESCE(water_temp, 0), COALESCE(wheel_speed, 0), COALESCE(airspeed, 0),
			COALESCE(turn, ''), COALESCE(motion, ''),
			COALESCE(steering, 0), COALESCE(throttle, 0), COALESCE(brake, 0), COALESCE(gear, 0), dispatched
		FROM ticks WHERE run_id = ? ORDER BY tick`, runID)
	if err != nil {
		return nil, fmt.Errorf("query ticks: %w", err)
	}
	defer rows.Close()

	var out []TickRow
	for rows.Next() {
		var (
			t     TickRow
			ts    float64
			phase string
		)
		if err := rows.Scan(&t.Tick, &ts, &phase,
			&t.YawRate, &t.YawAccel, &t.LinAccelX,
			&t.WaterTemp, &t.WheelSpeed, &t.Airspeed,
			&t.Turn, &t.Motion,
			&t.Steering, &t.Throttle, &t.Brake, &t.Gear, &t.Dispatched); err != nil {
			return nil, err
		}
		t.At = fromUnixSeconds(ts)
		t.Phase = drift.Phase(phase)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Events returns a run's events in order of occurrence.
func (s *Store) Events(runID string) ([]EventRow, error) {
	rows, err := s.db.Query(`SELECT ts, kind, COALESCE(detail, '') FROM events WHERE run_id = ? ORDER BY event_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var (
			e    EventRow
			ts   float64
			kind string
		)
		if err := rows.Scan(&ts, &kind, &e.Detail); err != nil {
			return nil, err
		}
		e.At = fromUnixSeconds(ts)
		e.Kind = drift.EventKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

func unixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / 1e9
}

func fromUnixSeconds(s float64) time.Time {
	if s == 0 {
		return time.Time{}
	}
	sec := int64(s)
	return time.Unix(sec, int64((s-float64(sec))*1e9))
}
