// Package store writes packets to a Postgres time-series table, one row per
// packet with its validity flag so link quality can be queried later.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/gr-butler/lorastation/packet"
	"github.com/lib/pq"
	logger "github.com/sirupsen/logrus"
)

const DefaultTable = "telemetry"

// Execer is the part of *sql.DB the store needs.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type Store struct {
	db      Execer
	table   string
	timeout time.Duration
	insert  string
}

// Open connects to Postgres and checks the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// New writes into table, creating nothing until Init is called. Each write is
// bounded by timeout.
func New(db Execer, table string, timeout time.Duration) *Store {
	if table == "" {
		table = DefaultTable
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Store{
		db:      db,
		table:   table,
		timeout: timeout,
		insert: fmt.Sprintf(`INSERT INTO %s
	(received_at, flight_number, packet_number, temperature, pressure, battery_voltage, altitude, valid)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, pq.QuoteIdentifier(table)),
	}
}

// Init creates the table if needed.
func (s *Store) Init(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	name := pq.QuoteIdentifier(s.table)
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id              BIGSERIAL PRIMARY KEY,
	received_at     TIMESTAMPTZ NOT NULL,
	flight_number   BIGINT NOT NULL,
	packet_number   BIGINT NOT NULL,
	temperature     DOUBLE PRECISION,
	pressure        DOUBLE PRECISION,
	battery_voltage DOUBLE PRECISION,
	altitude        DOUBLE PRECISION,
	valid           BOOLEAN NOT NULL
)`, name))
	if err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	logger.Infof("Store table [%v] ready", s.table)
	return nil
}

func (s *Store) Consume(ctx context.Context, p packet.Packet) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err := s.db.ExecContext(ctx, s.insert,
		p.ReceivedAt.UTC(),
		int64(p.FlightNumber),
		int64(p.PacketNumber),
		nullable(p.Temperature),
		nullable(p.Pressure),
		nullable(float64(p.BatteryVoltage)),
		nullable(p.Altitude),
		p.Valid,
	)
	if err != nil {
		return fmt.Errorf("write packet %d/%d: %w", p.FlightNumber, p.PacketNumber, err)
	}
	return nil
}

// Postgres would take NaN, but NULL is what queries and dashboards expect
// for a missing altitude.
func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}
