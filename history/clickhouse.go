package history

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

const createEventsTable = `
	CREATE TABLE IF NOT EXISTS sound_events (
		timestamp DateTime64(3),
		kind LowCardinality(String),
		message String,
		frequency_hz Float64,
		dominant_hz Float64,
		mapping_id String,
		label String
	) ENGINE = MergeTree()
	ORDER BY (timestamp, kind)
`

const insertEvent = `
	INSERT INTO sound_events (timestamp, kind, message, frequency_hz, dominant_hz, mapping_id, label)
	VALUES (?, ?, ?, ?, ?, ?, ?)
`

// execer is the subset of driver.Conn the recorder needs
type execer interface {
	Exec(ctx context.Context, query string, args ...any) error
	Close() error
}

// ClickHouseRecorder persists entries to ClickHouse from a background writer
// Record never blocks; entries are dropped when the queue is full
type ClickHouseRecorder struct {
	conn    execer
	queue   chan Entry
	done    chan struct{}
	dropped atomic.Uint64
	once    sync.Once
}

// NewClickHouseRecorder connects, creates the table and starts the writer
func NewClickHouseRecorder(addr, database, username, password string) (*ClickHouseRecorder, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	log.Printf("History: connected to ClickHouse at %s", addr)

	return newClickHouseRecorder(conn)
}

func newClickHouseRecorder(conn execer) (*ClickHouseRecorder, error) {
	if err := conn.Exec(context.Background(), createEventsTable); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	r := &ClickHouseRecorder{
		conn:  conn,
		queue: make(chan Entry, 256),
		done:  make(chan struct{}),
	}
	go r.loop()
	return r, nil
}

func (r *ClickHouseRecorder) Record(e Entry) {
	select {
	case r.queue <- e:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns how many entries were discarded on a full queue
func (r *ClickHouseRecorder) Dropped() uint64 {
	return r.dropped.Load()
}

func (r *ClickHouseRecorder) loop() {
	defer close(r.done)
	for e := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := r.conn.Exec(ctx, insertEvent,
			e.At,
			string(e.Kind),
			e.Message,
			e.FrequencyHz,
			e.DominantHz,
			e.MappingID,
			e.Label,
		)
		cancel()
		if err != nil {
			log.Printf("History: failed to insert event: %v", err)
		}
	}
}

// Close flushes queued entries and closes the connection
func (r *ClickHouseRecorder) Close() error {
	var err error
	r.once.Do(func() {
		close(r.queue)
		<-r.done
		if cerr := r.conn.Close(); cerr != nil {
			err = fmt.Errorf("failed to close ClickHouse connection: %w", cerr)
		}
	})
	return err
}
