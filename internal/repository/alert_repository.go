package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"SwingScan/internal/domain/models"
	"SwingScan/internal/domain/repository"
	pkgkafka "SwingScan/pkg/kafka"
)

// ClickHouseAlertArchive implements AlertArchive for ClickHouse. The full
// score breakdown is stored as a JSON string column next to the queryable
// scalar columns.
type ClickHouseAlertArchive struct {
	db    *sql.DB
	table string
}

// NewClickHouseAlertArchive creates the ClickHouse-backed archive.
func NewClickHouseAlertArchive(db *sql.DB, table string) repository.AlertArchive {
	return &ClickHouseAlertArchive{db: db, table: table}
}

func (s *ClickHouseAlertArchive) Insert(ctx context.Context, a *models.Alert) error {
	breakdown, err := json.Marshal(a.Breakdown)
	if err != nil {
		return fmt.Errorf("marshal breakdown: %w", err)
	}
	q := fmt.Sprintf("INSERT INTO %s (id, created_at, symbol, total_score, catalyst_type, message, breakdown) VALUES (?, ?, ?, ?, ?, ?, ?)", s.table)
	_, err = s.db.ExecContext(ctx, q,
		a.ID,
		a.CreatedAt,
		a.Symbol,
		a.TotalScore,
		a.CatalystType,
		a.Message,
		string(breakdown),
	)
	return err
}

func (s *ClickHouseAlertArchive) Recent(ctx context.Context, limit int, since time.Time) ([]*models.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	if since.IsZero() {
		since = time.Now().Add(-24 * time.Hour)
	}
	q := fmt.Sprintf("SELECT id, created_at, symbol, total_score, catalyst_type, message, breakdown FROM %s WHERE created_at >= ? ORDER BY created_at DESC LIMIT ?", s.table)
	rows, err := s.db.QueryContext(ctx, q, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		var a models.Alert
		var breakdown string
		if err := rows.Scan(&a.ID, &a.CreatedAt, &a.Symbol, &a.TotalScore, &a.CatalystType, &a.Message, &breakdown); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(breakdown), &a.Breakdown); err != nil {
			return nil, fmt.Errorf("unmarshal breakdown: %w", err)
		}
		alerts = append(alerts, &a)
	}
	return alerts, rows.Err()
}

func (s *ClickHouseAlertArchive) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseAlertArchive) Close() error {
	return nil // Managed by pkg
}

// KafkaAlertSink implements AlertSink for Kafka, keyed by symbol so all
// alerts for one symbol land in order on one partition.
type KafkaAlertSink struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaAlertSink creates the Kafka alert sink.
func NewKafkaAlertSink(producer *pkgkafka.Producer, topic string) repository.AlertSink {
	return &KafkaAlertSink{producer: producer, topic: topic}
}

func (p *KafkaAlertSink) Publish(ctx context.Context, a *models.Alert) error {
	return p.producer.Publish(ctx, p.topic, []byte(a.Symbol), a)
}

func (p *KafkaAlertSink) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
