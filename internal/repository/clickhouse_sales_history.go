package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/repository"
)

// ClickHouseSalesHistory reads daily sales totals aggregated from a
// transaction table (item_id String, ts DateTime, quantity Float64).
type ClickHouseSalesHistory struct {
	db    *sql.DB
	table string
}

func NewClickHouseSalesHistory(db *sql.DB, table string) *ClickHouseSalesHistory {
	return &ClickHouseSalesHistory{db: db, table: table}
}

// SchemaStatements returns the idempotent DDL for the transaction table.
func SchemaStatements(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.%s (item_id String, ts DateTime, quantity Float64) ENGINE=MergeTree ORDER BY (item_id, ts)", database, table),
	}
}

func dailySalesQuery(table string) string {
	return fmt.Sprintf(
		"SELECT toDate(ts) AS day, sum(quantity) AS qty FROM %s WHERE item_id = ? AND ts >= ? AND ts < ? GROUP BY day ORDER BY day",
		table,
	)
}

func (h *ClickHouseSalesHistory) DailySales(ctx context.Context, itemID string, from, to time.Time) ([]models.Observation, error) {
	rows, err := h.db.QueryContext(ctx, dailySalesQuery(h.table), itemID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query daily sales: %w", err)
	}
	defer rows.Close()

	var out []models.Observation
	for rows.Next() {
		var o models.Observation
		if err := rows.Scan(&o.Date, &o.Quantity); err != nil {
			return nil, fmt.Errorf("scan daily sales: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

var _ repository.SalesHistory = (*ClickHouseSalesHistory)(nil)
