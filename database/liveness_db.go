package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/camden-git/trustytail/config"
)

// Querier is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Builder returns a statement builder with the placeholder style of the driver.
func Builder(driver string) sq.StatementBuilderType {
	if driver == config.DriverPostgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

// OverdueChat is one monitored chat whose last confirmation is older than the cutoff.
// ConfirmedAt is nil when the owner never confirmed.
type OverdueChat struct {
	ChatID      int64
	ConfirmedAt *time.Time
}

// OverdueQuery selects one page of overdue chats.
type OverdueQuery struct {
	Cutoff                time.Time
	IncludeNeverConfirmed bool
	// After is the last chat id of the previous page, nil for the first page.
	After *int64
	Limit int
}

func overdueSelect(b sq.StatementBuilderType, q OverdueQuery) sq.SelectBuilder {
	sel := b.Select("ms.chat_id", "le.confirmed_at").
		From("monitoring_statuses ms").
		LeftJoin("liveness_events le ON le.chat_id = ms.chat_id").
		Where(sq.Eq{"ms.enabled": true})

	if q.IncludeNeverConfirmed {
		sel = sel.Where(sq.Or{
			sq.Eq{"le.confirmed_at": nil},
			sq.Lt{"le.confirmed_at": q.Cutoff},
		})
	} else {
		sel = sel.Where(sq.Lt{"le.confirmed_at": q.Cutoff})
	}

	if q.After != nil {
		sel = sel.Where(sq.Gt{"ms.chat_id": *q.After})
	}

	return sel.OrderBy("ms.chat_id ASC").Limit(uint64(q.Limit))
}

// ListOverdue returns one page of monitored chats whose last liveness
// confirmation is older than q.Cutoff, ordered by chat id.
func ListOverdue(ctx context.Context, db Querier, b sq.StatementBuilderType, q OverdueQuery) ([]OverdueChat, error) {
	if q.Limit <= 0 {
		return nil, fmt.Errorf("invalid page size %d", q.Limit)
	}

	sqlStr, args, err := overdueSelect(b, q).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for ListOverdue: %w", err)
	}

	rows, err := db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query overdue chats: %w", err)
	}
	defer rows.Close()

	var chats []OverdueChat
	for rows.Next() {
		var chat OverdueChat
		var confirmedAt sql.NullTime
		if err := rows.Scan(&chat.ChatID, &confirmedAt); err != nil {
			return nil, fmt.Errorf("failed to scan overdue chat row: %w", err)
		}
		if confirmedAt.Valid {
			t := confirmedAt.Time
			chat.ConfirmedAt = &t
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating overdue chat rows: %w", err)
	}
	return chats, nil
}

// Stats is an aggregate snapshot used by the admin API.
type Stats struct {
	Profiles          int64 `json:"profiles"`
	MonitoringEnabled int64 `json:"monitoring_enabled"`
	SecondaryLinks    int64 `json:"secondary_links"`
	NeverConfirmed    int64 `json:"never_confirmed"`
}

func count(ctx context.Context, db Querier, sel sq.SelectBuilder) (int64, error) {
	sqlStr, args, err := sel.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}
	var n int64
	if err := db.QueryRowContext(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to execute count query: %w", err)
	}
	return n, nil
}

// GetStats counts profiles, enabled monitoring rows and secondary links.
func GetStats(ctx context.Context, db Querier, b sq.StatementBuilderType) (Stats, error) {
	var stats Stats
	var err error

	if stats.Profiles, err = count(ctx, db, b.Select("COUNT(*)").From("profiles")); err != nil {
		return Stats{}, err
	}
	if stats.MonitoringEnabled, err = count(ctx, db, b.Select("COUNT(*)").From("monitoring_statuses").Where(sq.Eq{"enabled": true})); err != nil {
		return Stats{}, err
	}
	if stats.SecondaryLinks, err = count(ctx, db, b.Select("COUNT(*)").From("secondary_owners")); err != nil {
		return Stats{}, err
	}
	neverConfirmed := b.Select("COUNT(*)").
		From("monitoring_statuses ms").
		LeftJoin("liveness_events le ON le.chat_id = ms.chat_id").
		Where(sq.Eq{"ms.enabled": true, "le.id": nil})
	if stats.NeverConfirmed, err = count(ctx, db, neverConfirmed); err != nil {
		return Stats{}, err
	}
	return stats, nil
}
