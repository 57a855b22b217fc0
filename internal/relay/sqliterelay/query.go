package sqliterelay

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/relaykv/internal/envelope"
)

// Query implements relay.Relay. With a limit the newest rows are selected
// and returned in ascending order.
func (r *Relay) Query(ctx context.Context, filter envelope.Filter) ([]envelope.Envelope, error) {
	query, args := buildQuery(filter)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []envelope.Envelope
	for rows.Next() {
		var (
			env      envelope.Envelope
			created  int64
			kind     int
			tagsJSON string
		)
		if err := rows.Scan(&env.ID, &env.Pubkey, &created, &kind, &tagsJSON, &env.Content, &env.Sig); err != nil {
			return nil, fmt.Errorf("query: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(tagsJSON), &env.Tags); err != nil {
			return nil, fmt.Errorf("query: decode tags of %s: %w", env.ID, err)
		}
		env.CreatedAt = uint64(created)
		env.Kind = envelope.Kind(kind)
		out = append(out, env)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	if filter.Limit > 0 {
		slices.Reverse(out)
	}
	return out, nil
}

// buildQuery renders filter as SQL. Ordering is (created_at, id) with
// binary collation, matching envelope.Compare.
func buildQuery(filter envelope.Filter) (string, []any) {
	var (
		where []string
		args  []any
	)

	in := func(column string, n int) string {
		return column + " IN (" + strings.TrimSuffix(strings.Repeat("?,", n), ",") + ")"
	}

	if len(filter.IDs) > 0 {
		where = append(where, in("id", len(filter.IDs)))
		for _, id := range filter.IDs {
			args = append(args, id)
		}
	}
	if len(filter.Authors) > 0 {
		where = append(where, in("pubkey", len(filter.Authors)))
		for _, a := range filter.Authors {
			args = append(args, a)
		}
	}
	if len(filter.Kinds) > 0 {
		where = append(where, in("kind", len(filter.Kinds)))
		for _, k := range filter.Kinds {
			args = append(args, int(k))
		}
	}
	if len(filter.Keys) > 0 {
		where = append(where, "EXISTS (SELECT 1 FROM event_tags t WHERE t.event_id = events.id AND t.name = ? AND "+in("t.value", len(filter.Keys))+")")
		args = append(args, envelope.TagKey)
		for _, k := range filter.Keys {
			args = append(args, k)
		}
	}
	if filter.Since > 0 {
		where = append(where, "created_at >= ?")
		args = append(args, int64(filter.Since))
	}
	if filter.Until > 0 {
		where = append(where, "created_at <= ?")
		args = append(args, int64(filter.Until))
	}

	var b strings.Builder
	b.WriteString("SELECT id, pubkey, created_at, kind, tags, content, sig FROM events")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	if filter.Limit > 0 {
		b.WriteString(" ORDER BY created_at DESC, id COLLATE BINARY DESC LIMIT ?")
		args = append(args, filter.Limit)
	} else {
		b.WriteString(" ORDER BY created_at ASC, id COLLATE BINARY ASC")
	}
	return b.String(), args
}
