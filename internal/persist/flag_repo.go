package persist

import "context"

// FlagRepo is the pgx-backed FlagStore implementation (§3 FlagRecord,
// §4.2.3 administrative escalation, §10 FlagRetentionDays pruning).
type FlagRepo struct {
	db *DB
}

func NewFlagRepo(db *DB) *FlagRepo {
	return &FlagRepo{db: db}
}

func (r *FlagRepo) RecordFlag(ctx context.Context, row FlagRow) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO flag_records (character_id, kind, severity, details, session_id, created_at_ms)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		row.CharacterID, row.Kind, row.Severity, row.Details, row.SessionID, row.CreatedAtMs,
	)
	return err
}

func (r *FlagRepo) CountFlagsSince(ctx context.Context, characterID int64, kind string, sinceMs int64) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT count(*) FROM flag_records WHERE character_id = $1 AND kind = $2 AND created_at_ms >= $3`,
		characterID, kind, sinceMs,
	).Scan(&count)
	return count, err
}

func (r *FlagRepo) PruneFlagsOlderThan(ctx context.Context, cutoffMs int64) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM flag_records WHERE created_at_ms < $1`, cutoffMs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
