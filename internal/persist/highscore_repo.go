package persist

import "context"

// HighscoreRepo refreshes the materialized highscores view (§6 Store
// interface: "highscore view refresh"). Invoked periodically by
// cmd/realmd's runHighscoreRefresh goroutine, not on every skill save.
type HighscoreRepo struct {
	db *DB
}

func NewHighscoreRepo(db *DB) *HighscoreRepo {
	return &HighscoreRepo{db: db}
}

func (r *HighscoreRepo) RefreshHighscores(ctx context.Context) error {
	_, err := r.db.Pool.Exec(ctx, `REFRESH MATERIALIZED VIEW CONCURRENTLY highscores`)
	return err
}
