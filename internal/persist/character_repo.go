package persist

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// CharacterRepo is the pgx-backed CharacterStore implementation, grounded
// on the teacher's internal/persist/character_repo.go LoadByAccount/Create
// shape, restyled from the teacher's class/stat columns to this domain's
// zone/position/vitals/game-mode columns (§3 Character).
type CharacterRepo struct {
	db *DB
}

func NewCharacterRepo(db *DB) *CharacterRepo {
	return &CharacterRepo{db: db}
}

func (r *CharacterRepo) LoadCharacter(ctx context.Context, id int64) (*CharacterRow, error) {
	row := &CharacterRow{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, account_id, name, appearance, zone_id, x, y, z, rotation,
		        hp, max_hp, mana, max_mana, prayer, max_prayer, game_mode, playtime_secs, deleted_at
		 FROM characters WHERE id = $1`, id,
	).Scan(&row.ID, &row.AccountID, &row.Name, &row.Appearance, &row.ZoneID, &row.X, &row.Y, &row.Z, &row.Rotation,
		&row.HP, &row.MaxHP, &row.Mana, &row.MaxMana, &row.Prayer, &row.MaxPrayer, &row.GameMode, &row.PlaytimeSecs, &row.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *CharacterRepo) LoadCharactersByAccount(ctx context.Context, accountID int64) ([]CharacterRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, account_id, name, appearance, zone_id, x, y, z, rotation,
		        hp, max_hp, mana, max_mana, prayer, max_prayer, game_mode, playtime_secs, deleted_at
		 FROM characters WHERE account_id = $1 AND deleted_at IS NULL ORDER BY id`, accountID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CharacterRow
	for rows.Next() {
		var c CharacterRow
		if err := rows.Scan(&c.ID, &c.AccountID, &c.Name, &c.Appearance, &c.ZoneID, &c.X, &c.Y, &c.Z, &c.Rotation,
			&c.HP, &c.MaxHP, &c.Mana, &c.MaxMana, &c.Prayer, &c.MaxPrayer, &c.GameMode, &c.PlaytimeSecs, &c.DeletedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CharacterRepo) CreateCharacter(ctx context.Context, row *CharacterRow) error {
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO characters (account_id, name, appearance, zone_id, x, y, z, rotation,
		                          hp, max_hp, mana, max_mana, prayer, max_prayer, game_mode, playtime_secs)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		 RETURNING id`,
		row.AccountID, row.Name, row.Appearance, row.ZoneID, row.X, row.Y, row.Z, row.Rotation,
		row.HP, row.MaxHP, row.Mana, row.MaxMana, row.Prayer, row.MaxPrayer, row.GameMode, row.PlaytimeSecs,
	).Scan(&row.ID)
}

func (r *CharacterRepo) SaveCharacter(ctx context.Context, row *CharacterRow) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE characters SET zone_id=$2, x=$3, y=$4, z=$5, rotation=$6,
		        hp=$7, max_hp=$8, mana=$9, max_mana=$10, prayer=$11, max_prayer=$12,
		        game_mode=$13, playtime_secs=$14
		 WHERE id = $1`,
		row.ID, row.ZoneID, row.X, row.Y, row.Z, row.Rotation,
		row.HP, row.MaxHP, row.Mana, row.MaxMana, row.Prayer, row.MaxPrayer,
		row.GameMode, row.PlaytimeSecs,
	)
	return err
}

func (r *CharacterRepo) SoftDeleteCharacter(ctx context.Context, id int64) error {
	_, err := r.db.Pool.Exec(ctx, `UPDATE characters SET deleted_at = now() WHERE id = $1`, id)
	return err
}
