package persist

import "context"

// SkillRepo is the pgx-backed SkillStore implementation (§3 Skill:
// per-character (skill, level, xp) rows, upserted by cmd/realmd's periodic
// character save sweep).
type SkillRepo struct {
	db *DB
}

func NewSkillRepo(db *DB) *SkillRepo {
	return &SkillRepo{db: db}
}

func (r *SkillRepo) LoadSkills(ctx context.Context, characterID int64) ([]SkillRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT character_id, skill, level, xp FROM character_skills WHERE character_id = $1`, characterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SkillRow
	for rows.Next() {
		var s SkillRow
		if err := rows.Scan(&s.CharacterID, &s.Skill, &s.Level, &s.XP); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SkillRepo) SaveSkill(ctx context.Context, row SkillRow) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO character_skills (character_id, skill, level, xp)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (character_id, skill) DO UPDATE SET level = $3, xp = $4`,
		row.CharacterID, row.Skill, row.Level, row.XP,
	)
	return err
}
