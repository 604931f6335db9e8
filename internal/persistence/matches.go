package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"goalgazer/internal/article"
)

// ErrNotFound is returned when no stored content matches.
var ErrNotFound = errors.New("match content not found")

// MatchRow is one stored article summary.
type MatchRow struct {
	MatchID  string
	Lang     string
	Title    string
	Slug     string
	League   string
	HomeTeam string
	AwayTeam string
	Score    string
}

// MatchRepository upserts matches and their localized content.
type MatchRepository struct {
	db *sql.DB
}

// SaveArticle upserts the match row and the article content for its
// language in one transaction. NUL characters are removed from every string
// first since Postgres text and JSONB reject them.
func (r *MatchRepository) SaveArticle(ctx context.Context, doc *article.Document) error {
	content, err := SanitizedJSON(doc)
	if err != nil {
		return fmt.Errorf("encode article: %w", err)
	}

	lang := doc.Language
	if lang == "" {
		lang = "en"
	}
	m := doc.Match
	score := fmt.Sprintf("%d-%d", m.Score.Home, m.Score.Away)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO matches (match_id, league, season, home_team, away_team, date_utc, score, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (match_id) DO UPDATE SET
			league = EXCLUDED.league,
			season = EXCLUDED.season,
			home_team = EXCLUDED.home_team,
			away_team = EXCLUDED.away_team,
			date_utc = EXCLUDED.date_utc,
			score = EXCLUDED.score,
			updated_at = NOW()
	`, doc.Frontmatter.MatchID, StripNUL(doc.Frontmatter.League), StripNUL(m.Season),
		StripNUL(m.HomeTeam.Name), StripNUL(m.AwayTeam.Name), doc.Frontmatter.Date, score)
	if err != nil {
		return fmt.Errorf("failed to upsert match: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO match_content (match_id, lang, title, description, slug, content, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (match_id, lang) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			slug = EXCLUDED.slug,
			content = EXCLUDED.content,
			updated_at = NOW()
	`, doc.Frontmatter.MatchID, lang, StripNUL(doc.Frontmatter.Title),
		StripNUL(doc.Frontmatter.Description), doc.Frontmatter.Slug, string(content))
	if err != nil {
		return fmt.Errorf("failed to upsert match content: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit article: %w", err)
	}
	return nil
}

// GetBySlug returns the stored article JSON for a slug and language.
func (r *MatchRepository) GetBySlug(ctx context.Context, slug, lang string) ([]byte, error) {
	var content []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT content FROM match_content WHERE slug = $1 AND lang = $2`, slug, lang).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match content: %w", err)
	}
	return content, nil
}

// ListRecent returns the newest stored articles in a language.
func (r *MatchRepository) ListRecent(ctx context.Context, lang string, limit int) ([]MatchRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.match_id, c.lang, COALESCE(c.title, ''), COALESCE(c.slug, ''),
			COALESCE(m.league, ''), COALESCE(m.home_team, ''), COALESCE(m.away_team, ''), COALESCE(m.score, '')
		FROM match_content c
		JOIN matches m ON m.match_id = c.match_id
		WHERE c.lang = $1
		ORDER BY m.date_utc DESC
		LIMIT $2
	`, lang, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	var out []MatchRow
	for rows.Next() {
		var row MatchRow
		if err := rows.Scan(&row.MatchID, &row.Lang, &row.Title, &row.Slug,
			&row.League, &row.HomeTeam, &row.AwayTeam, &row.Score); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// StripNUL removes NUL characters from s.
func StripNUL(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}

// SanitizedJSON encodes v with NUL characters removed from every string and
// object key.
func SanitizedJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var tree any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return json.Marshal(sanitize(tree))
}

func sanitize(v any) any {
	switch x := v.(type) {
	case string:
		return StripNUL(x)
	case []any:
		for i := range x {
			x[i] = sanitize(x[i])
		}
		return x
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[StripNUL(k)] = sanitize(val)
		}
		return out
	default:
		return v
	}
}
