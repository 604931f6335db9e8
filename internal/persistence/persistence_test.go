package persistence

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goalgazer/internal/article"
	"goalgazer/internal/config"
	"goalgazer/internal/core"
)

func TestSanitizedJSONStripsNUL(t *testing.T) {
	doc := map[string]any{
		"title\x00": "Bad\x00 title",
		"sections":  []any{map[string]any{"paragraphs": []string{"a\x00b", "clean"}}},
		"score":     2,
	}
	data, err := SanitizedJSON(doc)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `\u0000`)

	var back map[string]any
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "Bad title", back["title"])
	assert.Equal(t, float64(2), back["score"])
	paragraphs := back["sections"].([]any)[0].(map[string]any)["paragraphs"].([]any)
	assert.Equal(t, []any{"ab", "clean"}, paragraphs)
}

func TestLoadMigrations(t *testing.T) {
	migrations, err := loadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "initial schema", migrations[0].Description)
	assert.Contains(t, migrations[0].SQL, "UNIQUE(match_id, lang)")

	assert.Len(t, migrations[0].Checksum, 64)

	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].Version, migrations[i].Version)
	}
}

func TestParseMigrationName(t *testing.T) {
	version, desc, err := parseMigrationName("012_add_match_tags.sql")
	require.NoError(t, err)
	assert.Equal(t, 12, version)
	assert.Equal(t, "add match tags", desc)

	for _, bad := range []string{"initial.sql", "abc_initial.sql", "003_.sql"} {
		_, _, err := parseMigrationName(bad)
		assert.Error(t, err, bad)
	}
}

func TestFindPendingMigrations(t *testing.T) {
	available := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}
	pending := findPendingMigrations(available, []int{1, 3})
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Version)
}

func TestNewPostgresDBRequiresURL(t *testing.T) {
	_, err := NewPostgresDB(context.Background(), config.Database{})
	assert.Error(t, err)
}

// TestSaveArticleRoundTrip needs a scratch database, for example
// GOALGAZER_TEST_DATABASE_URL=postgres://localhost/goalgazer_test?sslmode=disable
func TestSaveArticleRoundTrip(t *testing.T) {
	url := os.Getenv("GOALGAZER_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("GOALGAZER_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := NewPostgresDB(ctx, config.Database{URL: url})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, NewMigrationManager(db, nil).Migrate(ctx))

	doc := &article.Document{
		Frontmatter: article.Frontmatter{
			Title: "Test\x00 title", Description: "d", Date: "2024-01-01T12:00:00Z",
			MatchID: "test-1", League: "epl", Slug: "epl-a-vs-b-2024-01-01",
		},
		Match: core.MatchInfo{ID: "test-1", Season: "2023",
			HomeTeam: core.TeamRef{Name: "A"}, AwayTeam: core.TeamRef{Name: "B"}, Score: core.Score{Home: 2, Away: 1}},
		Language: "en",
	}
	require.NoError(t, db.Matches().SaveArticle(ctx, doc))
	require.NoError(t, db.Matches().SaveArticle(ctx, doc), "second save upserts")

	content, err := db.Matches().GetBySlug(ctx, doc.Frontmatter.Slug, "en")
	require.NoError(t, err)
	assert.Contains(t, string(content), "Test title")

	_, err = db.Matches().GetBySlug(ctx, "missing", "en")
	assert.ErrorIs(t, err, ErrNotFound)
}
