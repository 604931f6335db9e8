package narrative

import (
	"regexp"
	"strings"

	"goalgazer/internal/core"
	"goalgazer/internal/evidence"
)

var (
	ratingMention = regexp.MustCompile(`(?i)\s*[(,]?\s*\b(?:with an? |an? )?(?:match )?(?:rating(?: of)?|rated)\s*:?\s*\d{1,2}(?:\.\d+)?(?:\s*/\s*10)?\s*\)?`)
	spaceRun      = regexp.MustCompile(`\s{2,}`)
	spaceBeforeP  = regexp.MustCompile(`\s+([.,;:!?])`)
)

// RepairRatings fixes player notes that state a rating without citing one.
// When player data exists the catalog row is looked up by exact name and its
// rating path is added as evidence; when no row or rating exists the rating
// mention is stripped from the summary and the rating dropped. It returns one
// message per note it changed and is idempotent.
func RepairRatings(p *core.NarrativePayload, cat *evidence.Catalog, a core.Availability) []string {
	if !a.HasPlayers {
		return nil
	}
	var changes []string
	for i := range p.PlayerNotes {
		n := &p.PlayerNotes[i]
		if strings.TrimSpace(n.Rating) == "" || citesRating(n.Evidence) {
			continue
		}
		if row, ok := cat.FindPlayer(n.Player); ok && cat.Has(row.RatingPath()) {
			n.Evidence = append(n.Evidence, cat.Ref(row.RatingPath()))
			changes = append(changes, "backfilled rating evidence for "+n.Player)
			continue
		}
		n.Summary = StripRatingMention(n.Summary, n.Rating)
		n.Rating = ""
		changes = append(changes, "removed unsupported rating for "+n.Player)
	}
	return changes
}

// StripRatingMention removes phrases such as "rated 7.8" or "(rating: 7.8/10)"
// and bare occurrences of the stated value followed by "/10".
func StripRatingMention(summary, rating string) string {
	out := ratingMention.ReplaceAllString(summary, "")
	if r := strings.TrimSpace(rating); r != "" {
		out = regexp.MustCompile(`\s*\(?`+regexp.QuoteMeta(r)+`\s*/\s*10\)?`).ReplaceAllString(out, "")
	}
	out = spaceRun.ReplaceAllString(out, " ")
	out = spaceBeforeP.ReplaceAllString(out, "$1")
	return strings.TrimSpace(out)
}
