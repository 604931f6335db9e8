package article

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slugify lowercases s, folds accents and joins alphanumeric runs with "-".
// "Atlético Madrid" becomes "atletico-madrid".
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
			dash = false
			continue
		}
		if !dash && sb.Len() > 0 {
			sb.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(sb.String(), "-")
}

// MatchSlug builds the article URL slug from league, teams and match day.
// "vs" joins the teams only when both have a slug; when neither does, the
// match id stands in for them so same-day fixtures stay distinct.
func MatchSlug(league, home, away, date, matchID string) string {
	day, _, _ := strings.Cut(date, "T")
	h, a := Slugify(home), Slugify(away)

	var teams string
	switch {
	case h != "" && a != "":
		teams = h + "-vs-" + a
	case h != "" || a != "":
		teams = h + a
	default:
		teams = join("match", Slugify(matchID))
	}
	return join(Slugify(league), teams, Slugify(day))
}

func join(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "-")
}
