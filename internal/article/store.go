package article

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"goalgazer/internal/schema"
)

// ErrNotFound is returned when no article exists for a match or slug.
var ErrNotFound = errors.New("article not found")

const (
	matchesDir = "matches"
	indexFile  = "index.json"
)

// IndexEntry is one row of the discovery index. Slug is the URL slug from
// the frontmatter; File is the "<date>_<matchId>" stem on disk.
type IndexEntry struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Date        string   `json:"date"`
	MatchID     string   `json:"matchId"`
	Slug        string   `json:"slug"`
	File        string   `json:"file"`
	Teams       []string `json:"teams"`
	League      string   `json:"league"`
	HeroImage   string   `json:"heroImage,omitempty"`
}

// Write stores the article under <contentDir>/matches/<date>_<matchId>.json
// and moves its index entry to the front of <contentDir>/index.json. Writes
// are last-writer-wins.
func Write(doc *Document, contentDir string) (string, error) {
	dir := filepath.Join(contentDir, matchesDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create content directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode article: %w", err)
	}
	path := filepath.Join(dir, doc.FileKey()+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write article: %w", err)
	}

	entries, err := ReadIndex(contentDir)
	if err != nil {
		return "", err
	}
	entry := IndexEntry{
		Title:       doc.Frontmatter.Title,
		Description: doc.Frontmatter.Description,
		Date:        doc.Frontmatter.Date,
		MatchID:     doc.Frontmatter.MatchID,
		Slug:        doc.Frontmatter.Slug,
		File:        doc.FileKey(),
		Teams:       doc.Frontmatter.Teams,
		League:      doc.Frontmatter.League,
		HeroImage:   doc.Frontmatter.HeroImage,
	}
	updated := []IndexEntry{entry}
	for _, e := range entries {
		if e.MatchID != entry.MatchID {
			updated = append(updated, e)
		}
	}
	if err := writeIndex(contentDir, updated); err != nil {
		return "", err
	}
	return path, nil
}

// ReadIndex returns the index entries, newest first. A missing index is
// empty.
func ReadIndex(contentDir string) ([]IndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(contentDir, indexFile))
	if errors.Is(err, os.ErrNotExist) {
		return []IndexEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}
	var entries []IndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse index: %w", err)
	}
	if entries == nil {
		entries = []IndexEntry{}
	}
	return entries, nil
}

func writeIndex(contentDir string, entries []IndexEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(contentDir, indexFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	return nil
}

// Locate finds the article file for a match, first through the index and
// then by globbing for "*_<matchId>.json".
func Locate(contentDir, matchID string) (string, error) {
	entries, err := ReadIndex(contentDir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.MatchID != matchID {
			continue
		}
		stem := e.File
		if stem == "" {
			stem = fileKey(e.Date, e.MatchID)
		}
		path := filepath.Join(contentDir, matchesDir, stem+".json")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	matches, err := filepath.Glob(filepath.Join(contentDir, matchesDir, "*_"+matchID+".json"))
	if err != nil {
		return "", fmt.Errorf("failed to search articles: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: match %s", ErrNotFound, matchID)
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}

// LocateSlug resolves a frontmatter slug through the index.
func LocateSlug(contentDir, slug string) (string, error) {
	entries, err := ReadIndex(contentDir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.Slug == slug || e.File == slug {
			return Locate(contentDir, e.MatchID)
		}
	}
	return "", fmt.Errorf("%w: slug %s", ErrNotFound, slug)
}

// WriteTranslation stores a translated article next to its source as
// <contentDir>/matches/<date>_<matchId>.<lang>.json. The index keeps
// pointing at the source article.
func WriteTranslation(doc *Document, contentDir string) (string, error) {
	if doc.Language == "" || doc.Language == "en" {
		return "", fmt.Errorf("translation needs a target language, got %q", doc.Language)
	}
	dir := filepath.Join(contentDir, matchesDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create content directory: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode translation: %w", err)
	}
	path := translationPath(filepath.Join(dir, doc.FileKey()+".json"), doc.Language)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write translation: %w", err)
	}
	return path, nil
}

// LocateTranslation finds the lang variant of the article for a slug.
func LocateTranslation(contentDir, slug, lang string) (string, error) {
	source, err := LocateSlug(contentDir, slug)
	if err != nil {
		return "", err
	}
	path := translationPath(source, lang)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s translation of %s", ErrNotFound, lang, slug)
	}
	return path, nil
}

func translationPath(source, lang string) string {
	return strings.TrimSuffix(source, ".json") + "." + lang + ".json"
}

// Load reads an article document from disk.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read article: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse article %s: %w", path, err)
	}
	return &doc, nil
}

// ValidateFile checks a written article against the article schema.
func ValidateFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read article: %w", err)
	}
	if err := schema.ValidateArticleJSON(data); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}
