// Package render turns an article document into Markdown with a YAML front
// matter block, and into standalone HTML.
package render

import (
	"bytes"
	"fmt"
	stdhtml "html"
	"os"
	"path/filepath"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"gopkg.in/yaml.v3"

	"goalgazer/internal/article"
)

type frontMatter struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Date        string   `yaml:"date"`
	MatchID     string   `yaml:"matchId"`
	League      string   `yaml:"league"`
	Slug        string   `yaml:"slug"`
	Teams       []string `yaml:"teams"`
	Tags        []string `yaml:"tags"`
	HeroImage   string   `yaml:"heroImage,omitempty"`
}

// Markdown renders the full document, front matter included.
func Markdown(doc *article.Document) (string, error) {
	fm := doc.Frontmatter
	head, err := yaml.Marshal(frontMatter{
		Title:       fm.Title,
		Description: fm.Description,
		Date:        fm.Date,
		MatchID:     fm.MatchID,
		League:      fm.League,
		Slug:        fm.Slug,
		Teams:       fm.Teams,
		Tags:        fm.Tags,
		HeroImage:   fm.HeroImage,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode front matter: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	sb.Write(head)
	sb.WriteString("---\n\n")
	sb.WriteString(Body(doc))
	return sb.String(), nil
}

// Body renders the article body as Markdown.
func Body(doc *article.Document) string {
	var sb strings.Builder
	m := doc.Match

	sb.WriteString(fmt.Sprintf("# %s\n\n", doc.Frontmatter.Title))
	sb.WriteString(fmt.Sprintf("**%s %d-%d %s**", m.HomeTeam.Name, m.Score.Home, m.Score.Away, m.AwayTeam.Name))
	if m.League != "" {
		sb.WriteString(" · " + m.League)
	}
	sb.WriteString("\n\n")
	if doc.Thesis != "" {
		sb.WriteString(fmt.Sprintf("> %s\n\n", doc.Thesis))
	}

	for _, s := range doc.Sections {
		sb.WriteString(fmt.Sprintf("## %s\n\n", s.Heading))
		for _, p := range s.Paragraphs {
			sb.WriteString(p + "\n\n")
		}
		for _, b := range s.Bullets {
			sb.WriteString("- " + b + "\n")
		}
		if len(s.Bullets) > 0 {
			sb.WriteString("\n")
		}
		for _, f := range s.Figures {
			sb.WriteString(fmt.Sprintf("![%s](%s)\n\n*%s*\n\n", f.Alt, f.Src, f.Caption))
		}
	}

	if len(doc.PlayerNotes) > 0 {
		sb.WriteString("## Player Notes\n\n")
		for _, n := range doc.PlayerNotes {
			line := fmt.Sprintf("- **%s** (%s): %s", n.Player, n.Team, n.Summary)
			if n.Rating != "" {
				line += fmt.Sprintf(" Rating %s.", n.Rating)
			}
			sb.WriteString(line + "\n")
		}
		sb.WriteString("\n")
	}

	if mv := doc.Multiverse; mv != nil && mv.Summary != "" {
		sb.WriteString("## What If\n\n" + mv.Summary + "\n\n")
		for _, p := range mv.Pivots {
			sb.WriteString(fmt.Sprintf("- **%d' %s**: %s Had it gone the other way: %s\n",
				p.Minute, p.Description, p.Reality.Outcome, p.Symmetry.Outcome))
		}
		if len(mv.Pivots) > 0 {
			sb.WriteString("\n")
		}
	}

	if len(doc.DataLimitations) > 0 {
		sb.WriteString("## Data Limitations\n\n")
		for _, l := range doc.DataLimitations {
			sb.WriteString("- " + l + "\n")
		}
		sb.WriteString("\n")
	}

	if len(doc.DataCitations) > 0 {
		sb.WriteString("---\n\nSources: " + strings.Join(doc.DataCitations, ", ") + "\n\n")
	}
	if doc.CTA != "" {
		sb.WriteString("*" + doc.CTA + "*\n")
	}
	return sb.String()
}

// HTML converts the article body to HTML.
func HTML(doc *article.Document) []byte {
	return MarkdownToHTML(Body(doc))
}

// MarkdownToHTML converts markdown text with common extensions. Links open
// in a new tab. Raw HTML in the source is dropped.
func MarkdownToHTML(text string) []byte {
	if text == "" {
		return nil
	}
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	r := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank | html.SkipHTML})
	return markdown.ToHTML([]byte(text), p, r)
}

// WriteFiles writes <key>.md and <key>.html into outputDir and returns both
// paths.
func WriteFiles(doc *article.Document, outputDir string) (string, string, error) {
	if outputDir == "" {
		outputDir = "rendered"
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	md, err := Markdown(doc)
	if err != nil {
		return "", "", err
	}
	mdPath := filepath.Join(outputDir, doc.FileKey()+".md")
	if err := os.WriteFile(mdPath, []byte(md), 0644); err != nil {
		return "", "", fmt.Errorf("failed to write %s: %w", mdPath, err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html lang=\"" + lang(doc) + "\">\n<head>\n<meta charset=\"utf-8\">\n")
	page.WriteString("<title>" + stdhtml.EscapeString(doc.Frontmatter.Title) + "</title>\n")
	page.WriteString("<meta name=\"description\" content=\"" + stdhtml.EscapeString(doc.Frontmatter.Description) + "\">\n")
	page.WriteString("</head>\n<body>\n<article>\n")
	page.Write(HTML(doc))
	page.WriteString("</article>\n</body>\n</html>\n")

	htmlPath := filepath.Join(outputDir, doc.FileKey()+".html")
	if err := os.WriteFile(htmlPath, page.Bytes(), 0644); err != nil {
		return "", "", fmt.Errorf("failed to write %s: %w", htmlPath, err)
	}
	return mdPath, htmlPath, nil
}

func lang(doc *article.Document) string {
	if doc.Language == "" {
		return "en"
	}
	return doc.Language
}
