package handlers

import (
	"fmt"

	"github.com/spf13/cobra"

	"goalgazer/internal/article"
	"goalgazer/internal/render"
)

// NewRenderCmd creates the render command for markdown and HTML previews
func NewRenderCmd() *cobra.Command {
	var (
		matchID   string
		slug      string
		outputDir string
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render an article as markdown and HTML",
		Long: `Render a written article as markdown with YAML front matter.

Without --output the markdown is printed to stdout. With --output both
<date>_<matchId>.md and an HTML preview page are written to that directory.

Examples:
  goalgazer render --match-id 1035034
  goalgazer render --slug epl-burnley-vs-manchester-city-2023-08-11 --output ./preview`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(matchID, slug, outputDir)
		},
	}

	cmd.Flags().StringVar(&matchID, "match-id", "", "Fixture id of the article")
	cmd.Flags().StringVar(&slug, "slug", "", "Slug of the article")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for .md and .html files")
	cmd.MarkFlagsOneRequired("match-id", "slug")
	cmd.MarkFlagsMutuallyExclusive("match-id", "slug")

	return cmd
}

func runRender(matchID, slug, outputDir string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var path string
	if slug != "" {
		path, err = article.LocateSlug(cfg.Output.ContentDir, slug)
	} else {
		path, err = article.Locate(cfg.Output.ContentDir, matchID)
	}
	if err != nil {
		return err
	}

	doc, err := article.Load(path)
	if err != nil {
		return err
	}

	if outputDir == "" {
		md, err := render.Markdown(doc)
		if err != nil {
			return err
		}
		fmt.Print(md)
		return nil
	}

	mdPath, htmlPath, err := render.WriteFiles(doc, outputDir)
	if err != nil {
		return err
	}
	fmt.Println(panel("Rendered", field("Markdown", mdPath), field("HTML", htmlPath)))
	return nil
}
