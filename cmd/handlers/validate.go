package handlers

import (
	"fmt"

	"github.com/spf13/cobra"

	"goalgazer/internal/article"
)

// NewValidateCmd creates the validate command for written articles
func NewValidateCmd() *cobra.Command {
	var (
		matchID string
		file    string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a written article against the article schema",
		Long: `Check a written article against the article JSON Schema.

The article is located through content/index.json, falling back to a
"*_<matchId>.json" search under content/matches when the index has no entry.

Examples:
  goalgazer validate --match-id 1035034
  goalgazer validate --file apps/web/content/matches/2023-08-11_1035034.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(matchID, file)
		},
	}

	cmd.Flags().StringVar(&matchID, "match-id", "", "Fixture id of the article to check")
	cmd.Flags().StringVar(&file, "file", "", "Path of the article file to check")
	cmd.MarkFlagsOneRequired("match-id", "file")
	cmd.MarkFlagsMutuallyExclusive("match-id", "file")

	return cmd
}

func runValidate(matchID, file string) error {
	path := file
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path, err = article.Locate(cfg.Output.ContentDir, matchID)
		if err != nil {
			return err
		}
	}

	if err := article.ValidateFile(path); err != nil {
		fmt.Println(panel("Validation failed", field("File", path), errorStyle.Render(err.Error())))
		return fmt.Errorf("article is invalid")
	}
	fmt.Println(panel("Article valid", field("File", path), field("Status", statusText("ok"))))
	return nil
}
