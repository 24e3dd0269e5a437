package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cam3ron2/classroom-stats/internal/clone"
	"github.com/cam3ron2/classroom-stats/internal/report"
	"github.com/cam3ron2/classroom-stats/internal/roster"
)

func newCloneCommand(c *cli) *cobra.Command {
	var baseDir string
	cmd := &cobra.Command{
		Use:   "clone",
		Short: "Clone every roster group repository into group_{n}/{repo} directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := c.setup()
			if err != nil {
				return err
			}
			defer env.close()

			if strings.TrimSpace(baseDir) != "" {
				env.cfg.Clone.BaseDir = baseDir
			}
			groups, err := roster.LoadFile(env.cfg.Scrape.RosterPath)
			if err != nil {
				return fmt.Errorf("load roster: %w", err)
			}

			cloner, err := clone.NewCloner(report.ExecRunner{}, clone.Config{BaseDir: env.cfg.Clone.BaseDir}, env.logger)
			if err != nil {
				return err
			}
			summary := cloner.CloneAll(cmd.Context(), groups)
			_, _ = fmt.Fprintf(c.stdout, "cloned %d, existing %d, failed %d into %s\n",
				summary.Count(clone.OutcomeCloned),
				summary.Count(clone.OutcomeExisting),
				summary.Count(clone.OutcomeFailed),
				env.cfg.Clone.BaseDir,
			)
			return cmd.Context().Err()
		},
	}
	cmd.Flags().StringVar(&baseDir, "dir", "", "override clone.base_dir")
	return cmd
}
