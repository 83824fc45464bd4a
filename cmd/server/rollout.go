package main

import (
	"fmt"
	"io"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/UkralStul/syndication-service/internal/syndication"
)

type rolloutReport struct {
	Post    string              `yaml:"post"`
	Mode    syndication.Mode    `yaml:"mode"`
	DryRun  bool                `yaml:"dryRun"`
	Summary syndication.Summary `yaml:"summary"`
	Sites   []rolloutSite       `yaml:"sites"`
}

type rolloutSite struct {
	Site    string   `yaml:"site"`
	Outcome string   `yaml:"outcome"`
	Changes []string `yaml:"changes,omitempty"`
}

func newRolloutCommand(a *app) *cobra.Command {
	var dryRun, publish bool
	cmd := &cobra.Command{
		Use:   "rollout <postID>",
		Short: "Roll a master post out to every site",
		Long: `Create missing site copies of a master post and sync inherited fields of
existing copies in one transaction. Copies with inheritance disabled are skipped.
With --publish the post is published first and existing copies are left untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, closeStore, err := a.openStorage()
			if err != nil {
				return err
			}
			defer closeStore()

			reg, err := a.registry()
			if err != nil {
				return err
			}
			if _, err := reg.Sync(ctx, store); err != nil {
				return err
			}

			svc := syndication.NewService(store, nil)
			mode := syndication.ModeSync
			if publish {
				mode = syndication.ModeCreateOnly
			}

			var plan *syndication.Plan
			switch {
			case dryRun:
				plan, err = svc.Plan(ctx, args[0], mode)
			case publish:
				var res *syndication.Result
				if res, err = svc.PublishAndRollout(ctx, args[0]); err == nil {
					plan = res.Plan
				}
			default:
				var res *syndication.Result
				if res, err = svc.Rollout(ctx, args[0]); err == nil {
					plan = res.Plan
				}
			}
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), plan, dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the plan without writing")
	cmd.Flags().BoolVar(&publish, "publish", false, "publish the post and only create missing copies")
	return cmd
}

func writeReport(w io.Writer, plan *syndication.Plan, dryRun bool) error {
	report := rolloutReport{
		Post:    plan.Master.ID,
		Mode:    plan.Mode,
		DryRun:  dryRun,
		Summary: plan.Summary(),
		Sites:   make([]rolloutSite, 0, len(plan.Entries)),
	}
	for _, e := range plan.Entries {
		rs := rolloutSite{Site: e.Site.SiteID, Outcome: string(e.Outcome)}
		for _, f := range e.Changes {
			rs.Changes = append(rs.Changes, string(f))
		}
		report.Sites = append(report.Sites, rs)
	}

	out, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = w.Write(out)
	return err
}
