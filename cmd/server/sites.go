package main

import (
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/UkralStul/syndication-service/internal/sites"
)

func newSitesCommand(a *app) *cobra.Command {
	var sync bool
	cmd := &cobra.Command{
		Use:   "sites",
		Short: "Print the site registry",
		Long:  "Print the site registry as YAML. With --sync the registry is also written to storage.",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry()
			if err != nil {
				return err
			}
			if sync {
				store, closeStore, err := a.openStorage()
				if err != nil {
					return err
				}
				defer closeStore()
				if _, err := reg.Sync(cmd.Context(), store); err != nil {
					return err
				}
			}

			out, err := yaml.Marshal(struct {
				Sites []sites.Entry `yaml:"sites"`
			}{Sites: reg.Entries()})
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().BoolVar(&sync, "sync", false, "upsert the registry into storage")
	return cmd
}
