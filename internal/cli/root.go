// Package cli handles the command-line interface logic using the Cobra
// library.
package cli

import (
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pg2es",
		Short: "pg2es - incremental sync from PostgreSQL to Elasticsearch",
		Long: `pg2es performs one catch-up pass of incremental synchronization from a
PostgreSQL content database into an Elasticsearch index, resuming from the
last persisted watermark. Run it periodically from a scheduler.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.AddCommand(NewSyncCmd())
	rootCmd.AddCommand(NewStateCmd())

	return rootCmd
}
