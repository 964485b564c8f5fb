package cli

import (
	"github.com/spf13/cobra"
)

type SyncOptions struct {
	SchemaFile string
	StateFile  string
	Index      string
	BatchSize  int
	CommitMode string
}

func NewSyncCmd() *cobra.Command {
	opts := &SyncOptions{}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one incremental catch-up pass",
		RunE: func(c *cobra.Command, args []string) error {
			return runSync(c.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.SchemaFile, "schema", "s", "configs/es_schema.json", "Path to the index mapping file")
	cmd.Flags().StringVar(&opts.StateFile, "state", "etl_state.json", "Path to the checkpoint file")
	cmd.Flags().StringVarP(&opts.Index, "index", "i", "movies", "Target index name")
	cmd.Flags().IntVarP(&opts.BatchSize, "batch-size", "b", 0, "Rows per batch (0 = TRANSFER_BATCH_SIZE)")
	cmd.Flags().StringVar(&opts.CommitMode, "commit", "after-extract", "When to persist the watermark: after-extract or after-load")

	return cmd
}
