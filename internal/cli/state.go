package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BartekS5/pg2es/pkg/state"
)

func NewStateCmd() *cobra.Command {
	var stateFile string

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or reset the persisted watermark",
	}
	cmd.PersistentFlags().StringVar(&stateFile, "state", "etl_state.json", "Path to the checkpoint file")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the current watermark",
		RunE: func(c *cobra.Command, args []string) error {
			store := state.NewStore(stateFile)
			wm, ok := store.Get(state.LatestUpdateKey)
			if !ok {
				fmt.Println("no watermark persisted; next sync starts from the epoch")
				return nil
			}
			fmt.Println(wm)
			return nil
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Clear the checkpoint so the next sync starts from scratch",
		RunE: func(c *cobra.Command, args []string) error {
			return state.NewStore(stateFile).Reset()
		},
	}

	cmd.AddCommand(show, reset)
	return cmd
}
