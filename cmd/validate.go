package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/profiler-cli/internal/snapshot"
)

var validateCmd = &cobra.Command{
	Use:   "validate <organization>",
	Short: "Check an organization name against the regulatory snapshot",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		query := strings.Join(args, " ")

		st, err := initSnapshotStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		names, err := st.AllNames(ctx)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			return eris.New("snapshot is empty; run sync first")
		}

		best, score, ok := snapshot.Match(query, names, snapshot.DefaultMatchThreshold)
		if !ok {
			return eris.Errorf("not found: no facility matches %q (best %q at %d)", query, best, score)
		}

		fmt.Printf("%s (similarity %d)\n", best, score)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
