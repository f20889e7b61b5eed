package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var ignoreCmd = &cobra.Command{
	Use:   "ignore",
	Short: "Ignore the current pending entry permanently",
	Long: `Records the current pending entry in the ignore file so it is
suppressed on every future run, then advances to the next entry.`,
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openSession()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		set, err := s.Candidates(context.Background())
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if err := s.Ignore(set, set.Candidates[len(set.Candidates)-1]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("ignored, %d remaining\n", s.Snapshot().Remaining())
	},
}

func init() {
	rootCmd.AddCommand(ignoreCmd)
}
