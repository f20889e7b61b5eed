package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var acceptCmd = &cobra.Command{
	Use:   "accept [candidate]",
	Short: "Accept a candidate for the current pending entry",
	Long: `Applies the numbered candidate (1-based, default 1) for the current
pending entry to the journal and advances to the next entry.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		n := 1
		if len(args) == 1 {
			var err error
			if n, err = strconv.Atoi(args[0]); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
		}
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
		if n < 1 || n > len(set.Candidates) {
			fmt.Fprintf(os.Stderr, "candidate %d out of range 1-%d\n", n, len(set.Candidates))
			os.Exit(1)
		}
		if err := s.Accept(set, set.Candidates[n-1]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("accepted, %d remaining\n", s.Snapshot().Remaining())
	},
}

func init() {
	rootCmd.AddCommand(acceptCmd)
}
