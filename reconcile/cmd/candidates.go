package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/howeyc/reconcile/session"
)

var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "Print the ranked candidates for the current pending entry",
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openSession()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if !isatty.IsTerminal(os.Stdout.Fd()) {
			color.NoColor = true
		}
		set, err := s.Candidates(context.Background())
		if errors.Is(err, session.ErrExhausted) {
			fmt.Println("Nothing left to reconcile.")
			return
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		printEntry(s, set)
		printCandidates(set.Candidates)
	},
}

func init() {
	rootCmd.AddCommand(candidatesCmd)
}
