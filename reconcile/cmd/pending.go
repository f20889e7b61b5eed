package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hako/durafmt"
	"github.com/spf13/cobra"
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List pending statement entries not yet reconciled",
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openSession()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		snap := s.Snapshot()
		for i, pe := range snap.Pool {
			marker := " "
			if i == snap.PendingIndex {
				marker = ">"
			}
			age := durafmt.Parse(time.Since(pe.Date)).LimitFirstN(1)
			first := pe.FormattedText
			if idx := strings.IndexByte(first, '\n'); idx >= 0 {
				first = first[:idx]
			}
			fmt.Printf("%s %3d  %-10s  %-12s  %s  (%s ago)\n",
				marker, i, pe.Date.Format("2006-01-02"), pe.Source, first, age)
		}
		fmt.Printf("%d pending\n", len(snap.Pool))
	},
}

func init() {
	rootCmd.AddCommand(pendingCmd)
}
