package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/hako/durafmt"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var unclearedPrefix string

var unclearedCmd = &cobra.Command{
	Use:   "uncleared",
	Short: "Report journal postings awaiting a statement record",
	Long: `Lists postings on source accounts that carry no statement
description yet, oldest first. These are the journal's side of the
reconciliation gap.`,
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openSession()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		columnWidth := 80
		if isatty.IsTerminal(os.Stdout.Fd()) {
			if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
				columnWidth = w
			}
		}
		// date, amount and age take ~44 columns; the account gets the rest
		accountWidth := columnWidth - 44
		if accountWidth < 16 {
			accountWidth = 16
		}

		postings := s.Uncleared(unclearedPrefix)
		for _, p := range postings {
			account := p.Posting.Account
			if len(account) > accountWidth {
				account = account[:accountWidth-3] + "..."
			}
			age := durafmt.Parse(time.Since(p.Date())).LimitFirstN(1)
			fmt.Printf("%-10s  %-*s  %12s  %s old\n",
				p.Date().Format("2006-01-02"), accountWidth, account,
				p.Posting.Amount.String(), age)
		}
		fmt.Printf("%d uncleared\n", len(postings))
	},
}

func init() {
	unclearedCmd.Flags().StringVar(&unclearedPrefix, "account", "", "Limit the report to accounts with this prefix.")
	rootCmd.AddCommand(unclearedCmd)
}
