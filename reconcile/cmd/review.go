package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/hako/durafmt"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/howeyc/reconcile/candidate"
	"github.com/howeyc/reconcile/session"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Interactively reconcile pending statement entries",
	Long: `Walks the pending pool one entry at a time, printing the ranked
candidates for each. Accepting a candidate edits the journal in place;
ignored entries are recorded so they never come back.`,
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openSession()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if !isatty.IsTerminal(os.Stdout.Fd()) {
			color.NoColor = true
		}
		if err := runInteractive(s); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

func runInteractive(s *session.Session) error {
	in := bufio.NewScanner(os.Stdin)
	ctx := context.Background()
	for {
		set, err := s.Candidates(ctx)
		if errors.Is(err, session.ErrExhausted) {
			fmt.Println("Nothing left to reconcile.")
			return nil
		}
		if err != nil {
			return err
		}
		cands := set.Candidates
		printEntry(s, set)
		printCandidates(cands)

	prompt:
		for {
			fmt.Print("accept [n], set <n> <group> <account>, (i)gnore, (s)kip, (b)ack, (q)uit> ")
			if !in.Scan() {
				return in.Err()
			}
			fields := strings.Fields(in.Text())
			if len(fields) == 0 {
				continue
			}
			switch fields[0] {
			case "q", "quit":
				return nil
			case "s", "skip":
				if err := s.Skip(); err != nil {
					return err
				}
				break prompt
			case "b", "back":
				if err := s.Back(); err != nil {
					return err
				}
				break prompt
			case "i", "ignore":
				err := s.Ignore(set, cands[len(cands)-1])
				if errors.Is(err, session.ErrStale) {
					fmt.Println("journal changed underneath, recomputing")
					break prompt
				}
				if err != nil {
					return err
				}
				break prompt
			case "set":
				if len(fields) != 4 {
					fmt.Println("usage: set <candidate> <group> <account>")
					continue
				}
				n, err1 := strconv.Atoi(fields[1])
				g, err2 := strconv.Atoi(fields[2])
				if err1 != nil || err2 != nil || n < 1 || n > len(cands) {
					fmt.Println("usage: set <candidate> <group> <account>")
					continue
				}
				c, err := cands[n-1].Substitute(g, fields[3])
				if err != nil {
					fmt.Println(err)
					continue
				}
				cands[n-1] = c
				printCandidates(cands)
			default:
				n, err := strconv.Atoi(fields[0])
				if err != nil || n < 1 || n > len(cands) {
					fmt.Println("unrecognized command")
					continue
				}
				err = s.Accept(set, cands[n-1])
				if errors.Is(err, session.ErrStale) {
					fmt.Println("journal changed underneath, recomputing")
					break prompt
				}
				if err != nil {
					return err
				}
				break prompt
			}
		}
	}
}

func printEntry(s *session.Session, set *session.CandidateSet) {
	snap := s.Snapshot()
	age := durafmt.Parse(time.Since(set.Entry.Date)).LimitFirstN(1)
	header := color.New(color.Bold)
	header.Printf("\n%s  %s  (%s ago, %d remaining)\n",
		set.Entry.Date.Format("2006-01-02"), set.Entry.Source, age, snap.Remaining())
	fmt.Println(set.Entry.FormattedText)
}

func printCandidates(cands []*candidate.Candidate) {
	add := color.New(color.FgGreen).SprintFunc()
	del := color.New(color.FgRed).SprintFunc()
	num := color.New(color.FgHiYellow, color.Bold).SprintfFunc()
	for i, c := range cands {
		label := "new entry"
		if c.Merged != nil {
			label = fmt.Sprintf("merge into %s %s", c.Merged.Date.Format("2006-01-02"), c.Merged.Narration)
		}
		fmt.Printf("%s %s\n", num("%d)", i+1), label)
		for _, line := range strings.Split(c.Changes.Render(), "\n") {
			switch {
			case strings.HasPrefix(line, "+"):
				fmt.Println("   " + add(line))
			case strings.HasPrefix(line, "-"):
				fmt.Println("   " + del(line))
			default:
				fmt.Println("   " + line)
			}
		}
		for _, sub := range c.Substitutions {
			if sub.Predicted != "" && sub.Account == sub.Predicted {
				fmt.Printf("   group %d: %s (predicted)\n", sub.Group, sub.Account)
			} else {
				fmt.Printf("   group %d: %s\n", sub.Group, sub.Account)
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(reviewCmd)
}
