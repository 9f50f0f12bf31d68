package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/odvcencio/gitobj/pkg/refs"
	"github.com/odvcencio/gitobj/pkg/repository"
	"github.com/odvcencio/gitobj/pkg/revwalk"
	"github.com/spf13/cobra"
)

func newLogCmd(g *globalFlags) *cobra.Command {
	var (
		limit   int
		topo    bool
		reverse bool
		oneline bool
		hide    []string
	)

	cmd := &cobra.Command{
		Use:   "log [rev]",
		Short: "Show commit history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(cmd, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := cmd.Context()

			rev := string(refs.HEAD)
			if len(args) == 1 {
				rev = args[0]
			}
			start, err := resolveCommit(ctx, s.repo, rev)
			if err != nil {
				return err
			}

			rw := s.repo.CreateRevWalk()
			sorting := revwalk.SortTime
			if topo {
				sorting = revwalk.SortTopological
			}
			if reverse {
				sorting |= revwalk.SortReverse
			}
			rw.Sorting(sorting)
			if err := rw.Push(object.Handle(start)); err != nil {
				return err
			}
			for _, h := range hide {
				c, err := resolveCommit(ctx, s.repo, h)
				if err != nil {
					return fmt.Errorf("hide %s: %w", h, err)
				}
				if err := rw.Hide(object.Handle(c)); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			for n := 0; limit <= 0 || n < limit; n++ {
				c, err := rw.Next(ctx)
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return err
				}
				if oneline {
					fmt.Fprintf(out, "%s %s\n", c.ID().Short(8), c.Summary())
					continue
				}
				printCommit(out, c)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "max-count", "n", 0, "limit the number of commits shown (0 means all)")
	cmd.Flags().BoolVar(&topo, "topo", false, "never show a parent before all of its children")
	cmd.Flags().BoolVar(&reverse, "reverse", false, "oldest first")
	cmd.Flags().BoolVar(&oneline, "oneline", false, "one line per commit")
	cmd.Flags().StringArrayVar(&hide, "not", nil, "exclude commits reachable from rev (repeatable)")

	return cmd
}

func printCommit(w io.Writer, c *repository.Commit) {
	fmt.Fprintf(w, "commit %s\n", c.ID())
	if c.ParentCount() > 1 {
		short := make([]string, 0, c.ParentCount())
		for _, p := range c.ParentIDs() {
			short = append(short, p.Short(8))
		}
		fmt.Fprintf(w, "Merge: %s\n", strings.Join(short, " "))
	}
	a := c.Author()
	fmt.Fprintf(w, "Author: %s <%s>\n", a.Name, a.Email)
	fmt.Fprintf(w, "Date:   %s\n\n", a.When.Format(time.RFC1123Z))
	for _, line := range strings.Split(strings.TrimRight(c.Message(), "\n"), "\n") {
		fmt.Fprintf(w, "    %s\n", line)
	}
	fmt.Fprintln(w)
}
