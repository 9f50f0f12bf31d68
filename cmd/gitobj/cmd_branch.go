package main

import (
	"fmt"

	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/odvcencio/gitobj/pkg/refs"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newBranchCmd(g *globalFlags) *cobra.Command {
	var deleteBranch string
	var force bool

	cmd := &cobra.Command{
		Use:   "branch [name [start]]",
		Short: "List, create, or delete branches",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(cmd, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if deleteBranch != "" {
				if len(args) > 0 {
					return fmt.Errorf("branch --delete does not accept positional args")
				}
				if err := refs.ValidateShortName(deleteBranch); err != nil {
					return fmt.Errorf("branch: %w", err)
				}
				current, ok, err := s.repo.CurrentBranch(ctx)
				if err != nil {
					return err
				}
				if ok && current == deleteBranch {
					return fmt.Errorf("cannot delete the current branch %q", deleteBranch)
				}
				if err := s.repo.DeleteReference(ctx, string(refs.BranchName(deleteBranch))); err != nil {
					return err
				}
				fmt.Fprintf(out, "deleted branch '%s'\n", deleteBranch)
				return nil
			}

			if len(args) > 0 {
				start := string(refs.HEAD)
				if len(args) == 2 {
					start = args[1]
				}
				c, err := resolveCommit(ctx, s.repo, start)
				if err != nil {
					return fmt.Errorf("resolve %s: %w", start, err)
				}
				if _, err := s.repo.CreateBranch(ctx, args[0], object.Handle(c), force); err != nil {
					return err
				}
				fmt.Fprintf(out, "created branch '%s' at %s\n", args[0], c.ID().Short(8))
				return nil
			}

			branches, err := s.repo.Branches(ctx)
			if err != nil {
				return err
			}
			current, _, err := s.repo.CurrentBranch(ctx)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(out)
			table.Header("", "Branch", "Commit", "Summary")
			for _, b := range branches {
				marker := ""
				if b.Shorthand() == current {
					marker = "*"
				}
				summary := ""
				if c, err := b.Commit(ctx); err == nil {
					summary = c.Summary()
				}
				if err := table.Append(marker, b.Shorthand(), b.Target().Short(8), summary); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}

	cmd.Flags().StringVarP(&deleteBranch, "delete", "d", "", "delete the named branch")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "move an existing branch")

	return cmd
}
