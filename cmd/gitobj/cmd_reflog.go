package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/odvcencio/gitobj/pkg/refs"
	"github.com/odvcencio/gitobj/pkg/storage/loose"
	"github.com/spf13/cobra"
)

func newReflogCmd(g *globalFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "reflog [ref]",
		Short: "Show reference update history (loose backend)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(cmd, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := cmd.Context()

			rdb, ok := s.db.Refs().(*loose.Refs)
			if !ok {
				return fmt.Errorf("reflog: not supported by the %s backend", s.cfg.Backend)
			}

			name := refs.HEAD
			if len(args) == 1 {
				name = refs.Name(args[0])
				if name != refs.HEAD && !strings.HasPrefix(args[0], "refs/") {
					name = refs.BranchName(args[0])
				}
			}
			if err := name.Validate(); err != nil {
				return fmt.Errorf("reflog: %w", err)
			}
			if name == refs.HEAD {
				head, err := s.db.LookupReference(ctx, refs.HEAD)
				if err != nil {
					return fmt.Errorf("reflog: %w", err)
				}
				if head.IsSymbolic() {
					name = head.SymbolicTarget
				}
			}

			entries, err := rdb.ReadReflog(name, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range entries {
				ts := time.Unix(e.Timestamp, 0).UTC().Format(time.RFC3339)
				fmt.Fprintf(out, "%s %s %s %s\n", e.New.Short(8), ts, e.Ref, e.Reason)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "max-count", "n", 50, "maximum entries to show (0 means all)")

	return cmd
}
