package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/odvcencio/gitobj/pkg/repository"
	"github.com/spf13/cobra"
)

func newMktreeCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mktree",
		Short: "Build a tree from \"mode path id\" lines on standard input",
		Long: `Build a tree from "mode path id" lines on standard input.

Paths may contain slashes; intermediate trees are created as needed.
git ls-tree output ("mode type id<TAB>path") is accepted as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(cmd, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := cmd.Context()

			b, err := s.repo.TreeBuilder(ctx)
			if err != nil {
				return err
			}
			if err := readTreeEntries(ctx, b, cmd.InOrStdin()); err != nil {
				return err
			}
			tree, err := b.Write(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tree.ID())
			return nil
		},
	}
}

func readTreeEntries(ctx context.Context, root *repository.TreeBuilder, r io.Reader) error {
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		mode, path, id, err := parseTreeLine(text)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		b := root
		parts := strings.Split(path, "/")
		for _, dir := range parts[:len(parts)-1] {
			if b, err = b.Subtree(ctx, dir); err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}
		}
		if err := b.Insert(parts[len(parts)-1], object.Hex(id), mode); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	return sc.Err()
}

func parseTreeLine(text string) (mode object.Mode, path, id string, err error) {
	if tab := strings.IndexByte(text, '\t'); tab >= 0 {
		fields := strings.Fields(text[:tab])
		if len(fields) != 3 {
			return 0, "", "", fmt.Errorf("malformed entry %q", text)
		}
		mode, err = object.ParseMode(fields[0])
		return mode, text[tab+1:], fields[2], err
	}
	fields := strings.Fields(text)
	if len(fields) != 3 {
		return 0, "", "", fmt.Errorf("malformed entry %q, want \"mode path id\"", text)
	}
	mode, err = object.ParseMode(fields[0])
	return mode, fields[1], fields[2], err
}
