package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/odvcencio/gitobj/pkg/refs"
	"github.com/odvcencio/gitobj/pkg/repository"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// peelConcurrency bounds the object reads show-ref --peel runs at once.
const peelConcurrency = 8

func newShowRefCmd(g *globalFlags) *cobra.Command {
	var heads, tags, peel bool

	cmd := &cobra.Command{
		Use:   "show-ref [pattern...]",
		Short: "List references and the objects they point at",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(cmd, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := cmd.Context()

			var prefixes []string
			if heads {
				prefixes = append(prefixes, refs.HeadsPrefix)
			}
			if tags {
				prefixes = append(prefixes, refs.TagsPrefix)
			}
			if len(prefixes) == 0 {
				prefixes = []string{"refs/"}
			}

			var list []*repository.Reference
			for _, prefix := range prefixes {
				found, err := s.repo.References(ctx, prefix)
				if err != nil {
					return err
				}
				for _, ref := range found {
					if matchRef(ref.Name(), args) {
						list = append(list, ref)
					}
				}
			}
			if len(list) == 0 {
				return fmt.Errorf("no matching references")
			}

			peeled := make([]string, len(list))
			if peel {
				eg, ectx := errgroup.WithContext(ctx)
				eg.SetLimit(peelConcurrency)
				for i, ref := range list {
					i, ref := i, ref
					eg.Go(func() error {
						id, err := peelTag(ectx, s.repo, ref)
						if err != nil {
							return err
						}
						if !id.IsZero() {
							peeled[i] = id.String()
						}
						return nil
					})
				}
				if err := eg.Wait(); err != nil {
					return err
				}
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			if peel {
				table.Header("ID", "Reference", "Peeled")
			} else {
				table.Header("ID", "Reference")
			}
			for i, ref := range list {
				target := ref.Target().String()
				if ref.IsSymbolic() {
					target = "-> " + string(ref.SymbolicTarget())
				}
				row := []interface{}{target, string(ref.Name())}
				if peel {
					row = append(row, peeled[i])
				}
				if err := table.Append(row...); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}

	cmd.Flags().BoolVar(&heads, "heads", false, "only show branches")
	cmd.Flags().BoolVar(&tags, "tags", false, "only show tags")
	cmd.Flags().BoolVarP(&peel, "peel", "d", false, "show the commit annotated tags point at")

	return cmd
}

// matchRef reports whether name matches any pattern: a full name, or a
// trailing run of whole path components. No patterns match everything.
func matchRef(name refs.Name, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	s := string(name)
	for _, p := range patterns {
		if s == p || strings.HasSuffix(s, "/"+p) {
			return true
		}
	}
	return false
}

// peelTag returns the commit behind an annotated tag, or the zero id when
// ref does not point at a tag or the tag does not lead to a commit.
func peelTag(ctx context.Context, r *repository.Repository, ref *repository.Reference) (object.ID, error) {
	if ref.IsSymbolic() {
		return object.ZeroID, nil
	}
	obj, err := r.GetObject(ctx, object.Of(ref.Target()))
	if err != nil {
		return object.ZeroID, err
	}
	tag, ok := obj.(*repository.Tag)
	if !ok {
		return object.ZeroID, nil
	}
	c, err := tag.Peel(ctx)
	if errors.Is(err, repository.ErrObjectTypeMismatch) {
		return object.ZeroID, nil
	}
	if err != nil {
		return object.ZeroID, err
	}
	return c.ID(), nil
}
