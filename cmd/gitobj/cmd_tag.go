package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/odvcencio/gitobj/pkg/refs"
	"github.com/spf13/cobra"
)

func newTagCmd(g *globalFlags) *cobra.Command {
	var (
		deleteTag string
		force     bool
		annotate  bool
		messages  []string
		tagger    string
	)

	cmd := &cobra.Command{
		Use:   "tag [name [target]]",
		Short: "List, create, or delete tags",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(cmd, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if strings.TrimSpace(deleteTag) != "" {
				if len(args) > 0 {
					return fmt.Errorf("tag --delete does not accept positional args")
				}
				if err := refs.ValidateShortName(deleteTag); err != nil {
					return fmt.Errorf("tag: %w", err)
				}
				return s.repo.DeleteReference(ctx, string(refs.TagName(deleteTag)))
			}

			if len(args) == 0 {
				tags, err := s.repo.Tags(ctx)
				if err != nil {
					return err
				}
				for _, t := range tags {
					fmt.Fprintln(out, t.Shorthand())
				}
				return nil
			}

			name := args[0]
			target := string(refs.HEAD)
			if len(args) == 2 {
				target = args[1]
			}
			targetID, err := resolveRev(ctx, s.repo, target)
			if err != nil {
				return fmt.Errorf("resolve %s: %w", target, err)
			}

			message := joinMessage(messages)
			if !annotate && message == "" {
				_, err := s.repo.CreateLightweightTag(ctx, name, object.Of(targetID), force)
				return err
			}
			if message == "" {
				return fmt.Errorf("annotated tags need a message (-m)")
			}
			if tagger == "" {
				tagger = defaultIdent()
			}
			sig, err := parseIdent(tagger, time.Now())
			if err != nil {
				return fmt.Errorf("tagger: %w", err)
			}
			t, err := s.repo.CreateTag(ctx, name, object.Of(targetID), sig, message, force)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, t.ID())
			return nil
		},
	}

	cmd.Flags().StringVarP(&deleteTag, "delete", "d", "", "delete the named tag")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "replace an existing tag")
	cmd.Flags().BoolVarP(&annotate, "annotate", "a", false, "create an annotated tag object")
	cmd.Flags().StringArrayVarP(&messages, "message", "m", nil, "tag message paragraph (implies -a)")
	cmd.Flags().StringVar(&tagger, "tagger", "", "tagger as \"Name <email>\" (default: $GITOBJ_AUTHOR or $USER)")

	return cmd
}
