package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/odvcencio/gitobj/pkg/repository"
	"github.com/spf13/cobra"
)

func newCommitTreeCmd(g *globalFlags) *cobra.Command {
	var (
		parents   []string
		messages  []string
		updateRef string
		author    string
		committer string
		encoding  string
		sign      bool
		keyPath   string
	)

	cmd := &cobra.Command{
		Use:   "commit-tree <tree>",
		Short: "Create a commit object for a tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := joinMessage(messages)
			if message == "" {
				return fmt.Errorf("commit message is required (-m)")
			}
			now := time.Now()
			if author == "" {
				author = defaultIdent()
			}
			authorSig, err := parseIdent(author, now)
			if err != nil {
				return fmt.Errorf("author: %w", err)
			}
			committerSig := authorSig
			if committer != "" {
				if committerSig, err = parseIdent(committer, now); err != nil {
					return fmt.Errorf("committer: %w", err)
				}
			}

			var opts []repository.CommitOption
			if encoding != "" {
				opts = append(opts, repository.WithEncoding(encoding))
			}
			if sign {
				signer, _, err := sshSigner(keyPath)
				if err != nil {
					return err
				}
				opts = append(opts, repository.WithSigner(signer))
			}

			s, err := g.open(cmd, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := cmd.Context()

			treeID, err := resolveRev(ctx, s.repo, args[0])
			if err != nil {
				return err
			}
			parentIDs := make([]object.IDLike, 0, len(parents))
			for _, p := range parents {
				c, err := resolveCommit(ctx, s.repo, p)
				if err != nil {
					return fmt.Errorf("parent %s: %w", p, err)
				}
				parentIDs = append(parentIDs, object.Handle(c))
			}

			id, err := s.repo.CreateCommit(ctx, updateRef, authorSig, committerSig, message, object.Of(treeID), parentIDs, opts...)
			var refErr *repository.RefUpdateError
			if errors.As(err, &refErr) {
				fmt.Fprintln(cmd.OutOrStdout(), refErr.Commit)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&parents, "parent", "p", nil, "parent commit (repeatable, order is kept)")
	cmd.Flags().StringArrayVarP(&messages, "message", "m", nil, "message paragraph (repeatable)")
	cmd.Flags().StringVar(&updateRef, "update-ref", "", "reference to advance to the new commit")
	cmd.Flags().StringVar(&author, "author", "", "author as \"Name <email>\" (default: $GITOBJ_AUTHOR or $USER)")
	cmd.Flags().StringVar(&committer, "committer", "", "committer as \"Name <email>\" (default: the author)")
	cmd.Flags().StringVar(&encoding, "encoding", "", "message encoding header")
	cmd.Flags().BoolVarP(&sign, "sign", "S", false, "sign the commit with an SSH key")
	cmd.Flags().StringVar(&keyPath, "key", "", "SSH private key for --sign (default: ~/.ssh/id_ed25519, id_ecdsa, id_rsa)")

	return cmd
}

func newVerifyCommitCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "verify-commit <rev>",
		Short: "Check the SSH signature on a commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(cmd, nil)
			if err != nil {
				return err
			}
			defer s.Close()

			c, err := resolveCommit(cmd.Context(), s.repo, args[0])
			if err != nil {
				return err
			}
			armor := c.SignatureArmor()
			if armor == "" {
				return fmt.Errorf("commit %s is not signed", c.ID().Short(8))
			}
			pub, err := verifySSHSignature(armor, object.CommitSigningPayload(c.Object()))
			if err != nil {
				return fmt.Errorf("commit %s: bad signature: %w", c.ID().Short(8), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "good %s signature on %s\n", pub.Type(), c.ID())
			return nil
		},
	}
}
