package main

import (
	"fmt"
	"io"
	"os"

	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/spf13/cobra"
)

func newHashObjectCmd(g *globalFlags) *cobra.Command {
	var write, stdin bool

	cmd := &cobra.Command{
		Use:   "hash-object [file]",
		Short: "Compute a blob id and optionally store the blob",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if stdin == (len(args) == 1) {
				return fmt.Errorf("give exactly one of a file or --stdin")
			}

			var (
				data []byte
				err  error
			)
			if stdin {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			id := object.HashObject(object.TypeBlob, data)
			if write {
				s, err := g.open(cmd, nil)
				if err != nil {
					return err
				}
				defer s.Close()
				if id, err = s.repo.CreateBlobFromBuffer(cmd.Context(), data); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&write, "write", "w", false, "store the blob in the repository")
	cmd.Flags().BoolVar(&stdin, "stdin", false, "read the content from standard input")

	return cmd
}
