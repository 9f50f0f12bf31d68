package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "gitobj",
		Short:         "Read and write git objects and references",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.repo, "repo", "C", "", "repository path (overrides config)")
	pf.StringVar(&g.backend, "backend", "", "storage backend: loose, gogit, sqlite or memory")
	pf.StringVar(&g.config, "config", "gitobj.toml", "config file; a missing file means defaults")
	pf.StringVar(&g.logLevel, "log-level", "", "log level (overrides config)")
	pf.StringVar(&g.logFormat, "log-format", "", "log format: text or json")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(g))
	root.AddCommand(newCatFileCmd(g))
	root.AddCommand(newHashObjectCmd(g))
	root.AddCommand(newShowRefCmd(g))
	root.AddCommand(newBranchCmd(g))
	root.AddCommand(newMktreeCmd(g))
	root.AddCommand(newCommitTreeCmd(g))
	root.AddCommand(newVerifyCommitCmd(g))
	root.AddCommand(newLogCmd(g))
	root.AddCommand(newReflogCmd(g))
	root.AddCommand(newTagCmd(g))
	root.AddCommand(newServeCmd(g))
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gitobj %s\n", version)
		},
	}
}
