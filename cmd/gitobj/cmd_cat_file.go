package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/odvcencio/gitobj/internal/view"
	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/odvcencio/gitobj/pkg/repository"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newCatFileCmd(g *globalFlags) *cobra.Command {
	var showType, showSize, pretty bool
	var format string

	cmd := &cobra.Command{
		Use:   "cat-file <rev>",
		Short: "Print the type, size or content of an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			modes := 0
			for _, set := range []bool{showType, showSize, pretty} {
				if set {
					modes++
				}
			}
			if modes > 1 {
				return fmt.Errorf("-t, -s and -p are mutually exclusive")
			}
			switch format {
			case "text", "json", "yaml":
			default:
				return fmt.Errorf("unknown format %q, want text, json or yaml", format)
			}

			s, err := g.open(cmd, nil)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			id, err := resolveRev(ctx, s.repo, args[0])
			if err != nil {
				return err
			}
			obj, err := s.repo.GetObject(ctx, object.Of(id))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case showType:
				fmt.Fprintln(out, obj.Type())
				return nil
			case showSize:
				fmt.Fprintln(out, len(encodeObject(obj)))
				return nil
			}
			if format != "text" {
				return render(out, format, renderObject(obj))
			}
			return printObject(out, obj)
		},
	}

	cmd.Flags().BoolVarP(&showType, "type", "t", false, "print the object type")
	cmd.Flags().BoolVarP(&showSize, "size", "s", false, "print the object size")
	cmd.Flags().BoolVarP(&pretty, "pretty", "p", false, "pretty-print the object content (default)")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text, json or yaml")

	return cmd
}

// encodeObject returns the canonical encoding of obj, the bytes its id hashes.
func encodeObject(obj repository.Object) []byte {
	switch o := obj.(type) {
	case *repository.Commit:
		return object.MarshalCommit(o.Object())
	case *repository.Tree:
		return object.MarshalTree(&object.Tree{Entries: o.Entries()})
	case *repository.Blob:
		return o.Content()
	case *repository.Tag:
		return object.MarshalTag(tagObject(o))
	default:
		return nil
	}
}

func tagObject(t *repository.Tag) *object.Tag {
	return &object.Tag{
		Target:     t.TargetID(),
		TargetType: t.TargetType(),
		Name:       t.Name(),
		Tagger:     t.Tagger(),
		Message:    t.Message(),
	}
}

func printObject(w io.Writer, obj repository.Object) error {
	if t, ok := obj.(*repository.Tree); ok {
		for _, e := range t.Entries() {
			fmt.Fprintf(w, "%06o %s %s\t%s\n", uint32(e.Mode), e.Mode.ObjectType(), e.ID, e.Name)
		}
		return nil
	}
	_, err := w.Write(encodeObject(obj))
	return err
}

func renderObject(obj repository.Object) interface{} {
	switch o := obj.(type) {
	case *repository.Commit:
		return view.FromCommit(o)
	case *repository.Tree:
		return view.FromTree(o)
	case *repository.Blob:
		return view.FromBlob(o)
	case *repository.Tag:
		return view.FromTag(o)
	default:
		return nil
	}
}

func render(w io.Writer, format string, v interface{}) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
