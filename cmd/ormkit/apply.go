package main

import (
	"fmt"

	"github.com/birdie-ai/ormkit/docchild"
	"github.com/birdie-ai/ormkit/obj"
	"github.com/birdie-ai/ormkit/relcmd"
	"github.com/birdie-ai/ormkit/slog"
	"github.com/birdie-ai/ormkit/xjson"
	"github.com/spf13/cobra"
	"gocloud.dev/docstore/memdocstore"
)

type applyResult struct {
	Links    []relcmd.ID `json:"links"`
	Children []obj.O     `json:"children"`
}

func newApplyCmd() *cobra.Command {
	var (
		rawCommands string
		current     []int64
	)
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply relational commands to a set of links",
		Long: `Reads the children as a stream of JSON objects with an "id" from stdin, applies
the commands to the current links and prints the resulting links and children.
Nothing is changed if any command fails.

Example:
  echo '{"id":1,"name":"a"}' | ormkit apply --current 1 --commands '[[0,0,{"name":"b"}],[3,1]]'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cmds, err := relcmd.Parse([]byte(rawCommands))
			if err != nil {
				return err
			}

			coll, err := memdocstore.OpenCollection(docchild.DefaultKeyField, nil)
			if err != nil {
				return err
			}
			defer func() { _ = coll.Close() }()
			store := docchild.New(coll)

			dec := xjson.NewDecoder[obj.O](cmd.InOrStdin())
			for doc := range dec.All() {
				if err := store.Put(ctx, doc); err != nil {
					return err
				}
			}
			if err := dec.Error(); err != nil {
				return fmt.Errorf("reading children: %w", err)
			}

			links, err := relcmd.Apply(ctx, cmds, current, store)
			if err != nil {
				return err
			}
			children, err := store.All(ctx)
			if err != nil {
				return err
			}
			if children == nil {
				children = []obj.O{}
			}
			slog.FromCtx(ctx).Debug("applied commands", "commands", len(cmds), "links", links)
			return xjson.NewEncoder[applyResult](cmd.OutOrStdout()).Encode(applyResult{Links: links, Children: children})
		},
	}
	cmd.Flags().StringVar(&rawCommands, "commands", "[]", "commands in their JSON form, like [[4,1],[3,2]]")
	cmd.Flags().Int64SliceVar(&current, "current", nil, "comma separated ids currently linked")
	return cmd
}
