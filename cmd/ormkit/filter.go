package main

import (
	"fmt"

	"github.com/birdie-ai/ormkit/domain"
	"github.com/birdie-ai/ormkit/obj"
	"github.com/birdie-ai/ormkit/slog"
	"github.com/birdie-ai/ormkit/xjson"
	"github.com/spf13/cobra"
)

func newFilterCmd() *cobra.Command {
	var (
		rawDomain string
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Print the records from stdin matching a domain",
		Long: `Reads a stream of JSON objects from stdin and prints the ones matching the domain.
Dotted field paths traverse nested objects and lists of objects.

Example:
  ormkit filter --domain '["|",["customer","=",true],["country.code","in",["US","UK"]]]'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := domain.Parse([]byte(rawDomain))
			if err != nil {
				return err
			}
			p, err := domain.Compile(d)
			if err != nil {
				return err
			}

			var (
				dec     = xjson.NewDecoder[obj.O](cmd.InOrStdin())
				enc     = xjson.NewEncoder[obj.O](cmd.OutOrStdout())
				read    int
				matched int
			)
			for rec := range dec.All() {
				read++
				ok, err := p.Match(rec, domain.ObjResolver{})
				if err != nil {
					return fmt.Errorf("record %d: %w", read, err)
				}
				if !ok {
					continue
				}
				if err := enc.Encode(rec); err != nil {
					return err
				}
				matched++
				if limit > 0 && matched == limit {
					break
				}
			}
			if err := dec.Error(); err != nil {
				return fmt.Errorf("reading record %d: %w", read+1, err)
			}
			slog.FromCtx(cmd.Context()).Debug("filtered records", "domain", d.String(), "read", read, "matched", matched)
			return nil
		},
	}
	cmd.Flags().StringVar(&rawDomain, "domain", "[]", "domain in its JSON form")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of records printed, 0 for all")
	return cmd
}
