package main

import (
	"fmt"
	"os"

	"github.com/birdie-ai/ormkit/domain"
	"github.com/birdie-ai/ormkit/obj"
	"github.com/birdie-ai/ormkit/recstore"
	"github.com/birdie-ai/ormkit/slog"
	"github.com/birdie-ai/ormkit/xjson"
	"github.com/spf13/cobra"
)

// record is a record to create, as read from stdin.
type record struct {
	Model  string `json:"model"`
	Values obj.O  `json:"values"`
}

func newSearchCmd() *cobra.Command {
	var (
		schemaPath string
		model      string
		rawDomain  string
		fields     []string
		opts       recstore.SearchOptions
		metrics    bool
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search records of a schema",
		Long: `Loads the models of a YAML schema, creates the records read from stdin in order
and prints the records of the model matching the domain.

Records are JSON objects like {"model": "partner", "values": {"name": "Azure"}}.
Relational fields take ids of records created before and x2many fields take
relational commands, like [[6,0,[1,2]]].

Example:
  ormkit search --schema models.yaml --model partner --domain '[["parent_id","child_of",1]]' --fields name`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := slog.FromCtx(ctx)
			d, err := domain.Parse([]byte(rawDomain))
			if err != nil {
				return err
			}

			f, err := os.Open(schemaPath)
			if err != nil {
				return err
			}
			models, err := recstore.LoadModels(f)
			_ = f.Close()
			if err != nil {
				return fmt.Errorf("loading %s: %w", schemaPath, err)
			}
			store := recstore.New(recstore.WithLogger(log))
			if err := store.Register(models...); err != nil {
				return err
			}

			dec := xjson.NewDecoder[record](cmd.InOrStdin())
			created := 0
			for rec := range dec.All() {
				if _, err := store.Create(ctx, rec.Model, rec.Values); err != nil {
					return fmt.Errorf("record %d: %w", created+1, err)
				}
				created++
			}
			if err := dec.Error(); err != nil {
				return fmt.Errorf("reading record %d: %w", created+1, err)
			}
			log.Debug("loaded records", "schema", schemaPath, "models", len(models), "records", created)

			recs, err := store.SearchRead(ctx, model, d, opts, fields...)
			if err != nil {
				return err
			}
			enc := xjson.NewEncoder[obj.O](cmd.OutOrStdout())
			for _, rec := range recs {
				if err := enc.Encode(rec); err != nil {
					return err
				}
			}
			if metrics {
				return writeMetrics(cmd.ErrOrStderr())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&schemaPath, "schema", "", "YAML file with the models")
	cmd.Flags().StringVar(&model, "model", "", "model searched")
	cmd.Flags().StringVar(&rawDomain, "domain", "[]", "domain in its JSON form")
	cmd.Flags().StringSliceVar(&fields, "fields", nil, "comma separated fields printed, all by default")
	cmd.Flags().StringVar(&opts.Order, "order", "", `order of the records, like "name desc, id"`)
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of records, 0 for all")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "number of matching records skipped")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "write the metrics to stderr when done")
	_ = cmd.MarkFlagRequired("schema")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}
