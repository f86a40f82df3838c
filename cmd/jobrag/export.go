package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	domcorpus "github.com/kailas-cloud/jobrag/internal/domain/corpus"
	"github.com/kailas-cloud/jobrag/internal/export"
)

var (
	exportTenants  []string
	exportType     string
	exportOut      string
	exportVectors  bool
	exportRowGroup int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write tenant corpora as a parquet file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		types := domcorpus.Types
		if exportType != "all" {
			t, err := domcorpus.ParseType(exportType)
			if err != nil {
				return err
			}
			types = []domcorpus.Type{t}
		}

		return runWithApp(cmd, func(ctx context.Context, a *app) error {
			var snaps []*domcorpus.Snapshot
			for _, tenant := range exportTenants {
				for _, t := range types {
					snap, err := a.corpus.All(ctx, tenant, t)
					if err != nil {
						return fmt.Errorf("load %s corpus of %s: %w", t, tenant, err)
					}
					snaps = append(snaps, snap)
				}
			}

			var w io.Writer = cmd.OutOrStdout()
			if exportOut != "-" {
				f, err := os.Create(filepath.Clean(exportOut))
				if err != nil {
					return fmt.Errorf("create %s: %w", exportOut, err)
				}
				defer f.Close()
				w = f
			}

			n, err := export.Write(w, snaps, export.Options{
				IncludeVectors: exportVectors,
				RowGroupSize:   exportRowGroup,
			})
			if err != nil {
				return err
			}
			a.logger.Info("Corpora exported",
				zap.Strings("tenants", exportTenants),
				zap.String("corpus_type", exportType),
				zap.Int("rows", n),
				zap.String("out", exportOut),
			)
			return nil
		})
	},
}

func init() {
	exportCmd.Flags().StringSliceVarP(&exportTenants, "tenant", "t", nil, "tenant id (repeatable)")
	exportCmd.Flags().StringVar(&exportType, "type", "all", "corpus type: job, resume or all")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "corpora.parquet", "output file, - for stdout")
	exportCmd.Flags().BoolVar(&exportVectors, "vectors", false, "include embedding vectors")
	exportCmd.Flags().IntVar(&exportRowGroup, "row-group", 0, "rows per row group, 0 for one group per file")
	_ = exportCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(exportCmd)
}
