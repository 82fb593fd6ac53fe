package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ceylonhomes/valuation-api/internal/export"
)

var (
	exportUser  string
	exportOut   string
	exportLimit int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a user's analysis history to an XLSX workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		rows, err := export.FromStore(ctx, st, exportUser, exportLimit)
		if err != nil {
			return err
		}

		if err := export.WriteHistory(exportOut, rows); err != nil {
			return err
		}

		zap.L().Info("history exported",
			zap.String("user", exportUser),
			zap.Int("rows", len(rows)),
			zap.String("path", exportOut),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportUser, "user", "", "user ID to export (required)")
	exportCmd.Flags().StringVar(&exportOut, "out", "history.xlsx", "output workbook path")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 100, "maximum history rows")
	_ = exportCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(exportCmd)
}
