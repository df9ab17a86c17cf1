package cli

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"kimbiofarm-backend/internal/audit"
	"kimbiofarm-backend/internal/config"
	"kimbiofarm-backend/internal/database"
	"kimbiofarm-backend/internal/spreadsheet"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var cliActor = audit.Actor{UserName: "cli"}

func newImportCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import plants and receipts from an xlsx file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("file")

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			db, err := database.Open(cfg)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer database.Close(db)

			report, err := spreadsheet.NewImporter(db).Import(cmd.Context(), f, cliActor)
			if err != nil {
				return fmt.Errorf("import %s: %w", path, err)
			}

			log.Info().
				Str("sheet", report.Sheet).
				Int("created", report.Created).
				Int("updated", report.Updated).
				Int("receipts", report.Receipts).
				Int("duplicates", report.Duplicates).
				Int("skipped", report.Skipped).
				Msg("import finished")
			for _, w := range report.Warnings {
				log.Warn().Msg(w)
			}
			return nil
		},
	}
	cmd.Flags().String("file", "", "xlsx file to import")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newExportCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all receipts to an xlsx file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				out = "NhapKho_" + time.Now().Format("20060102_150405") + ".xlsx"
			}

			db, err := database.Open(cfg)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer database.Close(db)

			var buf bytes.Buffer
			n, err := spreadsheet.ExportReceipts(cmd.Context(), db, &buf)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return err
			}
			log.Info().Int("rows", n).Str("file", out).Msg("export finished")
			return nil
		},
	}
	cmd.Flags().String("out", "", "output file (default NhapKho_<timestamp>.xlsx)")
	return cmd
}

func newReconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Merge a price list and a stock list into one import-ready workbook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pricesPath, _ := cmd.Flags().GetString("prices")
			stockPath, _ := cmd.Flags().GetString("stock")
			out, _ := cmd.Flags().GetString("out")

			now := time.Now()
			if out == "" {
				out = "DuLieuTongHop_" + now.Format("20060102_150405") + ".xlsx"
			}

			m := spreadsheet.NewMatcher(spreadsheet.DefaultRules)

			pf, err := os.Open(pricesPath)
			if err != nil {
				return err
			}
			defer pf.Close()
			prices, err := spreadsheet.ReadPriceList(pf, m)
			if err != nil {
				return fmt.Errorf("price list: %w", err)
			}

			sf, err := os.Open(stockPath)
			if err != nil {
				return err
			}
			defer sf.Close()
			stock, err := spreadsheet.ReadStockList(sf, m)
			if err != nil {
				return fmt.Errorf("stock list: %w", err)
			}

			res := spreadsheet.Reconcile(prices, stock, now)

			var buf bytes.Buffer
			if err := spreadsheet.WriteReconcile(&buf, res.Rows); err != nil {
				return err
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return err
			}
			log.Info().
				Int("rows", len(res.Rows)).
				Int("matched", res.Matched).
				Int("unmatched", res.Unmatched).
				Str("file", out).
				Msg("reconcile finished")
			return nil
		},
	}
	cmd.Flags().String("prices", "", "price list xlsx")
	cmd.Flags().String("stock", "", "stock list xlsx")
	cmd.Flags().String("out", "", "output file (default DuLieuTongHop_<timestamp>.xlsx)")
	_ = cmd.MarkFlagRequired("prices")
	_ = cmd.MarkFlagRequired("stock")
	return cmd
}
