package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"safemap/internal/model"
	"safemap/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import <reports.json>",
	Short: "Bulk load reports into the configured store",
	Long: `Load a JSON array of reports into the store selected by DATABASE_URL
(postgres:// or sqlite://). Use "-" to read from stdin. Reports whose id
already exists are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func readReports(r io.Reader) ([]model.Report, error) {
	var reports []model.Report
	if err := json.NewDecoder(r).Decode(&reports); err != nil {
		return nil, fmt.Errorf("decode reports: %w", err)
	}
	for i, rep := range reports {
		if rep.Status == "" {
			reports[i].Status = model.StatusSubmitted
		}
	}
	return reports, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Store.DSN == "" {
		return errors.New("DATABASE_URL (or store.dsn) must point at a persistent store")
	}
	in := cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		in = f
	}
	reports, err := readReports(in)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	w, ok := st.(store.ReportWriter)
	if !ok {
		return fmt.Errorf("store %T does not accept imports", st)
	}
	n, err := w.InsertReports(ctx, reports)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d of %d reports\n", n, len(reports))
	return nil
}
