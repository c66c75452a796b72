package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"clinic_inventory_backend/internal/database"
	"clinic_inventory_backend/internal/ledger"
	"clinic_inventory_backend/internal/services"
	"clinic_inventory_backend/pkg/utils"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
		utils.LogInfo("Schema is up to date", map[string]interface{}{"driver": cfg.Database.Driver})
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed [catalogue.csv]",
	Short: "Register items from a CSV catalogue",
	Long: `Register every row of a CSV catalogue as an item with its ledger starting at
the origin. The header must name the columns name, unit and category;
expiry_date (YYYY-MM-DD) and opening_stock are optional. Items that already
exist are skipped.`,
	Example: `  clinic-inventory seed ./catalogue.csv`,
	Args:    cobra.ExactArgs(1),
	RunE:    runSeed,
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect and repair the monthly ledger",
}

var ledgerVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check balance identity and month-to-month continuity for every item",
	Args:  cobra.NoArgs,
	RunE:  runLedgerVerify,
}

var ledgerCascadeCmd = &cobra.Command{
	Use:   "cascade [item-id]",
	Short: "Re-run the roll-forward from the item's first month",
	Args:  cobra.ExactArgs(1),
	RunE:  runLedgerCascade,
}

var ledgerRebuildCmd = &cobra.Command{
	Use:   "rebuild [item-id]",
	Short: "Recompute every stored month of an item",
	Args:  cobra.ExactArgs(1),
	RunE:  runLedgerRebuild,
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage sqlite database backups",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Write a manual backup now",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
		file, err := a.services.Backups.Create(ctx, services.BackupKindManual)
		if err != nil {
			return err
		}
		fmt.Printf("%s (%d bytes)\n", file.Name, file.Size)
		return nil
	}),
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backups, newest first",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
		files, err := a.services.Backups.List(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tKIND\tSIZE\tCREATED")
		for _, f := range files {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", f.Name, f.Kind, f.Size, f.CreatedAt.Format(time.RFC3339))
		}
		return w.Flush()
	}),
}

var backupCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete automatic backups beyond the newest --keep",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
		keep, _ := cmd.Flags().GetInt("keep")
		if keep <= 0 {
			keep = cfg.Backup.Keep
		}
		removed, err := a.services.Backups.CleanOld(ctx, keep)
		if err != nil {
			return err
		}
		fmt.Printf("removed %d backup(s)\n", removed)
		return nil
	}),
}

var restoreCmd = &cobra.Command{
	Use:   "restore [backup-name]",
	Short: "Replace the sqlite database with a backup",
	Long: `Copy a backup from BACKUP_DIR over SQLITE_PATH. Stop the server first. The
current database is kept aside and put back if the copy fails.`,
	Example: `  clinic-inventory restore Manualbackup_Mar_01_2025_093000.db`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		backups := a.services.Backups
		// release the file before it is overwritten
		a.Close()
		if err := backups.Restore(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("restored %s\n", args[0])
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Monthly inventory reports",
}

var reportExportCmd = &cobra.Command{
	Use:     "export",
	Short:   "Write the monthly report as an XLSX workbook",
	Example: `  clinic-inventory report export --year 2025 --month 1 --out ./reports`,
	Args:    cobra.NoArgs,
	RunE:    runReportExport,
}

func init() {
	rootCmd.AddCommand(migrateCmd, seedCmd, ledgerCmd, backupCmd, restoreCmd, reportCmd)
	ledgerCmd.AddCommand(ledgerVerifyCmd, ledgerCascadeCmd, ledgerRebuildCmd)
	backupCmd.AddCommand(backupCreateCmd, backupListCmd, backupCleanCmd)
	reportCmd.AddCommand(reportExportCmd)

	ledgerRebuildCmd.Flags().Bool("sync-stock", false, "Also set current_stock to the latest balance")
	backupCleanCmd.Flags().Int("keep", 0, "Automatic backups to keep (default: BACKUP_KEEP)")

	now := time.Now()
	reportExportCmd.Flags().Int("year", now.Year(), "Report year")
	reportExportCmd.Flags().Int("month", int(now.Month()), "Report month (1-12)")
	reportExportCmd.Flags().StringP("out", "o", ".", "Output directory or .xlsx file path")
}

// withApp opens the application around a command body.
func withApp(run func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(ctx, a, cmd, args)
	}
}

func parseItemID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid item id %q", raw)
	}
	return id, nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening catalogue: %w", err)
	}
	defer f.Close()

	return withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
		result, err := services.ImportCatalogue(ctx, a.services.Ledger, f)
		if err != nil {
			return err
		}
		for _, msg := range result.Errors {
			fmt.Fprintln(os.Stderr, msg)
		}
		fmt.Printf("created %d, skipped %d, rejected %d\n", result.Created, result.Skipped, len(result.Errors))
		return nil
	})(cmd, args)
}

func runLedgerVerify(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
		results, err := a.services.Ledger.Verify(ctx)
		if err != nil {
			return err
		}
		broken := 0
		for _, r := range results {
			if len(r.Violations) == 0 {
				continue
			}
			broken++
			for _, v := range r.Violations {
				fmt.Printf("item %d: %s\n", r.ItemID, v)
			}
		}
		fmt.Printf("checked %d item(s), %d with violations\n", len(results), broken)
		if broken > 0 {
			return errors.New("ledger verification failed")
		}
		return nil
	})(cmd, args)
}

func runLedgerCascade(cmd *cobra.Command, args []string) error {
	id, err := parseItemID(args[0])
	if err != nil {
		return err
	}
	return withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
		entries, err := a.services.Ledger.ItemLedger(ctx, id)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return fmt.Errorf("item %d has no ledger entries", id)
		}
		first := entries[0]
		updated, err := a.services.Ledger.CascadeForward(ctx, id, first.Year, first.Month)
		if err != nil {
			return err
		}
		fmt.Printf("cascaded item %d from %s, %d month(s) updated\n", id, ledger.Period{Year: first.Year, Month: first.Month}, updated)
		return nil
	})(cmd, args)
}

func runLedgerRebuild(cmd *cobra.Command, args []string) error {
	id, err := parseItemID(args[0])
	if err != nil {
		return err
	}
	syncStock, _ := cmd.Flags().GetBool("sync-stock")
	return withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
		updated, err := a.services.Ledger.Rebuild(ctx, id, syncStock)
		if err != nil {
			return err
		}
		fmt.Printf("rebuilt item %d, %d month(s) updated\n", id, updated)
		return nil
	})(cmd, args)
}

func runReportExport(cmd *cobra.Command, args []string) error {
	year, _ := cmd.Flags().GetInt("year")
	month, _ := cmd.Flags().GetInt("month")
	out, _ := cmd.Flags().GetString("out")

	return withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
		report, err := a.services.Reports.MonthlyReport(ctx, year, month)
		if err != nil {
			return err
		}
		path := out
		if info, err := os.Stat(out); err == nil && info.IsDir() {
			path = out + string(os.PathSeparator) + services.ReportFilename(year, month)
		}
		if err := services.SaveMonthlyReport(report, path); err != nil {
			return err
		}
		if report.Unreconciled > 0 {
			utils.LogInfo("Report has rows whose stored issuance differs from transactions",
				map[string]interface{}{"unreconciled": report.Unreconciled})
		}
		fmt.Println(path)
		return nil
	})(cmd, args)
}
