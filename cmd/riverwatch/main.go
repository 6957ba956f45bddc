package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"riverwatch/internal/config"
	"riverwatch/internal/db"
	"riverwatch/internal/engine"
	"riverwatch/internal/engine/gate"
	"riverwatch/internal/metrics"
	"riverwatch/internal/migrate"
	"riverwatch/internal/repo"
	"riverwatch/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "riverwatch",
	Short: "Riverwatch CLI",
	Long: `Riverwatch collects citizen reports of river pollution.
Reports carry a location, a type and a severity; other citizens confirm
sightings, and admins triage them through pending -> in_progress ->
completed with a full audit trail of every admin action.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	_ = godotenv.Load()
	if ws := viper.GetString("workspace"); ws != "" && ws != "." {
		_ = godotenv.Load(filepath.Join(ws, ".env"))
	}
	viper.SetEnvPrefix("RIVERWATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(logsCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(serveCmd())
}

func reportCmd() *cobra.Command {
	rep := &cobra.Command{Use: "report", Short: "Manage pollution reports"}
	rep.AddCommand(reportListCmd())
	rep.AddCommand(reportShowCmd())
	rep.AddCommand(reportDeleteCmd())
	rep.AddCommand(reportExportCmd())
	return rep
}

func reportListCmd() *cobra.Command {
	var f repo.ReportFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				reports, err := e.ListReports(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(reports)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Type", "Severity", "Status", "Confirmations", "Created"})
				for _, r := range reports {
					tw.AppendRow(table.Row{r.ID, r.Title, r.ReportType, r.Severity, r.Status, r.ConfirmationsCount, r.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter (pending, in_progress, completed)")
	cmd.Flags().StringVar(&f.ReportType, "type", "", "type filter (plastic, waste, hazardous, other)")
	cmd.Flags().StringVar(&f.Severity, "severity", "", "severity filter (low, medium, high)")
	cmd.Flags().StringVar(&f.CreatedAfter, "start-date", "", "only reports created at or after (RFC3339)")
	cmd.Flags().StringVar(&f.CreatedBefore, "end-date", "", "only reports created at or before (RFC3339)")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max rows")
	return cmd
}

func reportShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a report with its audit entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				r, err := e.GetReport(ctx, args[0])
				if err != nil {
					return err
				}
				logs, err := e.Repo.ListAdminLogs(ctx, repo.AdminLogFilters{ReportID: r.ID})
				if err != nil {
					return err
				}
				return printJSON(map[string]any{"report": r, "logs": logs})
			})
		},
	}
	return cmd
}

func reportDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteReport(ctx, args[0])
			})
		},
	}
	return cmd
}

func reportExportCmd() *cobra.Command {
	var f repo.ReportFilters
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export reports as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				reports, err := e.ListReports(ctx, f)
				if err != nil {
					return err
				}
				tw := table.NewWriter()
				tw.AppendHeader(table.Row{"id", "title", "description", "latitude", "longitude", "address", "report_type", "severity", "status", "confirmations_count", "is_anonymous", "created_at"})
				for _, r := range reports {
					lat, lng := "", ""
					if r.Latitude != nil {
						lat = fmt.Sprintf("%v", *r.Latitude)
					}
					if r.Longitude != nil {
						lng = fmt.Sprintf("%v", *r.Longitude)
					}
					tw.AppendRow(table.Row{r.ID, r.Title, r.Description, lat, lng, r.Address, r.ReportType, r.Severity, r.Status, r.ConfirmationsCount, r.IsAnonymous, r.CreatedAt})
				}
				csv := tw.RenderCSV()
				if out == "" {
					fmt.Println(csv)
					return nil
				}
				return os.WriteFile(out, []byte(csv+"\n"), 0o644)
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.ReportType, "type", "", "type filter")
	cmd.Flags().StringVar(&f.Severity, "severity", "", "severity filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max rows")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write CSV to file instead of stdout")
	return cmd
}

func logsCmd() *cobra.Command {
	logs := &cobra.Command{Use: "logs", Short: "Inspect the admin audit trail"}
	logs.AddCommand(logsTailCmd())
	return logs
}

func logsTailCmd() *cobra.Command {
	var n int
	var reportID, action string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show recent audit entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entries, err := e.Repo.ListAdminLogs(ctx, repo.AdminLogFilters{
					ReportID: reportID,
					Action:   action,
					Limit:    n,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Time", "Action", "Report", "Admin", "Details"})
				for _, l := range entries {
					tw.AppendRow(table.Row{l.CreatedAt, l.Action, l.ReportID, l.AdminUser, l.DetailsJSON})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&n, "lines", "n", 20, "number of entries")
	cmd.Flags().StringVar(&reportID, "report-id", "", "filter by report")
	cmd.Flags().StringVar(&action, "action", "", "filter by action")
	return cmd
}

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Aggregate report counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				stats, err := e.Stats(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(stats)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Metric", "Count"})
				tw.AppendRow(table.Row{"reports", stats.TotalReports})
				tw.AppendRow(table.Row{"confirmations", stats.TotalConfirmations})
				for k, v := range stats.ByStatus {
					tw.AppendRow(table.Row{"status:" + k, v})
				}
				for k, v := range stats.BySeverity {
					tw.AppendRow(table.Row{"severity:" + k, v})
				}
				for k, v := range stats.ByType {
					tw.AppendRow(table.Row{"type:" + k, v})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if basePath == "" {
				basePath = cfg.Server.BasePath
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			g, err := gate.New(os.Getenv("ADMIN_PASSWORD"), os.Getenv("RIVERWATCH_SESSION_SECRET"))
			if err != nil {
				return err
			}
			reg := prometheus.NewRegistry()
			e := engine.New(conn, cfg)
			e.Metrics = metrics.New(reg)
			handler, err := server.New(server.Config{
				Engine:   e,
				Gate:     g,
				BasePath: basePath,
				Registry: reg,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Riverwatch API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path")
	return cmd
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	return fn(ctx, engine.New(conn, cfg))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
