package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pulsewatch/internal/config"
	"pulsewatch/internal/db"
	"pulsewatch/internal/domain"
	"pulsewatch/internal/migrate"
	"pulsewatch/internal/repo"
	"pulsewatch/internal/scan"
	"pulsewatch/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "pw",
	Short: "Pulsewatch CLI",
	Long: `Pulsewatch watches tracked projects for signs of stalling.
It records chat and source-control activity, watches milestone due dates, and
runs a periodic risk sweep that flags quiet projects as at-risk.
- Workspace: the .pulsewatch directory holding the SQLite database.
- Project: something being tracked, with an optional GitHub repo and start date.
- Milestone: a dated commitment; past-due milestones dominate the risk decision.
- Activity log: deduplicated chat and GitHub events, the sweep's raw signal.
- Sweep: 'pw scan' or the HTTP triggers; only flips projects INTO at-risk.`,
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
	viper.SetEnvPrefix("PULSEWATCH")
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
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(milestoneCmd())
	rootCmd.AddCommand(activityCmd())
	rootCmd.AddCommand(adminCmd())
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default pulsewatch.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config")
	return cmd
}

func scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one risk sweep over all projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withScanner(cmd.Context(), func(ctx context.Context, s scan.Scanner) error {
				report, err := s.Run(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(report)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Project", "Final", "Repo Check", "Overdue", "Note"})
				for _, r := range report.Results {
					overdue := ""
					if r.MilestoneOverdueDays != nil {
						overdue = fmt.Sprintf("%dd", *r.MilestoneOverdueDays)
					}
					tw.AppendRow(table.Row{r.Name, r.Final, r.RepoCheck, overdue, r.Note})
				}
				tw.Render()
				fmt.Printf("Window since %s, %d projects\n", report.Since, len(report.Results))
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
		Short: "Start the HTTP trigger API",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			applyEnvOverrides(cfg)
			if cfg.Auth.ServiceToken == "" && cfg.Auth.CronSecret == "" {
				return fmt.Errorf("no auth secrets configured; set auth.service_token or auth.cron_secret in %s", config.Path(workspace))
			}
			handler, err := server.New(server.Config{
				Scanner:  scan.New(conn, cfg),
				Repo:     repo.Repo{DB: conn},
				BasePath: basePath,
				Auth: server.AuthConfig{
					ServiceToken: cfg.Auth.ServiceToken,
					CronSecret:   cfg.Auth.CronSecret,
				},
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
			fmt.Printf("Serving Pulsewatch API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage tracked projects"}
	prj.AddCommand(projectAddCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectShowCmd())
	return prj
}

func projectAddCmd() *cobra.Command {
	var id, name, repoURL, startDate string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				id = uuid.NewString()
			}
			p := domain.Project{
				ID:         id,
				Name:       name,
				Status:     domain.StatusActive,
				GithubRepo: optionalString(repoURL),
				CreatedAt:  time.Now().UTC().Format(time.RFC3339),
				StartDate:  optionalString(startDate),
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := r.InsertProject(ctx, p); err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "project id (random UUID if omitted)")
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&repoURL, "repo", "", "GitHub repo (URL or owner/name)")
	cmd.Flags().StringVar(&startDate, "start-date", "", "start date (RFC3339 or YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func projectListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListProjects(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Status", "Repo", "Start"})
				for _, p := range items {
					repoURL := ""
					if p.GithubRepo != nil {
						repoURL = *p.GithubRepo
					}
					start := ""
					if p.StartDate != nil {
						start = *p.StartDate
					}
					tw.AppendRow(table.Row{p.ID, p.Name, p.Status, repoURL, start})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a project with its milestones",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				p, err := r.GetProject(ctx, id)
				if err != nil {
					return err
				}
				milestones, err := r.ListMilestones(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{
					"project":    p,
					"milestones": milestones,
				})
			})
		},
	}
	return cmd
}

func milestoneCmd() *cobra.Command {
	ms := &cobra.Command{Use: "milestone", Short: "Manage milestones"}
	ms.AddCommand(milestoneAddCmd())
	ms.AddCommand(milestoneListCmd())
	return ms
}

func milestoneAddCmd() *cobra.Command {
	var id, projectID, title, due string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a milestone",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				id = uuid.NewString()
			}
			m := domain.Milestone{
				ID:        id,
				ProjectID: projectID,
				Title:     title,
				DueDate:   optionalString(due),
				Status:    "pending",
				CreatedAt: time.Now().UTC().Format(time.RFC3339),
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if _, err := r.GetProject(ctx, projectID); err != nil {
					return err
				}
				if err := r.InsertMilestone(ctx, m); err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "milestone id (random UUID if omitted)")
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&due, "due", "", "due date (RFC3339 or YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func milestoneListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <project-id>",
		Short: "List a project's milestones",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := args[0]
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListMilestones(ctx, projectID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Due", "Status"})
				for _, m := range items {
					due := ""
					if m.DueDate != nil {
						due = *m.DueDate
					}
					tw.AppendRow(table.Row{m.ID, m.Title, due, m.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func activityCmd() *cobra.Command {
	act := &cobra.Command{Use: "activity", Short: "Activity log"}
	act.AddCommand(activityTailCmd())
	return act
}

func activityTailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail <project-id>",
		Short: "Show recent activity log entries for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := args[0]
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				entries, err := r.ListActivity(ctx, projectID, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Time", "Source", "Type", "Title", "URL"})
				for _, e := range entries {
					title := ""
					if e.Title != nil {
						title = *e.Title
					}
					url := ""
					if e.URL != nil {
						url = *e.URL
					}
					tw.AppendRow(table.Row{e.Timestamp, e.Source, e.ActivityType, title, url})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of entries")
	return cmd
}

func adminCmd() *cobra.Command {
	adm := &cobra.Command{Use: "admin", Short: "Maintenance commands"}
	adm.AddCommand(adminWipeCmd())
	adm.AddCommand(adminFixStatusCmd())
	return adm
}

func adminWipeCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete all projects, milestones, and activity logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("refusing to wipe without --force")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				before, err := r.Counts(ctx)
				if err != nil {
					return err
				}
				if err := r.WipeAll(ctx); err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"deleted": before})
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "confirm the wipe")
	return cmd
}

func adminFixStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fix-status",
		Short: "Migrate legacy too_new project statuses to active",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				fixed, err := r.FixLegacyStatus(ctx)
				if err != nil {
					return err
				}
				if len(fixed) == 0 {
					fmt.Println("no legacy statuses found")
					return nil
				}
				return printJSONOrTable(fixed)
			})
		},
	}
	return cmd
}

// --- helpers ---

// applyEnvOverrides lets secrets come from the environment instead of the
// config file.
func applyEnvOverrides(cfg *config.Config) {
	if v := os.Getenv("PULSEWATCH_SERVICE_TOKEN"); v != "" {
		cfg.Auth.ServiceToken = v
	}
	if v := os.Getenv("PULSEWATCH_CRON_SECRET"); v != "" {
		cfg.Auth.CronSecret = v
	}
	if cfg.Github.Token == "" {
		cfg.Github.Token = os.Getenv("GITHUB_TOKEN")
	}
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func withScanner(ctx context.Context, fn func(context.Context, scan.Scanner) error) error {
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
	applyEnvOverrides(cfg)
	return fn(ctx, scan.New(conn, cfg))
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
