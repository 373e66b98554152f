package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"taskboard/internal/app"
	"taskboard/internal/config"
	"taskboard/internal/domain"
	"taskboard/internal/engine"
	"taskboard/internal/events"
	"taskboard/internal/logging"
	"taskboard/internal/query"
	"taskboard/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "tb",
	Short: "Taskboard CLI",
	Long: `Taskboard is a role-gated project and task dashboard seeded from the dummyjson demo API.
- Projects and tasks are hydrated from GET /todos on every start and live in memory.
- Roles (admin, manager, employee) decide who may create, edit, assign, comment or clear the log.
- Every change lands in the activity log; the SQLite journal keeps an audit copy ('tb log tail').
- 'tb serve' exposes the HTTP API with bearer auth; the other commands read a freshly hydrated store.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TASKBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory")
	flags.String("config", "", "config file (default <workspace>/taskboard.yml)")
	flags.Bool("json", false, "output JSON")
	flags.String("role", string(domain.RoleAdmin), "role for local commands (admin, manager, employee)")
	flags.Int64("user-id", 1, "user id for local commands")
	flags.String("user-name", "Local User", "user name for local commands")
	flags.String("log-level", "", "log level override")
	for _, name := range []string{"workspace", "config", "json", "role", "user-id", "user-name", "log-level"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(projectsCmd())
	rootCmd.AddCommand(tasksCmd())
	rootCmd.AddCommand(usersCmd())
	rootCmd.AddCommand(rolesCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(cacheCmd())
	rootCmd.AddCommand(configCmd())
}

func projectsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "projects", Short: "Browse projects"}
	cmd.AddCommand(projectListCmd())
	cmd.AddCommand(projectShowCmd())
	return cmd
}

func addListFlags(cmd *cobra.Command, opts *listFlags) {
	cmd.Flags().StringVar(&opts.search, "search", "", "match title or description")
	cmd.Flags().StringVar(&opts.status, "status", query.StatusAll, "status filter")
	cmd.Flags().StringVar(&opts.sort, "sort", "", "sort key (title, status)")
	cmd.Flags().BoolVar(&opts.desc, "desc", false, "sort descending")
	cmd.Flags().IntVar(&opts.page, "page", 0, "zero-based page")
	cmd.Flags().IntVar(&opts.pageSize, "page-size", 0, "items per page (0 uses config)")
}

type listFlags struct {
	search, status, sort string
	desc                 bool
	page, pageSize       int
}

func (f listFlags) options() engine.ListOptions {
	dir := query.Ascending
	if f.desc {
		dir = query.Descending
	}
	return engine.ListOptions{
		Query: query.Query{
			Search: f.search,
			Status: f.status,
			Sort:   query.SortConfig{Key: f.sort, Direction: dir},
		},
		Page:     f.page,
		PageSize: f.pageSize,
	}
}

func projectListCmd() *cobra.Command {
	var f listFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHydratedApp(cmd.Context(), func(ctx context.Context, a *app.App, sess domain.Session) error {
				page, err := a.Engine.ListProjects(ctx, sess, f.options())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(page)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Owner"})
				for _, p := range page.Items {
					tw.AppendRow(table.Row{p.ID, p.Title, p.Status, p.UserID})
				}
				tw.SetCaption("page %d of %d (%d projects)", page.Page+1, max(page.Pages, 1), page.Total)
				tw.Render()
				return nil
			})
		},
	}
	addListFlags(cmd, &f)
	return cmd
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withHydratedApp(cmd.Context(), func(ctx context.Context, a *app.App, sess domain.Session) error {
				p, err := a.Engine.Project(ctx, sess, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func tasksCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "tasks", Short: "Browse tasks"}
	cmd.AddCommand(taskListCmd())
	cmd.AddCommand(taskShowCmd())
	return cmd
}

func taskListCmd() *cobra.Command {
	var f listFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHydratedApp(cmd.Context(), func(ctx context.Context, a *app.App, sess domain.Session) error {
				page, err := a.Engine.ListTasks(ctx, sess, f.options())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(page)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Assignee", "Comments"})
				for _, t := range page.Items {
					assignee := ""
					if t.AssignedTo != nil {
						assignee = *t.AssignedTo
					}
					tw.AppendRow(table.Row{t.ID, t.Title, t.Status, assignee, len(t.Comments)})
				}
				tw.SetCaption("page %d of %d (%d tasks)", page.Page+1, max(page.Pages, 1), page.Total)
				tw.Render()
				return nil
			})
		},
	}
	addListFlags(cmd, &f)
	return cmd
}

func taskShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withHydratedApp(cmd.Context(), func(ctx context.Context, a *app.App, sess domain.Session) error {
				t, err := a.Engine.Task(ctx, sess, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func usersCmd() *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List the assignee directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHydratedApp(cmd.Context(), func(ctx context.Context, a *app.App, sess domain.Session) error {
				users, err := a.Engine.Users(ctx, sess, search)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Name", "Email"})
				for _, u := range users {
					tw.AppendRow(table.Row{u.ID, u.FirstName + " " + u.LastName, u.Email})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "match first name, last name or email")
	return cmd
}

type roleRow struct {
	Role        domain.Role `json:"role"`
	Description string      `json:"description,omitempty"`
	Permissions []string    `json:"permissions"`
}

func rolesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roles",
		Short: "Show the role permission table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			e, err := engine.New(nil, cfg)
			if err != nil {
				return err
			}
			rows := make([]roleRow, 0, len(domain.Roles))
			for _, role := range domain.Roles {
				rows = append(rows, roleRow{
					Role:        role,
					Description: cfg.RBAC.Roles[string(role)].Description,
					Permissions: e.Policy.Permissions(role),
				})
			}
			if viper.GetBool("json") {
				return printJSON(rows)
			}
			tw := newTable()
			tw.AppendHeader(table.Row{"Role", "Description", "Permissions"})
			for _, r := range rows {
				tw.AppendRow(table.Row{r.Role, r.Description, strings.Join(r.Permissions, "\n")})
				tw.AppendSeparator()
			}
			tw.Render()
			return nil
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Activity journal",
		Long:  "The journal keeps every activity entry recorded by 'tb serve', including entries cleared from the live log.",
	}
	cmd.AddCommand(logTailCmd())
	return cmd
}

func logTailCmd() *cobra.Command {
	var n int
	var action string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the latest journal entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if a.Journal == nil {
					return errors.New("journal disabled (journal.enabled: false)")
				}
				reader := events.Reader{DB: a.Journal}
				recs, err := reader.Tail(ctx, n, action)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(recs)
				}
				total, err := reader.Count(ctx)
				if err != nil {
					return err
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"#", "Time", "User", "Action", "Details"})
				for _, r := range recs {
					tw.AppendRow(table.Row{r.ID, r.Timestamp, r.UserName, r.Action, r.Details})
				}
				tw.SetCaption("%d of %d journaled entries", len(recs), total)
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of entries")
	cmd.Flags().StringVar(&action, "action", "", "action filter (created, updated, deleted, commented)")
	return cmd
}

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "cache", Short: "Manage the Redis cache of remote responses"}
	cmd.AddCommand(&cobra.Command{
		Use:   "evict",
		Short: "Drop every cached remote response",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.EvictCache(ctx); err != nil {
					return err
				}
				fmt.Println("cache evicted")
				return nil
			})
		},
	})
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Inspect or create taskboard.yml"}
	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configInitCmd())
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default taskboard.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var refresh bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Hydrate the store and start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := viper.GetString("jwt-secret")
			if secret == "" {
				return fmt.Errorf("TASKBOARD_JWT_SECRET is required for bearer auth")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if cmd.Flags().Changed("addr") || a.Config.Server.Addr == "" {
					a.Config.Server.Addr = addr
				}
				if cmd.Flags().Changed("base-path") || a.Config.Server.BasePath == "" {
					a.Config.Server.BasePath = basePath
				}
				if refresh {
					if err := a.EvictCache(ctx); err != nil && !errors.Is(err, app.ErrNoCache) {
						a.Logger.WithError(err).Warn("cache refresh failed")
					}
				}
				if res := a.Hydrate(ctx); !res.OK() {
					// Serve anyway; list endpoints answer 503 until restart.
					a.Logger.WithError(res.Err).Warn("starting with unhydrated store")
				}
				if hooks := server.NewWebhookDispatcher(a.Config.Webhooks, a.Logger); hooks != nil {
					hooks.Start(ctx)
					defer hooks.Close()
					a.SetNotifier(hooks)
				}
				handler, err := server.New(server.Config{
					Engine:   a.Engine,
					BasePath: a.Config.Server.BasePath,
					Auth:     server.AuthConfig{JWTSecret: secret, TokenTTL: viper.GetDuration("token-ttl")},
					Logger:   a.Logger,
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: a.Config.Server.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				a.Logger.WithFields(log.Fields{
					"addr":      a.Config.Server.Addr,
					"base_path": a.Config.Server.BasePath,
				}).Info("serving Taskboard API (OpenAPI at /openapi.json, Swagger UI at /docs)")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "evict cached remote responses before hydrating")
	cmd.Flags().String("jwt-secret", "", "HS256 signing secret (prefer TASKBOARD_JWT_SECRET)")
	cmd.Flags().Duration("token-ttl", 12*time.Hour, "issued token lifetime")
	_ = viper.BindPFlag("jwt-secret", cmd.Flags().Lookup("jwt-secret"))
	_ = viper.BindPFlag("token-ttl", cmd.Flags().Lookup("token-ttl"))
	return cmd
}

// --- helpers ---

func loadConfig() (*config.Config, error) {
	if path := viper.GetString("config"); path != "" {
		return config.FromFile(path)
	}
	return config.Load(viper.GetString("workspace"))
}

func newLogger(cfg *config.Config) (*log.Logger, error) {
	level := cfg.Log.Level
	if override := viper.GetString("log-level"); override != "" {
		level = override
	}
	return logging.New(os.Stderr, level, cfg.Log.Format)
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	a, err := app.Open(ctx, cfg, app.Options{Workspace: viper.GetString("workspace"), Logger: logger})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// withHydratedApp hydrates the store and logs in the flag-selected user.
func withHydratedApp(ctx context.Context, fn func(context.Context, *app.App, domain.Session) error) error {
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		if res := a.Hydrate(ctx); !res.OK() {
			return res.Err
		}
		sess, err := a.Engine.Login(domain.User{
			ID:   viper.GetInt64("user-id"),
			Name: viper.GetString("user-name"),
		}, domain.Role(viper.GetString("role")))
		if err != nil {
			return err
		}
		return fn(ctx, a, sess)
	})
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	return tw
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
