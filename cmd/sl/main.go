package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"scoutline/internal/app"
	"scoutline/internal/config"
	"scoutline/internal/db"
	"scoutline/internal/domain"
	"scoutline/internal/engine"
	"scoutline/internal/migrate"
	"scoutline/internal/normalize"
	"scoutline/internal/repo"
	"scoutline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "sl",
	Short: "Scoutline CLI",
	Long: `Scoutline keeps every follow-up from customer intelligence on one board.
Core concepts:
- Items: pain points, risks, field requests, hazards, distress signals and action items, normalized to one shape with P1/P2/P3 priority.
- Windows: This Week, Next Week, This Month and Backlog, derived from each item's due date.
- Initiatives: named, colored groups with an optional due date; items moved into one take its date.
- Closing an initiative closes its open items; reopening never reopens them.
- Workspace: the .scoutline directory with the database, plus scoutline.yml for defaults.
- Event log: every change is journaled, view it with 'sl log tail'.`,
	SilenceUsage: true,
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
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("SCOUTLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("account", "", "account id (overrides config)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("account", rootCmd.PersistentFlags().Lookup("account"))
}

func registerCommands() {
	rootCmd.AddCommand(itemCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(initiativeCmd())
	rootCmd.AddCommand(boardCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

// targetFlags are the mutually exclusive allocation flags shared by
// item create, update and move.
type targetFlags struct {
	window, bucket, date, initiative string
}

func (f *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.window, "window", "", "time window: this_week, next_week, this_month, backlog")
	cmd.Flags().StringVar(&f.bucket, "bucket", "", "raw bucket code: 30, 60, 90 or empty for backlog")
	cmd.Flags().StringVar(&f.date, "date", "", "explicit due date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.initiative, "initiative", "", "initiative id")
}

func (f targetFlags) target(cmd *cobra.Command) (engine.Target, error) {
	var set []string
	for _, name := range []string{"window", "bucket", "date", "initiative"} {
		if cmd.Flags().Changed(name) {
			set = append(set, name)
		}
	}
	switch len(set) {
	case 0:
		return nil, nil
	case 1:
	default:
		return nil, fmt.Errorf("use only one of --%s", strings.Join(set, ", --"))
	}
	switch set[0] {
	case "window":
		return engine.ParseTarget(engine.ModeWindow, f.window)
	case "bucket":
		return engine.ParseTarget("bucket", f.bucket)
	case "date":
		return engine.ParseTarget(engine.ModeDate, f.date)
	default:
		return engine.ParseTarget(engine.ModeInitiative, f.initiative)
	}
}

// parseRef accepts kind/id or a bare id, which means an action item.
func parseRef(raw string) (domain.ItemRef, error) {
	raw = strings.TrimSpace(raw)
	if kind, id, ok := strings.Cut(raw, "/"); ok {
		k, err := domain.ParseSourceKind(kind)
		if err != nil {
			return domain.ItemRef{}, err
		}
		return domain.ItemRef{Kind: k, ID: id}, nil
	}
	return domain.ItemRef{Kind: domain.KindActionItem, ID: raw}, nil
}

func itemCmd() *cobra.Command {
	item := &cobra.Command{
		Use:   "item",
		Short: "Manage tracked items",
		Long:  "Items are referenced as kind/id, for example risk/r-12. A bare id means an action item.",
	}
	item.AddCommand(itemCreateCmd())
	item.AddCommand(itemListCmd())
	item.AddCommand(itemShowCmd())
	item.AddCommand(itemUpdateCmd())
	item.AddCommand(itemMoveCmd())
	item.AddCommand(itemDeleteCmd())
	return item
}

func itemCreateCmd() *cobra.Command {
	var opts engine.ItemCreateOptions
	var tf targetFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an item",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := tf.target(cmd)
			if err != nil {
				return err
			}
			opts.Target = t
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				it, err := e.CreateItem(ctx, opts)
				if err != nil {
					return err
				}
				return printItems([]domain.TrackableItem{it}, e.Now())
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "item id (generated when empty)")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "item kind (default action_item)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "P1, P2, P3 or critical/high/medium/low")
	cmd.Flags().StringVar(&opts.Status, "status", "", "open, in_progress, completed, closed")
	cmd.Flags().StringVar(&opts.Severity, "severity", "", "severity label kept for display")
	tf.register(cmd)
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func itemListCmd() *cobra.Command {
	var kind, initiative, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				f := domain.ItemFilter{InitiativeID: initiative}
				if kind != "" {
					k, err := domain.ParseSourceKind(kind)
					if err != nil {
						return err
					}
					f.Kind = k
				}
				for _, raw := range strings.Split(status, ",") {
					if strings.TrimSpace(raw) == "" {
						continue
					}
					st, ok := domain.ParseStatus(raw)
					if !ok {
						return fmt.Errorf("unknown status %q", raw)
					}
					f.Statuses = append(f.Statuses, st)
				}
				items, err := e.ListItems(ctx, f)
				if err != nil {
					return err
				}
				return printItems(items, e.Now())
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "kind filter")
	cmd.Flags().StringVar(&initiative, "initiative", "", "initiative filter")
	cmd.Flags().StringVar(&status, "status", "", "comma separated status filter")
	return cmd
}

func itemShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <ref>",
		Short: "Show an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseRef(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				it, err := e.GetItem(ctx, ref)
				if err != nil {
					return err
				}
				return printJSONOrTable(it)
			})
		},
	}
}

func itemUpdateCmd() *cobra.Command {
	var title, description, priority, status, severity string
	var tf targetFlags
	cmd := &cobra.Command{
		Use:   "update <ref>",
		Short: "Update item fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseRef(args[0])
			if err != nil {
				return err
			}
			t, err := tf.target(cmd)
			if err != nil {
				return err
			}
			opts := engine.ItemUpdateOptions{Ref: ref, Target: t}
			if cmd.Flags().Changed("title") {
				opts.Title = &title
			}
			if cmd.Flags().Changed("description") {
				opts.Description = &description
			}
			if cmd.Flags().Changed("priority") {
				opts.Priority = &priority
			}
			if cmd.Flags().Changed("status") {
				opts.Status = &status
			}
			if cmd.Flags().Changed("severity") {
				opts.Severity = &severity
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				it, err := e.UpdateItem(ctx, opts)
				if err != nil {
					return err
				}
				return printItems([]domain.TrackableItem{it}, e.Now())
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&priority, "priority", "", "priority")
	cmd.Flags().StringVar(&status, "status", "", "status")
	cmd.Flags().StringVar(&severity, "severity", "", "severity")
	tf.register(cmd)
	return cmd
}

func itemMoveCmd() *cobra.Command {
	var tf targetFlags
	cmd := &cobra.Command{
		Use:   "move <ref>",
		Short: "Move an item to a window, date or initiative",
		Long:  "Exactly one of --window, --bucket, --date or --initiative is required. Moving into an initiative copies its due date.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseRef(args[0])
			if err != nil {
				return err
			}
			t, err := tf.target(cmd)
			if err != nil {
				return err
			}
			if t == nil {
				return fmt.Errorf("one of --window, --bucket, --date or --initiative is required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				it, err := e.Move(ctx, engine.MoveCommand{Ref: ref, Target: t})
				if err != nil {
					return err
				}
				return printItems([]domain.TrackableItem{it}, e.Now())
			})
		},
	}
	tf.register(cmd)
	return cmd
}

func itemDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <ref>",
		Short: "Delete an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseRef(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteItem(ctx, ref); err != nil {
					return err
				}
				return printJSONOrTable(map[string]string{"deleted": ref.String()})
			})
		},
	}
}

func ingestCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "ingest <kind>",
		Short: "Normalize source records into items",
		Long:  "Reads one JSON record or a JSON array of records of the given kind from --file (or stdin) and stores them as items. Re-ingesting a record updates it in place.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseSourceKind(args[0])
			if err != nil {
				return err
			}
			data, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			srcs, decodeErrs, err := decodeSources(kind, data)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res := e.IngestBatch(ctx, viper.GetString("account"), srcs)
				res.Errors = append(decodeErrs, res.Errors...)
				if viper.GetBool("json") {
					return printJSON(res)
				}
				if err := printItems(res.Items, e.Now()); err != nil {
					return err
				}
				for _, msg := range res.Errors {
					fmt.Fprintln(os.Stderr, "skipped:", msg)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON file, - for stdin")
	return cmd
}

func decodeSources(kind domain.SourceKind, data []byte) ([]normalize.Source, []string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("no input")
	}
	if data[0] != '[' {
		src, err := normalize.Decode(kind, data)
		if err != nil {
			return nil, nil, err
		}
		return []normalize.Source{src}, nil, nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, nil, fmt.Errorf("invalid JSON array: %w", err)
	}
	var (
		srcs []normalize.Source
		errs []string
	)
	for i, raw := range raws {
		src, err := normalize.Decode(kind, raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("record %d: %v", i, err))
			continue
		}
		srcs = append(srcs, src)
	}
	return srcs, errs, nil
}

func readInput(cmd *cobra.Command, file string) ([]byte, error) {
	if file == "" || file == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(file)
}

func initiativeCmd() *cobra.Command {
	ini := &cobra.Command{
		Use:     "initiative",
		Aliases: []string{"ini"},
		Short:   "Manage initiatives",
		Long:    "Initiatives group items under a shared goal and due date. close completes the initiative and closes its open items; edit never touches items.",
	}
	ini.AddCommand(initiativeCreateCmd())
	ini.AddCommand(initiativeListCmd())
	ini.AddCommand(initiativeShowCmd())
	ini.AddCommand(initiativeEditCmd())
	ini.AddCommand(initiativeCloseCmd())
	ini.AddCommand(initiativeStatusCmd("reopen", "Set an initiative active again (items stay closed)", engine.Engine.ReopenInitiative))
	ini.AddCommand(initiativeStatusCmd("archive", "Archive an initiative; its items show as unallocated", engine.Engine.ArchiveInitiative))
	ini.AddCommand(initiativeDeleteCmd())
	ini.AddCommand(initiativeImportCmd())
	return ini
}

func initiativeCreateCmd() *cobra.Command {
	var opts engine.InitiativeCreateOptions
	var due string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an initiative",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDueFlag(due)
			if err != nil {
				return err
			}
			opts.DueDate = d
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				in, err := e.CreateInitiative(ctx, opts)
				if err != nil {
					return err
				}
				return printInitiatives([]domain.Initiative{in})
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "initiative id (generated when empty)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "name")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Color, "color", "", "one of "+strings.Join(domain.Colors(), ", "))
	cmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func initiativeListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List initiatives",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var f domain.InitiativeFilter
				for _, raw := range strings.Split(status, ",") {
					if strings.TrimSpace(raw) == "" {
						continue
					}
					st, ok := domain.ParseInitiativeStatus(raw)
					if !ok {
						return fmt.Errorf("unknown initiative status %q", raw)
					}
					f.Statuses = append(f.Statuses, st)
				}
				items, err := e.ListInitiatives(ctx, f)
				if err != nil {
					return err
				}
				return printInitiatives(items)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "comma separated status filter")
	return cmd
}

func initiativeShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an initiative and its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				in, err := e.GetInitiative(ctx, args[0])
				if err != nil {
					return err
				}
				items, err := e.ListItems(ctx, domain.ItemFilter{InitiativeID: in.ID})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"initiative": in, "items": items})
				}
				if err := printInitiatives([]domain.Initiative{in}); err != nil {
					return err
				}
				return printItems(items, e.Now())
			})
		},
	}
}

func initiativeEditCmd() *cobra.Command {
	var name, description, color, due, status string
	var clearDue bool
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit initiative fields without touching its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.InitiativeEditOptions{ID: args[0], ClearDueDate: clearDue}
			if cmd.Flags().Changed("name") {
				opts.Name = &name
			}
			if cmd.Flags().Changed("description") {
				opts.Description = &description
			}
			if cmd.Flags().Changed("color") {
				opts.Color = &color
			}
			if cmd.Flags().Changed("status") {
				opts.Status = &status
			}
			if cmd.Flags().Changed("due") {
				d, err := parseDueFlag(due)
				if err != nil {
					return err
				}
				opts.DueDate = d
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				in, err := e.EditInitiative(ctx, opts)
				if err != nil {
					return err
				}
				return printInitiatives([]domain.Initiative{in})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "name")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&color, "color", "", "color")
	cmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&clearDue, "clear-due", false, "remove the due date")
	cmd.Flags().StringVar(&status, "status", "", "active, completed or archived")
	return cmd
}

func initiativeCloseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "close <id>",
		Short: "Complete an initiative and close its open items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.CloseInitiative(ctx, args[0])
				var partial *engine.PartialCascadeError
				if err != nil && !errors.As(err, &partial) {
					return err
				}
				if viper.GetBool("json") {
					if perr := printJSON(res); perr != nil {
						return perr
					}
					return err
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Item", "Outcome", "Error"})
				for _, ref := range res.Closed {
					tw.AppendRow(table.Row{ref.String(), "closed", ""})
				}
				for _, ref := range res.Skipped {
					tw.AppendRow(table.Row{ref.String(), "already done", ""})
				}
				for _, f := range res.Failed {
					tw.AppendRow(table.Row{f.Ref.String(), "failed", f.Err})
				}
				tw.SetCaption("initiative %s is %s", res.Initiative.ID, res.Initiative.Status)
				tw.Render()
				return err
			})
		},
	}
}

func initiativeStatusCmd(use, short string, fn func(engine.Engine, context.Context, string) (domain.Initiative, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				in, err := fn(e, ctx, args[0])
				if err != nil {
					return err
				}
				return printInitiatives([]domain.Initiative{in})
			})
		},
	}
}

func initiativeDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an initiative; its items are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteInitiative(ctx, args[0]); err != nil {
					return err
				}
				return printJSONOrTable(map[string]string{"deleted": args[0]})
			})
		},
	}
}

func initiativeImportCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Create or refresh initiatives from legacy bucket records",
		Long:  "Reads a JSON bucket record or array of records (bucket_id, name, color, target_date, status).",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			data = bytes.TrimSpace(data)
			var recs []normalize.InitiativeRecord
			if len(data) > 0 && data[0] == '[' {
				err = json.Unmarshal(data, &recs)
			} else {
				var rec normalize.InitiativeRecord
				err = json.Unmarshal(data, &rec)
				recs = append(recs, rec)
			}
			if err != nil {
				return fmt.Errorf("invalid bucket JSON: %w", err)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var out []domain.Initiative
				for _, rec := range recs {
					in, err := e.ImportInitiative(ctx, rec)
					if err != nil {
						return fmt.Errorf("bucket %s: %w", rec.BucketID, err)
					}
					out = append(out, in)
				}
				return printInitiatives(out)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON file, - for stdin")
	return cmd
}

func boardCmd() *cobra.Command {
	var showClosed bool
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show items by time window and initiative",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.BoardOptions{}
				if cmd.Flags().Changed("show-closed") {
					opts.ShowClosed = &showClosed
				}
				b, err := e.Board(ctx, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(b)
				}
				fmt.Println(renderBoard(b, e.Now()))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&showClosed, "show-closed", false, "include completed and closed items")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage scoutline.yml",
		Long:  "scoutline.yml holds the default account, board defaults, logging and server settings.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default scoutline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			account := viper.GetString("account")
			if account == "" {
				return fmt.Errorf("--account required")
			}
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(account)), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate scoutline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.Load(viper.GetString("workspace"))
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "Every create, move, close and ingest is journaled with its before and after allocation.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var f domain.EventFilter
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				f.AccountID = e.Config.Account.ID
				events, err := e.ListEvents(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Time", "Type", "Entity", "Payload"})
				for _, evt := range events {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.EntityID, evt.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&f.Limit, "n", 20, "number of events")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "item or initiative")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id, kind/id for items")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if !cmd.Flags().Changed("addr") && e.Config.Server.Addr != "" {
					addr = e.Config.Server.Addr
				}
				if !cmd.Flags().Changed("base-path") && e.Config.Server.BasePath != "" {
					basePath = e.Config.Server.BasePath
				}
				handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Logger: e.Logger})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
				e.Logger.Info("serving scoutline API",
					zap.String("addr", addr),
					zap.String("base_path", basePath),
					zap.String("docs", "/docs"),
					zap.String("metrics", "/metrics"))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
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
	r := repo.Repo{DB: conn}
	cfg, err := app.ResolveAccountAndConfig(ctx, workspace, viper.GetString("account"), r)
	if err != nil {
		return err
	}
	logger, err := app.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	e := engine.New(conn, cfg, logger)
	return fn(ctx, e)
}

func printItems(items []domain.TrackableItem, now time.Time) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Ref", "Title", "Priority", "Status", "Due", "Bucket", "Initiative"})
	for _, it := range items {
		due := ""
		if it.DueDate != nil {
			due = it.DueDate.Format("2006-01-02")
			if it.DueDate.Before(now) && !it.Status.IsDone() {
				due += " (overdue)"
			}
		}
		initiative := ""
		if it.InitiativeID != nil {
			initiative = *it.InitiativeID
		}
		tw.AppendRow(table.Row{it.Ref().String(), it.Title, it.Priority, it.Status, due, it.Bucket, initiative})
	}
	tw.Render()
	return nil
}

func printInitiatives(items []domain.Initiative) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Name", "Color", "Due", "Status", "Items"})
	for _, in := range items {
		due := ""
		if in.DueDate != nil {
			due = in.DueDate.Format("2006-01-02")
		}
		tw.AppendRow(table.Row{in.ID, in.Name, in.Color, due, in.Status, in.ItemsCount})
	}
	tw.Render()
	return nil
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

func parseDueFlag(raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, ok := normalize.ParseDate(raw)
	if !ok {
		return nil, fmt.Errorf("invalid date %q, use YYYY-MM-DD", raw)
	}
	return &t, nil
}
