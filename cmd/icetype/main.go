// Command icetype compiles schema definitions, diffs them against the
// last planned state and generates, inspects or applies the resulting
// migrations.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/icetype/icetype"
	"github.com/icetype/icetype/compiler/gen"
	"github.com/icetype/icetype/compiler/load"
	"github.com/icetype/icetype/dialect"
	"github.com/icetype/icetype/migrate"
	"github.com/icetype/icetype/schema"

	// Database drivers for "icetype apply".
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var (
	configPath    string
	dialectName   string
	stateDir      string
	allowBreaking bool
	dryRun        bool
	dbDSN         string
)

var rootCmd = &cobra.Command{
	Use:   "icetype",
	Short: "Schema compiler and migration generator",
	Long: `icetype compiles YAML schema definitions into a typed model,
diffs them against the previously planned state and generates
reversible SQL migrations for PostgreSQL, MySQL and SQLite.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", load.DefaultConfigFile, "project configuration file")
	rootCmd.PersistentFlags().StringVar(&dialectName, "dialect", "", "override the configured dialect")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state", ".icetype", "snapshot state directory")

	planCmd.Flags().BoolVar(&allowBreaking, "allow-breaking", false, "permit breaking changes")
	planCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print migrations without writing files or state")
	applyCmd.Flags().BoolVar(&allowBreaking, "allow-breaking", false, "permit breaking changes")
	applyCmd.Flags().StringVar(&dbDSN, "db", "", "database connection string")
	applyCmd.MarkFlagRequired("db")

	rootCmd.AddCommand(compileCmd, diffCmd, planCmd, applyCmd, genCmd, watchCmd)
}

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile and validate the schema definitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, schemas, err := loadProject()
		if err != nil {
			return err
		}
		for _, s := range schemas {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (table %s, %d fields, version %s)\n",
				s.Name, s.Table(), s.NumFields(), s.Version)
		}
		return nil
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show changes against the last planned state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, schemas, err := loadProject()
		if err != nil {
			return err
		}
		dl, store, err := openState(cfg)
		if err != nil {
			return err
		}
		plans, err := icetype.PlanMigrations(cmd.Context(), store, schemas, dl, icetype.AllowBreaking())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, p := range plans {
			switch {
			case p.Initial:
				fmt.Fprintf(out, "%s: new schema\n", p.Schema.Name)
			case p.Migration == nil:
				fmt.Fprintf(out, "%s: no changes\n", p.Schema.Name)
			default:
				fmt.Fprintf(out, "%s:\n", p.Schema.Name)
				for _, c := range p.Diff.Changes {
					fmt.Fprintf(out, "  %s\n", c)
				}
				if p.Diff.IsBreaking {
					fmt.Fprintln(out, "  (breaking)")
				}
			}
		}
		return nil
	},
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate migration files for the pending changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, schemas, err := loadProject()
		if err != nil {
			return err
		}
		plans, changed, err := planAll(cmd.Context(), cfg, schemas)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(changed) == 0 {
			fmt.Fprintln(out, "no changes")
			return nil
		}
		if dryRun {
			for _, m := range changed {
				fmt.Fprintf(out, "-- %s\n", m.Name)
				for _, s := range m.Up {
					fmt.Fprintln(out, s)
				}
			}
			return nil
		}
		dir, err := migrate.OpenDir(cfg.MigrationsDir)
		if err != nil {
			return err
		}
		for _, m := range changed {
			version, err := dir.WriteMigration(m)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "wrote %s_%s\n", version, m.Name)
			for _, w := range m.Warnings {
				fmt.Fprintf(out, "  warning: %s\n", w)
			}
		}
		return saveState(plans)
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply the pending migrations to a database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, schemas, err := loadProject()
		if err != nil {
			return err
		}
		plans, changed, err := planAll(cmd.Context(), cfg, schemas)
		if err != nil {
			return err
		}
		if len(changed) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no changes")
			return nil
		}
		dl, _, err := openState(cfg)
		if err != nil {
			return err
		}
		db, err := sql.Open(driverName(cfg), dbDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		applier := migrate.NewApplier(db, dl)
		for _, m := range changed {
			if err := applier.Apply(cmd.Context(), m); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", m.Name)
		}
		return saveState(plans)
	},
}

var genCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate Go model code for the schemas",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, schemas, err := loadProject()
		if err != nil {
			return err
		}
		dir := cfg.Gen.Dir
		if dir == "" {
			dir = "model"
		}
		var opts []gen.Option
		if cfg.Gen.Package != "" {
			opts = append(opts, gen.WithPackage(cfg.Gen.Package))
		}
		return gen.New(dir, opts...).Generate(cmd.Context(), schemas)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Recompile and diff whenever a schema file changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadProject()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "watching for schema changes")
		return load.Watch(cmd.Context(), cfg.Schemas, func(changed []string) {
			for _, p := range changed {
				fmt.Fprintf(cmd.OutOrStdout(), "changed: %s\n", p)
			}
			if err := diffCmd.RunE(cmd, nil); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
			}
		})
	},
}

// loadProject reads the configuration and compiles every schema.
func loadProject() (*load.Config, []*schema.Schema, error) {
	cfg, err := load.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	schemas, err := load.Load(cfg.Schemas)
	if err != nil {
		return nil, nil, err
	}
	return cfg, schemas, nil
}

// openState resolves the dialect and opens the snapshot store.
func openState(cfg *load.Config) (*dialect.Dialect, *icetype.DirStore, error) {
	name := cfg.Dialect
	if dialectName != "" {
		name = dialectName
	}
	dl, err := dialect.ByName(name)
	if err != nil {
		return nil, nil, err
	}
	store, err := icetype.NewDirStore(stateDir)
	if err != nil {
		return nil, nil, err
	}
	return dl, store, nil
}

// planAll plans all schemas and returns the migrations that carry
// statements.
func planAll(ctx context.Context, cfg *load.Config, schemas []*schema.Schema) ([]*icetype.Planned, []*migrate.Migration, error) {
	dl, store, err := openState(cfg)
	if err != nil {
		return nil, nil, err
	}
	var opts []icetype.PlanOption
	if allowBreaking {
		opts = append(opts, icetype.AllowBreaking())
	}
	plans, err := icetype.PlanMigrations(ctx, store, schemas, dl, opts...)
	if err != nil {
		return nil, nil, err
	}
	var changed []*migrate.Migration
	for _, p := range plans {
		if p.Migration != nil && len(p.Migration.Up) > 0 {
			changed = append(changed, p.Migration)
		}
	}
	return plans, changed, nil
}

// saveState snapshots the planned schemas.
func saveState(plans []*icetype.Planned) error {
	store, err := icetype.NewDirStore(stateDir)
	if err != nil {
		return err
	}
	for _, p := range plans {
		if err := store.Save(p.Schema); err != nil {
			return err
		}
	}
	return nil
}

// driverName maps the dialect to its registered database/sql driver.
func driverName(cfg *load.Config) string {
	name := cfg.Dialect
	if dialectName != "" {
		name = dialectName
	}
	switch name {
	case dialect.MySQL:
		return "mysql"
	case dialect.SQLite:
		return "sqlite"
	default:
		return "postgres"
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
