package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/sadopc/sqlace/internal/adapter"
	"github.com/sadopc/sqlace/internal/config"
	"github.com/sadopc/sqlace/internal/connspec"
	"github.com/sadopc/sqlace/internal/executor"
	"github.com/sadopc/sqlace/internal/history"
)

func (c *cli) databasesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "databases URL",
		Short: "List databases",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, identity, err := c.connect(cmd.Context(), args[0], "")
			if err != nil {
				return err
			}
			printList(cmd, c.eng.ListDatabases(cmd.Context(), identity))
			return nil
		},
	}
}

func (c *cli) schemasCmd() *cobra.Command {
	var database string
	cmd := &cobra.Command{
		Use:   "schemas URL",
		Short: "List schemas in a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sid, identity, err := c.connect(cmd.Context(), args[0], database)
			if err != nil {
				return err
			}
			db, err := c.database(sid)
			if err != nil {
				return err
			}
			printList(cmd, c.eng.ListSchemas(cmd.Context(), identity, db))
			return nil
		},
	}
	cmd.Flags().StringVarP(&database, "database", "d", "", "Database (default from the URL)")
	return cmd
}

func (c *cli) tablesCmd() *cobra.Command {
	var database, schemaName string
	cmd := &cobra.Command{
		Use:   "tables URL",
		Short: "List tables and views",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sid, identity, err := c.connect(cmd.Context(), args[0], database)
			if err != nil {
				return err
			}
			db, err := c.database(sid)
			if err != nil {
				return err
			}
			tables := c.eng.ListTables(cmd.Context(), identity, db, schemaName)
			rows := make([][]string, len(tables))
			for i, t := range tables {
				rows[i] = []string{t.Schema, t.Name, string(t.Type)}
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"schema", "name", "type"}, rows))
			return nil
		},
	}
	cmd.Flags().StringVarP(&database, "database", "d", "", "Database (default from the URL)")
	cmd.Flags().StringVarP(&schemaName, "schema", "s", "", "Schema (default: the backend's)")
	return cmd
}

func (c *cli) columnsCmd() *cobra.Command {
	var database string
	cmd := &cobra.Command{
		Use:   "columns URL TABLE...",
		Short: "List the columns of tables",
		Long:  "TABLE may be schema-qualified (public.users).",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sid, identity, err := c.connect(cmd.Context(), args[0], database)
			if err != nil {
				return err
			}
			db, err := c.database(sid)
			if err != nil {
				return err
			}
			cols := c.eng.ListColumns(cmd.Context(), identity, db, args[1:])
			rows := make([][]string, len(cols))
			for i, col := range cols {
				size := ""
				if col.Size > 0 {
					size = strconv.FormatInt(col.Size, 10)
				}
				rows[i] = []string{col.Table, col.Name, col.Type, size, strconv.FormatBool(col.Nullable), col.Default}
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"table", "column", "type", "size", "nullable", "default"}, rows))
			return nil
		},
	}
	cmd.Flags().StringVarP(&database, "database", "d", "", "Database (default from the URL)")
	return cmd
}

func (c *cli) ddlCmd() *cobra.Command {
	var (
		database, schemaName string
		describe, sel, run   bool
	)
	cmd := &cobra.Command{
		Use:   "ddl URL TABLE",
		Short: "Print the query that reconstructs a table's DDL",
		Long: `Print the backend's DDL query for TABLE, or with --describe / --select
the column description or select query. --run executes it.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sid, identity, err := c.connect(ctx, args[0], database)
			if err != nil {
				return err
			}
			table := args[1]

			var query string
			switch {
			case describe:
				query, err = c.eng.TableDescribeQuery(identity, table, schemaName)
			case sel:
				query, err = c.eng.TableSelectQuery(identity, table, schemaName)
			default:
				query, err = c.eng.TableCreateStatement(identity, table, schemaName)
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !run {
				fmt.Fprintln(out, query)
				return nil
			}

			r, err := c.eng.Execute(ctx, sid, query)
			if err != nil {
				return err
			}
			c.await(ctx, r, false)
			snap, _ := c.eng.Session(sid)
			if snap.Err != nil {
				return snap.Err
			}
			for _, res := range snap.Results {
				renderResult(out, res)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&database, "database", "d", "", "Database (default from the URL)")
	cmd.Flags().StringVarP(&schemaName, "schema", "s", "", "Schema")
	cmd.Flags().BoolVar(&describe, "describe", false, "Print the column description query")
	cmd.Flags().BoolVar(&sel, "select", false, "Print the select query")
	cmd.Flags().BoolVar(&run, "run", false, "Execute the query and print its result")
	cmd.MarkFlagsMutuallyExclusive("describe", "select")
	return cmd
}

func (c *cli) connectionsCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "connections",
		Short: "List the saved connection URLs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := file
			if path == "" {
				var err error
				if path, err = c.cfg.ConnectionsPath(); err != nil {
					return err
				}
			}
			urls, err := config.LoadConnectionList(path)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"url", "identity", "adapter"}, connectionRows(urls)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Connection list (default from config)")
	return cmd
}

// connectionRows describes each saved URL with its password masked.
func connectionRows(urls []string) [][]string {
	rows := make([][]string, 0, len(urls))
	for _, raw := range urls {
		spec, err := connspec.Parse(raw)
		if err != nil {
			rows = append(rows, []string{"(invalid)", "", err.Error()})
			continue
		}
		name := "unsupported"
		if a, err := adapter.Lookup(spec.Protocol); err == nil {
			name = a.Name()
		}
		rows = append(rows, []string{spec.Redacted(), spec.Identity(), name})
	}
	return rows
}

func (c *cli) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [PATTERN]",
		Short: "Show recently executed queries",
		Long:  "PATTERN is a SQL LIKE pattern matched against the query text.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.hist == nil {
				return fmt.Errorf("history is disabled")
			}
			ctx := cmd.Context()
			var (
				entries []history.Entry
				err     error
			)
			if len(args) == 1 {
				entries, err = c.hist.Search(ctx, args[0], limit)
			} else {
				entries, err = c.hist.Recent(ctx, limit)
			}
			if err != nil {
				return err
			}
			rows := make([][]string, len(entries))
			for i, e := range entries {
				rows[i] = []string{
					e.ExecutedAt.Local().Format("2006-01-02 15:04:05"),
					e.Identity,
					e.DatabaseName,
					e.Outcome,
					executor.FormatElapsed(time.Duration(e.DurationMS) * time.Millisecond),
					e.Query,
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"when", "identity", "database", "outcome", "elapsed", "query"}, rows))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Entries to show")
	return cmd
}

func printList(cmd *cobra.Command, items []string) {
	for _, s := range items {
		fmt.Fprintln(cmd.OutOrStdout(), s)
	}
}
