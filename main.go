package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	_ "modernc.org/sqlite"
)

func main() {
	_ = godotenv.Load()

	log := setupLogger()

	var (
		rootFlagSet  = flag.NewFlagSet("kmlworks", flag.ExitOnError)
		databaseFile = rootFlagSet.String("database-file", "runs.db", "run ledger database filename")
		workDir      = rootFlagSet.String("workspace", "work", "workspace root directory")

		processFlagSet = flag.NewFlagSet("kmlworks process", flag.ExitOnError)
		processCity    = processFlagSet.String("city", "", "city name, the default grouping key")
		sqlOut         = processFlagSet.String("sql", "", "write INSERT statements to this file instead of stdout")
		bundleOut      = processFlagSet.String("bundle", "", "write the zip of cleaned documents to this file")
		overviewOut    = processFlagSet.String("overview", "", "write a coloured preview KML to this file")
		xlsxOut        = processFlagSet.String("xlsx", "", "write the coordinate table to this xlsx file")

		serveFlagSet = flag.NewFlagSet("kmlworks serve", flag.ExitOnError)
		addr         = serveFlagSet.String("addr", ":8080", "listen address")
	)

	ffOpts := []ff.Option{ff.WithEnvVarPrefix("KMLWORKS")}

	withStore := func(inner func(context.Context, *sqliteStore, []string) error) func(context.Context, []string) error {
		return (func(ctx context.Context, args []string) error {
			db, err := sql.Open("sqlite", *databaseFile)
			if err != nil {
				return err
			}
			defer db.Close()

			st := &sqliteStore{db: db}
			if err := st.init(); err != nil {
				return err
			}
			return inner(ctx, st, args)
		})
	}

	withProcessor := func(inner func(context.Context, processor, []string) error) func(context.Context, []string) error {
		return withStore(func(ctx context.Context, st *sqliteStore, args []string) error {
			ws, err := newWorkspace(*workDir)
			if err != nil {
				return err
			}
			proc := processor{ws: ws, st: st, log: log}
			return inner(ctx, proc, args)
		})
	}

	cmdProcess := &ffcli.Command{
		Name:       "process",
		ShortUsage: "kmlworks process -city <name> file...",
		ShortHelp:  "process a batch of KMZ/KML files",
		FlagSet:    processFlagSet,
		Options:    ffOpts,
		Exec: withProcessor(func(_ context.Context, proc processor, args []string) error {
			var uploads []upload
			for _, arg := range args {
				data, err := os.ReadFile(arg)
				if err != nil {
					return err
				}
				uploads = append(uploads, upload{name: arg, data: data})
			}

			res, err := proc.run(uploads, *processCity)
			if err != nil {
				return err
			}

			if *sqlOut != "" {
				if err := os.WriteFile(*sqlOut, []byte(res.sql), 0o644); err != nil {
					return err
				}
			} else {
				fmt.Print(res.sql)
			}

			if *bundleOut != "" {
				if err := os.WriteFile(*bundleOut, res.bundle, 0o644); err != nil {
					return err
				}
			}

			if *overviewOut != "" {
				f, err := os.Create(*overviewOut)
				if err != nil {
					return err
				}
				if err := writeOverviewKML(res.geometries, f); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
			}

			if *xlsxOut != "" {
				if err := writeXLSX(res.rows, *xlsxOut); err != nil {
					return err
				}
			}

			log.Info("run complete",
				"status", res.status,
				"message", res.message,
				"statements", res.statements(),
				"first_id", res.firstID,
				"last_id", res.nextID-1,
				"merged", res.mergedPath,
			)
			return nil
		}),
	}

	cmdServe := &ffcli.Command{
		Name:      "serve",
		ShortHelp: "run the upload HTTP server",
		FlagSet:   serveFlagSet,
		Options:   ffOpts,
		Exec: withProcessor(func(_ context.Context, proc processor, _ []string) error {
			log.Info("listening", "addr", *addr)
			return http.ListenAndServe(*addr, newServer(proc, log))
		}),
	}

	cmdReview := &ffcli.Command{
		Name:      "review",
		ShortHelp: "browse the last run's cleaned documents",
		Exec: func(ctx context.Context, args []string) error {
			ws, err := newWorkspace(*workDir)
			if err != nil {
				return err
			}
			return review(ctx, ws, args)
		},
	}

	cmdRuns := &ffcli.Command{
		Name:      "runs",
		ShortHelp: "list recorded processing runs",
		Exec: withStore(func(_ context.Context, st *sqliteStore, _ []string) error {
			recs, err := st.listRuns()
			if err != nil {
				return err
			}
			for _, rec := range recs {
				fmt.Println(rec)
			}
			return nil
		}),
	}

	root := &ffcli.Command{
		ShortUsage:  "kmlworks [flags] <subcommand>",
		FlagSet:     rootFlagSet,
		Options:     ffOpts,
		Subcommands: []*ffcli.Command{cmdProcess, cmdServe, cmdReview, cmdRuns},
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
	}

	if err := root.ParseAndRun(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
