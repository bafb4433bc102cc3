package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"scholarportal.org/internal/migrate"
)

func main() {
	log.SetFlags(0)
	var (
		dsn   = flag.String("dsn", os.Getenv("PORTAL_PG_DSN"), "PostgreSQL DSN")
		dir   = flag.String("dir", "", "Directory with *.up.sql/*.down.sql files (embedded migrations when empty)")
		table = flag.String("table", "", "Migrations bookkeeping table")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or PORTAL_PG_DSN")
	}
	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [up|down|status]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	var fsys fs.FS
	if *dir != "" {
		fsys = os.DirFS(*dir)
	}
	var opts []migrate.Option
	if *table != "" {
		opts = append(opts, migrate.WithMigrationsTable(*table))
	}
	mgr := migrate.NewManager(db, fsys, opts...)

	switch flag.Arg(0) {
	case "up":
		var applied []string
		applied, err = mgr.Up(ctx)
		if err == nil {
			if len(applied) == 0 {
				fmt.Println("nothing to apply")
			}
			for _, name := range applied {
				fmt.Println("applied", name)
			}
		}
	case "down":
		var reverted string
		reverted, err = mgr.Down(ctx)
		if err == nil {
			fmt.Println("reverted", reverted)
		}
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		if err == nil {
			for _, item := range history {
				fmt.Println(item)
			}
		}
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", flag.Arg(0), err)
	}
}
