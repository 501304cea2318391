package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/safar/localmeat/internal/config"
	"github.com/safar/localmeat/internal/database"
	"github.com/safar/localmeat/internal/loader"
	flag "github.com/spf13/pflag"
)

func main() {
	migrationDir := flag.String("dir", "migrations", "directory holding the .up.sql and .down.sql files")
	seed := flag.Bool("seed", false, "after migrating up, insert the built-in seed data")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: go run scripts/run_migrations.go [flags] up|down")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	direction := flag.Arg(0)
	if direction != "up" && direction != "down" {
		fatal("direction must be 'up' or 'down'", "direction", direction)
	}

	cfg, err := config.Load()
	if err != nil {
		fatal("load config", "error", err)
	}

	ctx := context.Background()
	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		fatal("connect to database", "error", err)
	}
	defer db.Close()

	files, err := os.ReadDir(*migrationDir)
	if err != nil {
		fatal("read migration directory", "error", err)
	}

	var migrationFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), fmt.Sprintf(".%s.sql", direction)) {
			migrationFiles = append(migrationFiles, file.Name())
		}
	}

	sort.Strings(migrationFiles)
	if direction == "down" {
		for i, j := 0, len(migrationFiles)-1; i < j; i, j = i+1, j-1 {
			migrationFiles[i], migrationFiles[j] = migrationFiles[j], migrationFiles[i]
		}
	}

	for _, filename := range migrationFiles {
		content, err := os.ReadFile(filepath.Join(*migrationDir, filename))
		if err != nil {
			fatal("read migration file", "file", filename, "error", err)
		}

		slog.Info("running migration", "file", filename)
		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			fatal("execute migration", "file", filename, "error", err)
		}
	}
	slog.Info("migrations complete", "count", len(migrationFiles), "direction", direction)

	if *seed && direction == "up" {
		if err := loader.WritePostgres(ctx, db, loader.Seed(time.Now())); err != nil {
			fatal("insert seed data", "error", err)
		}
		slog.Info("seed data inserted")
	}
}

func fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}
