package main

import (
	"context"
	"flag"
	"log"

	"bookvault/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

func main() {
	var (
		command = flag.String("command", "up", "Migration command: up, down, status, create")
		name    = flag.String("name", "", "Name for 'create' command")
	)
	flag.Parse()

	config.LoadEnvFiles()

	ctx := context.Background()
	dir := migrationsDir()

	if *command == "create" {
		if *name == "" {
			log.Fatal("Name is required for 'create' command")
		}
		if err := goose.Create(nil, dir, *name, "sql"); err != nil {
			log.Fatalf("Failed to create migration: %v", err)
		}
		log.Printf("migration created name=%s dir=%s", *name, dir)
		return
	}

	pool, err := pgxpool.New(ctx, databaseDSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("Failed to set dialect: %v", err)
	}

	switch *command {
	case "up", "down", "status":
		if err := goose.RunContext(ctx, *command, db, dir); err != nil {
			log.Fatalf("migrate %s failed: %v", *command, err)
		}
		log.Printf("migrate %s done dir=%s", *command, dir)
	default:
		log.Fatalf("Unknown command: %s. Use: up, down, status, create", *command)
	}
}
