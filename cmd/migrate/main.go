package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"sentinal-assist/config"
	"sentinal-assist/internal/repository"
	"sentinal-assist/pkg/database"
)

const usage = `
Sentinal Assist - Database CLI Tool

Usage:
  migrate [command]

Commands:
  up          Create the users table
  down        Drop the users table (DANGEROUS)
  status      Show database connection status

Examples:
  go run cmd/migrate/main.go up
  go run cmd/migrate/main.go status
`

func main() {
	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)

	cfg := config.LoadConfig()
	ctx := context.Background()

	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	switch command {
	case "up":
		if err := repository.InitSchema(ctx, pool); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Schema is up to date")
	case "down":
		if err := repository.DropSchema(ctx, pool); err != nil {
			log.Fatalf("Rollback failed: %v", err)
		}
		log.Println("Schema dropped")
	case "status":
		var users int64
		if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&users); err != nil {
			log.Printf("Connected to %s:%s/%s, users table missing: %v", cfg.DBHost, cfg.DBPort, cfg.DBName, err)
			return
		}
		log.Printf("Connected to %s:%s/%s, %d users", cfg.DBHost, cfg.DBPort, cfg.DBName, users)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}
