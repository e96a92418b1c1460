package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/config"
	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/database"
)

const usage = `usage: migrate [-database-url URL] <command>

commands:
  up      apply every pending migration
  down    revert the most recent migration
  status  print the state of every migration
  list    print the embedded migration files`

func main() {
	var dbURLFlag string
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	command := flag.Arg(0)

	if command == "list" {
		sources, err := database.ListMigrations()
		if err != nil {
			log.Fatalf("failed to list migrations: %v", err)
		}
		for _, s := range sources {
			fmt.Println(s)
		}
		return
	}

	_ = godotenv.Load()

	dbURL := dbURLFlag
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set and -database-url was not provided")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := database.NewConnection(ctx, config.DatabaseConfig{
		URL:                dbURL,
		MaxConnections:     2,
		MaxIdleConnections: 1,
	}, logrus.New())
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	switch command {
	case "up":
		err = database.Migrate(ctx, db.DB.DB)
	case "down":
		err = database.Rollback(ctx, db.DB.DB)
	case "status":
		err = database.MigrationStatus(ctx, db.DB.DB)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", command, err)
	}

	fmt.Printf("migrate %s: done\n", command)
}
