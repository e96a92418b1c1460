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

// Booking data, cleared on every run
var bookingTables = []string{
	"loyalty_transactions",
	"loyalty_accounts",
	"bookings",
	"trips",
}

// Fleet and timetable data, cleared only with -all
var catalogTables = []string{
	"schedule_templates",
	"buses",
}

func main() {
	var (
		dbURLFlag string
		all       bool
		confirm   bool
	)
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.BoolVar(&all, "all", false, "also clear buses and schedule templates")
	flag.BoolVar(&confirm, "yes", false, "confirm the truncate")
	flag.Parse()

	// Try loading .env from current working directory (optional)
	_ = godotenv.Load()

	dbURL := dbURLFlag
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set and -database-url was not provided")
	}

	tables := bookingTables
	if all {
		tables = append(append([]string{}, bookingTables...), catalogTables...)
	}

	if !confirm {
		fmt.Printf("Would truncate: %v\nRe-run with -yes to proceed.\n", tables)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.NewConnection(ctx, config.DatabaseConfig{
		URL:                dbURL,
		MaxConnections:     5,
		MaxIdleConnections: 2,
	}, logrus.New())
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	fmt.Println("Connected to database. Truncating tables...")

	for _, t := range tables {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", t)); err != nil {
			log.Fatalf("failed to truncate %s: %v", t, err)
		}
	}

	fmt.Println("Post-clear row counts:")
	for _, t := range tables {
		var count int
		if err := db.GetContext(ctx, &count, fmt.Sprintf("SELECT COUNT(*) FROM %s", t)); err != nil {
			fmt.Printf("  %s: error: %v\n", t, err)
			continue
		}
		fmt.Printf("  %s: %d\n", t, count)
	}
}
