package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/growthops/mercadoads/internal/automation"
	"github.com/growthops/mercadoads/internal/gateway"

	_ "github.com/lib/pq"
)

func main() {
	godotenv.Load()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	listOnly := false
	for _, a := range os.Args[1:] {
		if a == "--list" {
			listOnly = true
		}
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("ping: %v", err)
	}
	log.Println("Connected to database")

	if listOnly {
		rows, err := db.Query("SELECT tablename FROM pg_tables WHERE schemaname='public' AND (tablename LIKE 'ml_ads_%' OR tablename = 'ml_integrations') ORDER BY tablename")
		if err != nil {
			log.Fatal(err)
		}
		defer rows.Close()
		n := 0
		for rows.Next() {
			var t string
			rows.Scan(&t)
			fmt.Println(" ", t)
			n++
		}
		fmt.Printf("Total: %d tables\n", n)
		return
	}

	ctx := context.Background()
	if err := automation.NewStore(db).EnsureSchema(ctx); err != nil {
		log.Fatalf("engine schema: %v", err)
	}
	if err := gateway.NewPostgresCredentialSource(db).EnsureSchema(ctx); err != nil {
		log.Fatalf("integration schema: %v", err)
	}
	log.Println("Schema is up to date")
}
