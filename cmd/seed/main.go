// File: cmd/seed/main.go
// Applies the schema and seeds a demo catalog for local testing.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"telegram-lesson-market/internal/config"
	pg "telegram-lesson-market/internal/infra/db/postgres"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	schemaPath := flag.String("schema", filepath.Join("deploy", "postgres", "init.sql"), "path to schema file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	schema, err := os.ReadFile(*schemaPath)
	if err != nil {
		log.Fatalf("read schema: %v", err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		log.Fatalf("apply schema: %v", err)
	}
	fmt.Println("schema applied")

	// If the catalog already has items, do nothing.
	var lessons int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM lessons`).Scan(&lessons); err != nil {
		log.Fatalf("count lessons: %v", err)
	}
	if lessons > 0 {
		fmt.Printf("%d lessons already present. No changes.\n", lessons)
		return
	}

	seedLessons := []struct {
		Title string
		Price int64
	}{
		{"Go Basics: Hello, Structs, Interfaces", 50},
		{"Concurrency Patterns in Practice", 120},
		{"Testing Without Tears", 80},
	}
	for _, l := range seedLessons {
		if _, err := pool.Exec(ctx, `INSERT INTO lessons (title, price) VALUES ($1, $2)`, l.Title, l.Price); err != nil {
			log.Fatalf("seed lesson %q: %v", l.Title, err)
		}
		fmt.Printf("  + lesson %q (%d stars)\n", l.Title, l.Price)
	}

	seedCourses := []struct {
		Title    string
		Price    int64
		Discount int
	}{
		{"Backend Engineering Track", 900, 10},
		{"Distributed Systems Track", 1400, 0},
	}
	for _, c := range seedCourses {
		if _, err := pool.Exec(ctx,
			`INSERT INTO courses (title, price, discount_percent) VALUES ($1, $2, $3)`,
			c.Title, c.Price, c.Discount,
		); err != nil {
			log.Fatalf("seed course %q: %v", c.Title, err)
		}
		fmt.Printf("  + course %q (%d stars, %d%% off)\n", c.Title, c.Price, c.Discount)
	}

	if _, err := pool.Exec(ctx, `
INSERT INTO promo_codes (code, discount_percent, max_uses, created_at)
VALUES ('WELCOME10', 10, 100, NOW())
ON CONFLICT (code) DO NOTHING`); err != nil {
		log.Fatalf("seed promo: %v", err)
	}
	fmt.Println("  + promo WELCOME10 (10%, 100 uses)")
	fmt.Println("done")
}
