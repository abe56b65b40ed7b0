package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"

	"votecore/pkg/database"
)

const usage = "Usage: go run ./cmd/migrate [drop|up|seed|reset]"

// Fixed ids keep the demo poll stable across reseeds
const (
	demoPollID    = "5b0c8a1e-3f7d-4c52-9a61-2d4e8f0b7c10"
	demoOptionCat = "5b0c8a1e-3f7d-4c52-9a61-2d4e8f0b7c11"
	demoOptionDog = "5b0c8a1e-3f7d-4c52-9a61-2d4e8f0b7c12"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}
	command := os.Args[1]

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close(ctx)

	switch command {
	case "drop":
		if err := database.DropSchema(ctx, conn); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		fmt.Println("✅ All tables dropped successfully")

	case "up":
		if err := database.ApplySchema(ctx, conn); err != nil {
			log.Fatalf("Failed to create tables: %v", err)
		}
		fmt.Println("✅ All tables created successfully")

	case "seed":
		if err := seedData(ctx, conn); err != nil {
			log.Fatalf("Failed to seed data: %v", err)
		}
		fmt.Println("✅ Data seeded successfully")

	case "reset":
		if err := database.DropSchema(ctx, conn); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		if err := database.ApplySchema(ctx, conn); err != nil {
			log.Fatalf("Failed to create tables: %v", err)
		}
		if err := seedData(ctx, conn); err != nil {
			log.Fatalf("Failed to seed data: %v", err)
		}
		fmt.Println("✅ Database reset successfully")

	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println(usage)
		os.Exit(1)
	}
}

// seedData inserts the Cats vs Dogs demo poll with no votes
func seedData(ctx context.Context, conn *pgx.Conn) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO polls (id, title, description, is_active, allow_multiple_votes, total_votes)
		VALUES ($1, 'Cats or Dogs?', 'Which pet do you prefer?', TRUE, FALSE, 0)
		ON CONFLICT (id) DO NOTHING`, demoPollID)
	if err != nil {
		return fmt.Errorf("failed to insert demo poll: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO options (id, poll_id, text, display_order, vote_count) VALUES
		($1, $3, 'Cats', 0, 0),
		($2, $3, 'Dogs', 1, 0)
		ON CONFLICT (id) DO NOTHING`, demoOptionCat, demoOptionDog, demoPollID)
	if err != nil {
		return fmt.Errorf("failed to insert demo options: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit seed: %w", err)
	}
	fmt.Printf("  Seeded poll %s (Cats or Dogs?)\n", demoPollID)
	return nil
}
