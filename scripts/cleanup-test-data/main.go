// cleanup-test-data removes test-like roadmap features from the database.
// Features accumulate when developers poke the bot through /webhook/test;
// this clears them out of a project's board without touching real requests.
//
// Title patterns matched (case-insensitive):
// - ^test (starts with "test")
// - test$ (ends with "test")
// - ^debug (debug prefix)
// - ^dummy (dummy prefix)
// - ^sample (sample prefix)
// - ^example (example prefix)
//
// Mention audit rows whose cast_id starts with "0xtest" are removed as
// well, so the idempotency guard does not swallow repeated test pokes.
//
// Usage: go run ./scripts/cleanup-test-data <project-handle>
//
// Database connection: Uses standard PG* environment variables
//
// Flags:
//
//	-dry-run   Show what would be deleted without actually deleting (default: true)
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
)

// testTitlePatterns identifies features created during manual testing.
// Used with PostgreSQL's ~* (case-insensitive regex) operator.
var testTitlePatterns = []string{
	`^test`,    // Starts with "test"
	`test$`,    // Ends with "test"
	`^debug`,   // Debug prefix
	`^dummy`,   // Dummy prefix
	`^sample`,  // Sample prefix
	`^example`, // Example prefix
}

// testCastIDPattern matches synthetic cast hashes used with /webhook/test.
const testCastIDPattern = `^0xtest`

func main() {
	dryRun := flag.Bool("dry-run", true, "Show what would be deleted without actually deleting")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [-dry-run=false] <project-handle>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nFlags:\n")
		fmt.Fprintf(os.Stderr, "  -dry-run  Show what would be deleted without deleting (default: true)\n")
		os.Exit(1)
	}

	handle := strings.ToLower(strings.TrimPrefix(args[0], "@"))

	ctx := context.Background()

	conn, err := pgx.Connect(ctx, buildConnString())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close(ctx)

	var projectID string
	err = conn.QueryRow(ctx, "SELECT id FROM projects WHERE handle = $1", handle).Scan(&projectID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to find project @%s: %v\n", handle, err)
		os.Exit(1)
	}

	if *dryRun {
		fmt.Println("DRY RUN - no changes will be made")
		fmt.Println("Run with -dry-run=false to actually delete")
		fmt.Println()
	}

	totalDeleted := 0
	for _, pattern := range testTitlePatterns {
		count, err := cleanupTestFeatures(ctx, conn, projectID, pattern, *dryRun)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error cleaning pattern %q: %v\n", pattern, err)
			os.Exit(1)
		}
		totalDeleted += count
	}

	logCount, err := cleanupTestMentionLogs(ctx, conn, *dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error cleaning mention logs: %v\n", err)
		os.Exit(1)
	}

	if *dryRun {
		fmt.Printf("\nFeatures that would be deleted: %d\n", totalDeleted)
		fmt.Printf("Mention logs that would be deleted: %d\n", logCount)
	} else {
		fmt.Printf("\nFeatures deleted: %d\n", totalDeleted)
		fmt.Printf("Mention logs deleted: %d\n", logCount)
	}
}

// cleanupTestFeatures deletes features matching the given title regex.
// Sources, tags, and sub-items go with them via ON DELETE CASCADE.
// If dryRun is true, it only shows what would be deleted.
func cleanupTestFeatures(ctx context.Context, conn *pgx.Conn, projectID, pattern string, dryRun bool) (int, error) {
	if dryRun {
		rows, err := conn.Query(ctx, `
			SELECT title, description, status
			FROM features
			WHERE project_id = $1
			  AND title ~* $2
		`, projectID, pattern)
		if err != nil {
			return 0, fmt.Errorf("query failed: %w", err)
		}
		defer rows.Close()

		var count int
		for rows.Next() {
			var title, description, status string
			if err := rows.Scan(&title, &description, &status); err != nil {
				return 0, fmt.Errorf("scan failed: %w", err)
			}
			count++
			fmt.Printf("  [%s] %q - %s (status: %s)\n", pattern, title, truncate(description, 60), status)
		}
		if err := rows.Err(); err != nil {
			return 0, fmt.Errorf("rows iteration failed: %w", err)
		}

		if count == 0 {
			fmt.Printf("  [%s] No matching features\n", pattern)
		}
		return count, nil
	}

	result, err := conn.Exec(ctx, `
		DELETE FROM features
		WHERE project_id = $1
		  AND title ~* $2
	`, projectID, pattern)
	if err != nil {
		return 0, fmt.Errorf("delete failed: %w", err)
	}

	count := int(result.RowsAffected())
	fmt.Printf("Deleted %d features matching pattern: %s\n", count, pattern)
	return count, nil
}

// cleanupTestMentionLogs deletes audit rows for synthetic test casts.
func cleanupTestMentionLogs(ctx context.Context, conn *pgx.Conn, dryRun bool) (int, error) {
	if dryRun {
		var count int
		err := conn.QueryRow(ctx, `
			SELECT COUNT(*) FROM bot_mention_logs WHERE cast_id ~* $1
		`, testCastIDPattern).Scan(&count)
		if err != nil {
			return 0, fmt.Errorf("count failed: %w", err)
		}
		return count, nil
	}

	result, err := conn.Exec(ctx, `
		DELETE FROM bot_mention_logs WHERE cast_id ~* $1
	`, testCastIDPattern)
	if err != nil {
		return 0, fmt.Errorf("delete failed: %w", err)
	}
	return int(result.RowsAffected()), nil
}

func buildConnString() string {
	host := getEnvOrDefault("PGHOST", "localhost")
	port := getEnvOrDefault("PGPORT", "5432")
	user := getEnvOrDefault("PGUSER", "roadcast")
	password := os.Getenv("PGPASSWORD")
	dbname := getEnvOrDefault("PGDATABASE", "roadcast")

	connStr := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable",
		host, port, user, dbname)
	if password != "" {
		connStr += fmt.Sprintf(" password=%s", password)
	}
	return connStr
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// truncate shortens a string to maxLen characters, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
