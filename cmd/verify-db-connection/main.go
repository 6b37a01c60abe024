package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"strings"

	"launchpad-backend/internal/config"
	"launchpad-backend/internal/db"
)

// column a varchar column and the width it must have
type column struct {
	table string
	name  string
	width int64
}

var expected = []column{
	{"trade_records", "token", 42},
	{"trade_records", "trader", 42},
	{"trade_records", "tx_hash", 66},
	{"trade_records", "approval_tx_hash", 66},
	{"created_tokens", "address", 42},
	{"created_tokens", "tx_hash", 66},
}

func main() {
	configPath := flag.String("config", "", "config file path")
	fix := flag.Bool("fix", false, "widen columns that are too small")
	flag.Parse()

	fmt.Println("🔍 Verifying database connection and column sizes...")
	fmt.Println(strings.Repeat("=", 60))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.DSN == "" {
		log.Fatal("database.dsn is not configured (set DATABASE_DSN)")
	}

	gdb, err := db.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close(gdb)

	sqlDB, err := gdb.DB()
	if err != nil {
		log.Fatalf("Failed to get database connection: %v", err)
	}

	var dbName string
	if err := sqlDB.QueryRow("SELECT current_database()").Scan(&dbName); err != nil {
		log.Fatalf("Failed to get database name: %v", err)
	}
	fmt.Printf("📋 Connected to database: %s\n", dbName)

	for _, table := range []string{"trade_records", "created_tokens"} {
		var rows int64
		if err := sqlDB.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&rows); err != nil {
			log.Fatalf("Failed to count %s: %v", table, err)
		}
		fmt.Printf("📋 %s: %d rows\n", table, rows)
	}

	problems := 0
	for _, col := range expected {
		size, err := columnWidth(sqlDB, col)
		if err != nil {
			log.Fatalf("Failed to query column size: %v", err)
		}
		if !size.Valid {
			fmt.Printf("❌ %s.%s column does not exist!\n", col.table, col.name)
			problems++
			continue
		}
		if size.Int64 >= col.width {
			fmt.Printf("✅ %s.%s: VARCHAR(%d)\n", col.table, col.name, size.Int64)
			continue
		}

		fmt.Printf("❌ %s.%s is too small! Need VARCHAR(%d), got VARCHAR(%d)\n", col.table, col.name, col.width, size.Int64)
		if !*fix {
			problems++
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE VARCHAR(%d)", col.table, col.name, col.width)
		if _, err := sqlDB.Exec(stmt); err != nil {
			log.Fatalf("Failed to fix column size: %v", err)
		}
		fmt.Printf("🔧 Widened %s.%s to VARCHAR(%d)\n", col.table, col.name, col.width)
	}

	if problems > 0 {
		log.Fatalf("%d column(s) need attention, rerun with -fix", problems)
	}
	fmt.Println("\n✅ Database schema verified")
}

func columnWidth(sqlDB *sql.DB, col column) (sql.NullInt64, error) {
	var size sql.NullInt64
	err := sqlDB.QueryRow(`
		SELECT character_maximum_length
		FROM information_schema.columns
		WHERE table_schema = 'public'
		AND table_name = $1
		AND column_name = $2
	`, col.table, col.name).Scan(&size)
	if err == sql.ErrNoRows {
		return sql.NullInt64{}, nil
	}
	return size, err
}
