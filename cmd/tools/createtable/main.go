package main

import (
	"log"
	"os"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func main() {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN environment variable is required")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get DB: %v", err)
	}

	statements := map[string]string{
		"payments": `
	CREATE TABLE IF NOT EXISTS payments (
	  id CHAR(36) NOT NULL,
	  user_id CHAR(36) NOT NULL,
	  amount_cents INT NOT NULL,
	  currency CHAR(3) NOT NULL DEFAULT 'GHS',
	  provider VARCHAR(32) NOT NULL,
	  phone VARCHAR(20) NOT NULL,
	  payment_type VARCHAR(32) NOT NULL,
	  client_reference VARCHAR(64) NOT NULL,
	  status VARCHAR(16) NOT NULL,
	  webhook_token VARCHAR(64) NULL,
	  payment_date DATETIME(3) NULL,
	  notes TEXT NOT NULL,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  updated_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (id),
	  UNIQUE KEY ux_payments_client_reference (client_reference),
	  KEY ix_payments_user_id (user_id),
	  KEY ix_payments_status (status)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		"payment_callback_events": `
	CREATE TABLE IF NOT EXISTS payment_callback_events (
	  id CHAR(36) NOT NULL,
	  provider VARCHAR(32) NOT NULL,
	  client_reference VARCHAR(64) NOT NULL,
	  transaction_id VARCHAR(128) NOT NULL,
	  payload_json JSON NOT NULL,
	  received_at DATETIME(3) NOT NULL,
	  outcome VARCHAR(32) NULL,
	  PRIMARY KEY (id),
	  KEY ix_callback_events_reference (client_reference)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		"memberships": `
	CREATE TABLE IF NOT EXISTS memberships (
	  user_id CHAR(36) NOT NULL,
	  status VARCHAR(16) NOT NULL,
	  expires_at DATETIME(3) NOT NULL,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  updated_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	}

	for _, table := range []string{"payments", "payment_callback_events", "memberships"} {
		if _, err := sqlDB.Exec(statements[table]); err != nil {
			log.Fatalf("Failed to create %s table: %v", table, err)
		}
		log.Printf("✓ %s table created successfully", table)
	}
}
