// Command migrations applies a service's schema migrations.
//
//	migrations <auth|product>              apply every pending up migration
//	migrations <auth|product> <name>       execute one file, e.g. create_users.down
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"

	"github.com/vncsmyrnk/usersync/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/usersync/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrations <auth|product> [migration name]")
	}
	service := os.Args[1]

	dsn, err := dsnFor(service)
	if err != nil {
		log.Fatal(err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	ctx := context.Background()

	if len(os.Args) < 3 {
		applied, err := postgres.Migrate(ctx, db, service)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%d migration(s) applied.\n", len(applied))
		return
	}

	name, content, err := postgres.MigrationContent(service, os.Args[2])
	if err != nil {
		log.Fatal(err)
	}

	if _, err := db.ExecContext(ctx, string(content)); err != nil {
		log.Fatalf("Failed to execute SQL file %s: %v", name, err)
	}

	fmt.Println("Migration file executed successfully.")
}

func dsnFor(service string) (string, error) {
	switch service {
	case postgres.ServiceAuth:
		cfg, err := config.LoadAuth()
		if err != nil {
			return "", err
		}
		return cfg.Postgres.DSN(), nil
	case postgres.ServiceProduct:
		cfg, err := config.LoadProduct()
		if err != nil {
			return "", err
		}
		return cfg.Postgres.DSN(), nil
	default:
		return "", fmt.Errorf("unknown service %q", service)
	}
}
