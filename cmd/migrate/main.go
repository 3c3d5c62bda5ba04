// Command migrate applies or rolls back the Postgres schema.
//
//	migrate up | down | version | to <n>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/joho/godotenv"

	"ms-sorteos/internal/config"
	"ms-sorteos/internal/database"
	"ms-sorteos/internal/database/migrations"
	"ms-sorteos/internal/logger"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: migrate up | down | version | to <version>")
		flag.PrintDefaults()
	}
	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded set")
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.NewLogger(cfg.Log.Dir, cfg.Log.Level)
	defer log.Close()

	bunDB, err := database.ConnectPostgres(context.Background(), cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	migrationsDir := cfg.Database.MigrationsDir
	if *dir != "" {
		migrationsDir = *dir
	}
	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{MigrationsDir: migrationsDir, AutoMigrate: true}, log)
	if err := runner.Initialize(); err != nil {
		log.Fatal("MIGRATION", err.Error())
	}
	defer runner.Close()

	switch cmd := flag.Arg(0); cmd {
	case "up":
		err = runner.RunMigrations()
	case "down":
		err = runner.MigrateDown()
	case "to":
		var v uint64
		v, err = strconv.ParseUint(flag.Arg(1), 10, 32)
		if err == nil {
			err = runner.MigrateTo(uint(v))
		}
	case "version":
		var (
			v     uint
			dirty bool
		)
		v, dirty, err = runner.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("no migrations applied")
			err = nil
		} else if err == nil {
			fmt.Printf("version %d (dirty: %t)\n", v, dirty)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal("MIGRATION", err.Error())
	}
}
