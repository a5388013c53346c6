package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"time"

	"github.com/2beens/catalogsvc/internal/auth"
	"github.com/2beens/catalogsvc/internal/config"
	"github.com/2beens/catalogsvc/internal/db"
	"github.com/2beens/catalogsvc/pkg"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// seed_user creates a login user in the catalog db.
// the password is taken from -password or CATALOG_SEED_PASSWORD.
func main() {
	env := flag.String("env", "development", "environment [prod | production | dev | development | ddev | dockerdev ]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	username := flag.String("username", "admin", "username of the new user")
	password := flag.String("password", "", "password of the new user")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warnf("load .env: %s", err)
	}

	if *password == "" {
		*password = os.Getenv("CATALOG_SEED_PASSWORD")
	}
	if *username == "" || *password == "" {
		log.Fatalln("username and password are required, use -password or CATALOG_SEED_PASSWORD")
	}

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		log.Fatalf("load config: %s", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:     cfg.PostgresHost,
		DBPort:     cfg.PostgresPort,
		DBName:     cfg.PostgresDBName,
		DBUser:     cfg.PostgresUser,
		DBPassword: os.Getenv("CATALOG_POSTGRES_PASS"),
	})
	if err != nil {
		log.Fatalf("new db pool: %s", err)
	}
	defer dbPool.Close()

	if err := db.Migrate(ctx, dbPool); err != nil {
		log.Fatalf("migrate: %s", err)
	}

	passwordHash, err := pkg.HashPasswordWithCost(*password, auth.DefaultPasswordHashCost)
	if err != nil {
		log.Fatalf("hash password: %s", err)
	}

	err = auth.NewUserRepo(dbPool).Add(ctx, auth.User{
		Username:     *username,
		PasswordHash: passwordHash,
	})
	if errors.Is(err, auth.ErrUserExists) {
		log.Warnf("user [%s] already exists", *username)
		return
	}
	if err != nil {
		log.Fatalf("add user: %s", err)
	}

	log.Infof("user [%s] added", *username)
}
