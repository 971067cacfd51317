// admin_tool manages admin accounts out of band: the service itself never creates admins.
//
//	admin_tool -env dev -cmd create -email admin@example.com -password '...'
//	admin_tool -env prod -cmd reset-password -email admin@example.com -password '...'
//	admin_tool -env prod -cmd list
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/2beens/contenthub/internal/admin"
	"github.com/2beens/contenthub/internal/config"
	"github.com/2beens/contenthub/internal/db"
	"github.com/2beens/contenthub/pkg"

	log "github.com/sirupsen/logrus"
)

const minPasswordLen = 12

func main() {
	env := flag.String("env", "development", "environment [prod | production | dev | development | ddev | dockerdev ]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	command := flag.String("cmd", "list", "command [create | reset-password | list]")
	email := flag.String("email", "", "admin email")
	password := flag.String("password", "", "admin password (or CONTENTHUB_ADMIN_PASSWORD env var)")
	flag.Parse()

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		log.Fatalf("load config: %s", err)
	}

	if *password == "" {
		*password = os.Getenv("CONTENTHUB_ADMIN_PASSWORD")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	dbParams := db.NewDBPoolParams{
		DBHost:     cfg.PostgresHost,
		DBPort:     cfg.PostgresPort,
		DBName:     cfg.PostgresDBName,
		DBUser:     cfg.PostgresUser,
		DBPassword: os.Getenv("CONTENTHUB_POSTGRES_PASS"),
	}
	if err := db.RunMigrations(dbParams.ConnString()); err != nil {
		log.Fatalf("run migrations: %s", err)
	}

	dbPool, err := db.NewDBPool(ctx, dbParams)
	if err != nil {
		log.Fatalf("new db pool: %s", err)
	}
	defer dbPool.Close()

	repo := admin.NewRepo(dbPool)
	switch *command {
	case "create":
		err = createAdmin(ctx, repo, *email, *password)
	case "reset-password":
		err = resetPassword(ctx, repo, *email, *password)
	case "list":
		err = listAdmins(ctx, repo)
	default:
		err = fmt.Errorf("unknown command: %s", *command)
	}
	if err != nil {
		log.Errorf("%s failed: %s", *command, err)
		dbPool.Close()
		os.Exit(1)
	}
}

func validateCredentials(email, password string) error {
	if email == "" {
		return errors.New("email not set")
	}
	if len(password) < minPasswordLen {
		return fmt.Errorf("password must be at least %d characters long", minPasswordLen)
	}
	return nil
}

func createAdmin(ctx context.Context, repo *admin.Repo, email, password string) error {
	if err := validateCredentials(email, password); err != nil {
		return err
	}

	hash, err := pkg.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	a, err := repo.Add(ctx, &admin.Admin{
		Email:        email,
		PasswordHash: hash,
		Role:         admin.RoleAdmin,
	})
	if err != nil {
		return err
	}

	log.Printf("admin created: %s [%s]", a.Email, a.ID)
	return nil
}

func resetPassword(ctx context.Context, repo *admin.Repo, email, password string) error {
	if err := validateCredentials(email, password); err != nil {
		return err
	}

	a, err := repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	hash, err := pkg.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := repo.UpdatePasswordHash(ctx, a.ID, hash); err != nil {
		return err
	}

	log.Printf("password updated for admin: %s [%s]", a.Email, a.ID)
	return nil
}

func listAdmins(ctx context.Context, repo *admin.Repo) error {
	admins, err := repo.List(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tEMAIL\tROLE\tCREATED")
	for _, a := range admins {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.ID, a.Email, a.Role, a.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}
