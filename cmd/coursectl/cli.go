package main

import (
	"context"
	"log"
	"os"

	"github.com/msomdec/course-market/internal/config"
	"github.com/msomdec/course-market/internal/repository/sqlite"
	"github.com/msomdec/course-market/internal/service"
)

// appContext carries the stores and services the commands act on.
type appContext struct {
	db          *sqlite.DB
	auth        *service.AuthService
	catalog     *service.CatalogService
	enrollments *service.EnrollmentService
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	c := &appContext{
		db:          db,
		auth:        service.NewAuthService(db.Users(), cfg.JWTSecret, cfg.BcryptCost),
		catalog:     service.NewCatalogService(db.Courses()),
		enrollments: service.NewEnrollmentService(db.Enrollments(), db.Courses(), cfg.AccessTTL()),
	}

	rootCommand := newRootCommand(
		newMigrateCommand(c),
		newImportCatalogCommand(c),
		newPromoteAdminCommand(c),
		newResolvePaymentCommand(c),
		newStatsCommand(c),
	)

	if err := rootCommand.Run(context.Background(), os.Args); err != nil {
		db.Close()
		log.Fatal(err)
	}
}
