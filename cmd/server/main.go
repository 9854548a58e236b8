package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/openlabtz/lims-backend/internal/config"
	"github.com/openlabtz/lims-backend/internal/database"
	"github.com/openlabtz/lims-backend/internal/handler"
	"github.com/openlabtz/lims-backend/internal/migrations"
	"github.com/openlabtz/lims-backend/internal/queue"
	"github.com/openlabtz/lims-backend/internal/repository"
	"github.com/openlabtz/lims-backend/internal/router"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := migrations.Apply(ctx, db); err != nil {
		cancel()
		log.Fatalf("migrations: %v", err)
	}
	cancel()

	rdb := config.NewRedisClient() // nil when Redis is unreachable; features degrade

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	verifyToks := repository.NewVerificationTokenRepo(db)
	departments := repository.NewDepartmentRepo(db)
	divisions := repository.NewDivisionRepo(db)
	customers := repository.NewCustomerRepo(db)
	ingredients := repository.NewIngredientRepo(db)
	samples := repository.NewSampleRepo(db)
	tests := repository.NewTestRepo(db)
	payments := repository.NewPaymentRepo(db)
	results := repository.NewResultRepo(db)

	h := router.Handlers{
		Auth:       handler.NewAuthHandler(cfg, users, tokens, verifyToks),
		Submission: handler.NewSubmissionHandler(cfg, db, customers, ingredients, samples, tests, payments),
		SampleFlow: handler.NewSampleWorkflowHandler(db, samples, tests, users, results, ingredients),
		TestFlow:   handler.NewTestWorkflowHandler(db, tests, samples, users, results, ingredients, customers),
		Payment:    handler.NewPaymentHandler(payments),
		Dashboard:  handler.NewDashboardHandler(users, departments, divisions, customers, ingredients, samples, tests, payments),
		Users:      handler.NewUserAdminHandler(cfg, users),
		Org:        handler.NewOrgHandler(departments, divisions),
		Catalog:    handler.NewCatalogHandler(ingredients),
		Customers:  handler.NewCustomerCRUDHandler(customers),
		Lab:        handler.NewLabCRUDHandler(samples, tests, results, payments, customers),
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	router.Register(e, cfg, h, rdb)

	smtpPort, _ := strconv.Atoi(cfg.SMTPPort)
	go queue.StartEmailConsumer(os.Getenv("RABBITMQ_URL"), queue.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     smtpPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.MailFrom,
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
