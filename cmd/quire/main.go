package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/term"

	"github.com/totegamma/quire"
	"github.com/totegamma/quire/client"
	"github.com/totegamma/quire/internal/config"
	"github.com/totegamma/quire/internal/infra/database"
	"github.com/totegamma/quire/internal/infra/repository/memory"
	"github.com/totegamma/quire/internal/infra/repository/mongodb"
	"github.com/totegamma/quire/internal/infra/repository/postgres"
	"github.com/totegamma/quire/internal/present/rest"
	"github.com/totegamma/quire/internal/service"
	"github.com/totegamma/quire/internal/usecase"
)

const version = "0.1.0"

const usage = `quire.

Usage:
    quire serve [--config=<path>]
    quire register --url=<url> --username=<username> --email=<email> [--password=<password>]
    quire -h | --help
    quire --version

Options:
    -h --help                  Show this screen.
    --version                  Show version.
    --config=<path>            Path to the yaml config file.
    --url=<url>                Base url of the quire server.
    --username=<username>      Account name.
    --email=<email>            Account email address.
    --password=<password>      Account password. Prompted for when omitted.`

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		panic(err)
	}

	if serve, _ := opts.Bool("serve"); serve {
		path, _ := opts.String("--config")
		if err := runServe(path); err != nil {
			slog.Error("server stopped", slog.String("error", err.Error()), slog.String("module", "main"))
			os.Exit(1)
		}
		return
	}

	if register, _ := opts.Bool("register"); register {
		if err := runRegister(opts); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}

func repositories(ctx context.Context, conf config.Config) (usecase.UserRepository, usecase.DocumentRepository, error) {
	switch conf.Server.Storage {
	case config.StoragePostgres:
		db, err := database.NewPostgres(conf.Server.PostgresDsn)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect database: %w", err)
		}
		if err := database.MigratePostgres(db); err != nil {
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		return postgres.NewUserRepository(db), postgres.NewDocumentRepository(db), nil
	case config.StorageMongo:
		db, err := database.NewMongo(ctx, conf.Server.MongoURI, conf.Server.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		if err := database.EnsureMongoIndexes(ctx, db); err != nil {
			return nil, nil, err
		}
		return mongodb.NewUserRepository(db), mongodb.NewDocumentRepository(db), nil
	case config.StorageMemory:
		return memory.NewUserRepository(), memory.NewDocumentRepository(), nil
	default:
		return nil, nil, fmt.Errorf("unknown storage %q", conf.Server.Storage)
	}
}

func setupTracing(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(
		ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", "quire"),
			attribute.String("service.version", version),
		)),
	)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}

func runServe(path string) error {
	conf, err := config.Load(path)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if conf.Server.EnableTrace {
		shutdown, err := setupTracing(ctx, conf.Server.TraceEndpoint)
		if err != nil {
			return fmt.Errorf("failed to setup tracing: %w", err)
		}
		defer func() {
			_ = shutdown(context.Background())
		}()
	}

	userRepo, documentRepo, err := repositories(ctx, conf)
	if err != nil {
		return err
	}

	bus := service.NewBus()
	defer bus.Close()

	if conf.Server.RedisAddr != "" {
		rdb := database.NewRedis(conf.Server.RedisAddr, conf.Server.RedisPassword, conf.Server.RedisDB)
		defer rdb.Close()
		signalService := service.NewSignalService(rdb)
		go signalService.Forward(ctx, bus.Subscribe(conf.Server.EventBuffer))
	}

	users := usecase.NewUserUsecase(userRepo, service.NewPasswordService(conf.Server.BcryptCost), bus)
	documents := usecase.NewDocumentUsecase(documentRepo, userRepo, bus)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware("quire"))
	}

	rest.NewHandler(users, documents, bus, conf.Server.EventBuffer).RegisterRoutes(e)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = e.Shutdown(shutdownCtx)
	}()

	slog.Info("quire listening", slog.String("addr", conf.Server.Listen), slog.String("storage", conf.Server.Storage), slog.String("module", "main"))
	err = e.Start(conf.Server.Listen)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func runRegister(opts docopt.Opts) error {
	url, _ := opts.String("--url")
	username, _ := opts.String("--username")
	email, _ := opts.String("--email")

	password, err := opts.String("--password")
	if err != nil || password == "" {
		fmt.Print("Enter password: ")
		passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return err
		}
		password = string(passwordBytes)
		fmt.Printf("\n")
	}

	cl, err := client.New(url)
	if err != nil {
		return err
	}

	resp, err := cl.Register(context.Background(), quire.RegisterRequest{
		Username: username,
		Password: password,
		Email:    email,
	})
	if err != nil {
		return err
	}

	switch resp.Status {
	case quire.RegisterSuccess:
		fmt.Println("registered", username)
		return nil
	default:
		return fmt.Errorf("registration %s: %s", resp.Status, resp.Message)
	}
}
