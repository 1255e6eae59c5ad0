package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/rabbitmq"
	"github.com/wb-go/wbf/redis"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	cfgman "github.com/Murudula29/Dosemate/internal/config"
	"github.com/Murudula29/Dosemate/internal/delivery/handlers"
	"github.com/Murudula29/Dosemate/internal/delivery/middleware"
	"github.com/Murudula29/Dosemate/internal/dispatcher"
	"github.com/Murudula29/Dosemate/internal/domain"
	"github.com/Murudula29/Dosemate/internal/events"
	"github.com/Murudula29/Dosemate/internal/gateway/sms"
	"github.com/Murudula29/Dosemate/internal/migrator"
	"github.com/Murudula29/Dosemate/internal/recovery"
	"github.com/Murudula29/Dosemate/internal/repository/pg"
	"github.com/Murudula29/Dosemate/internal/scheduler"
	"github.com/Murudula29/Dosemate/internal/service"
)

// Application is the top-level composition root.
type Application struct {
	config *cfgman.Config
	server *ginext.Engine

	db       *dbpg.DB
	redis    *redis.Client
	rabbit   *rabbitmq.Connection
	rabbitCh *rabbitmq.Channel

	scheduler *scheduler.Scheduler
	loader    *recovery.Loader
	service   *service.RecordService
}

// New loads the configuration and prepares the application.
func New() (*Application, error) {
	cfg, err := cfgman.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := initLogger(cfg.Logging.Level); err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	return &Application{config: cfg}, nil
}

// Run dispatches the command given on the command line.
func (a *Application) Run() error {
	if len(os.Args) < 2 {
		a.printUsage()
		return fmt.Errorf("no command specified")
	}

	command := os.Args[1]

	switch command {
	case "runserver":
		return a.runServer()
	case "migrate":
		return a.runMigrate()
	case "health":
		return a.runHealthCheck()
	default:
		a.printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func (a *Application) printUsage() {
	fmt.Println("Dosemate - medication and appointment reminder service")
	fmt.Println()
	fmt.Println("Available commands:")
	fmt.Println("  runserver    - start the HTTP server and the notification engine")
	fmt.Println("  migrate up   - apply migrations")
	fmt.Println("  migrate down - roll back migrations")
	fmt.Println("  health       - check backing service connectivity")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  dosemate runserver")
	fmt.Println("  dosemate migrate up")
	fmt.Println("  dosemate health")
}

// runServer wires everything together and serves until a shutdown signal.
// Startup order matters: the scheduler loop starts first, then the recovery
// loader re-arms persisted tasks, and only then does the API begin accepting
// new scheduling requests.
func (a *Application) runServer() error {
	zlog.Logger.Info().Msg("starting Dosemate server")

	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := a.initConnections(); err != nil {
		return fmt.Errorf("failed to init connections: %w", err)
	}
	defer a.cleanup()

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		a.scheduler.Run(ctx)
	}()

	if err := a.loader.Run(ctx); err != nil {
		return fmt.Errorf("recovery failed: %w", err)
	}

	a.setupHTTPServer()

	zlog.Logger.Info().
		Str("address", a.config.HTTP.GetConnectionString()).
		Msg("HTTP server starting")

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.server.Run(a.config.HTTP.GetConnectionString())
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("HTTP server error: %w", err)
	case <-ctx.Done():
		zlog.Logger.Info().Msg("received shutdown signal")
		<-schedulerDone
		return nil
	}
}

// initConnections opens every backing connection and builds the object graph.
func (a *Application) initConnections() error {
	var err error

	a.db, err = initDatabase(a.config.Database)
	if err != nil {
		return fmt.Errorf("failed to init database: %w", err)
	}

	a.redis, err = initRedis(a.config.Redis)
	if err != nil {
		return fmt.Errorf("failed to init redis: %w", err)
	}

	a.rabbit, err = rabbitmq.Connect(a.config.RabbitMQ.URL,
		a.config.RabbitMQ.ConnectRetries, a.config.RabbitMQ.ConnectPause)
	if err != nil {
		return fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	a.rabbitCh, err = a.rabbit.Channel()
	if err != nil {
		return fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}
	zlog.Logger.Info().Msg("rabbitmq connection established")

	return a.initServices()
}

func (a *Application) initServices() error {
	taskRepo := pg.NewTaskRepo(a.db)
	recordRepo := pg.NewRecordRepo(a.db)

	publisher, err := events.NewPublisher(a.rabbitCh, retry.Strategy{
		Attempts: a.config.RabbitMQ.PublishAttempts,
		Delay:    a.config.RabbitMQ.PublishDelay,
		Backoff:  float64(a.config.RabbitMQ.PublishBackoff),
	})
	if err != nil {
		return err
	}

	smsClient := sms.NewClient(sms.Config{
		BaseURL: a.config.Gateway.BaseURL,
		APIKey:  a.config.Gateway.APIKey,
		From:    a.config.Gateway.From,
		Timeout: a.config.Gateway.Timeout,
	})

	disp := dispatcher.New(taskRepo, smsClient, publisher, dispatcher.Config{
		MaxAttempts: a.config.Dispatch.MaxAttempts,
		SendTimeout: a.config.Gateway.Timeout,
		Backoff: dispatcher.Backoff{
			Base:   a.config.Dispatch.BackoffBase,
			Cap:    a.config.Dispatch.BackoffCap,
			Jitter: a.config.Dispatch.BackoffJitter,
		},
	})

	a.scheduler = scheduler.New(taskRepo, disp, scheduler.Config{
		Workers: a.config.Dispatch.Workers,
	})
	disp.SetArmer(a.scheduler)

	a.loader = recovery.New(taskRepo, a.scheduler, recovery.Config{
		GraceWindow: a.config.Recovery.GraceWindow,
	})

	a.service = service.NewRecordService(recordRepo, taskRepo,
		a.scheduler, a.redis, a.config.Cache.TaskTTL)

	return nil
}

func (a *Application) setupHTTPServer() {
	a.server = ginext.New(gin.ReleaseMode)
	a.server.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowCredentials: true,
	}))
	a.server.Use(middleware.RequestIDMiddleware())
	a.server.Use(middleware.LoggingMiddleware())

	h := handlers.NewHandlersSet(a.service)

	api := a.server.RouterGroup.Group("api")

	reminders := api.Group("reminders")
	reminders.POST("/", h.CreateRecordHandler(domain.EntityReminder))
	reminders.GET("/:id", h.GetRecordHandler(domain.EntityReminder))
	reminders.PUT("/:id", h.UpdateRecordHandler(domain.EntityReminder))
	reminders.DELETE("/:id", h.DeleteRecordHandler(domain.EntityReminder))

	appointments := api.Group("appointments")
	appointments.POST("/", h.CreateRecordHandler(domain.EntityAppointment))
	appointments.GET("/:id", h.GetRecordHandler(domain.EntityAppointment))
	appointments.PUT("/:id", h.UpdateRecordHandler(domain.EntityAppointment))
	appointments.DELETE("/:id", h.DeleteRecordHandler(domain.EntityAppointment))

	api.GET("/tasks/:id", h.GetTaskHandler)
}

// runMigrate applies or rolls back migrations.
func (a *Application) runMigrate() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("migrate command requires direction (up/down)")
	}

	direction := os.Args[2]

	switch direction {
	case "up":
		return a.runMigrateUp()
	case "down":
		return a.runMigrateDown()
	default:
		return fmt.Errorf("unknown migrate direction: %s (use up/down)", direction)
	}
}

func (a *Application) runMigrateUp() error {
	zlog.Logger.Info().Msg("running migrations up")

	db, err := initDatabase(a.config.Database)
	if err != nil {
		return fmt.Errorf("failed to init database: %w", err)
	}
	defer func(master *sql.DB) {
		_ = master.Close()
	}(db.Master)

	m, err := migrator.NewMigrator(db.Master, a.config.Migrations.Path)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := m.Up(); err != nil {
		return fmt.Errorf("migration up failed: %w", err)
	}

	zlog.Logger.Info().Msg("migrations applied successfully")
	return nil
}

func (a *Application) runMigrateDown() error {
	zlog.Logger.Info().Msg("running migrations down")

	db, err := initDatabase(a.config.Database)
	if err != nil {
		return fmt.Errorf("failed to init database: %w", err)
	}
	defer func(master *sql.DB) {
		_ = master.Close()
	}(db.Master)

	m, err := migrator.NewMigrator(db.Master, a.config.Migrations.Path)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := m.Down(); err != nil {
		return fmt.Errorf("migration down failed: %w", err)
	}

	zlog.Logger.Info().Msg("migrations rolled back successfully")
	return nil
}

// runHealthCheck pings every backing service.
func (a *Application) runHealthCheck() error {
	fmt.Println("Running health check...")

	if err := a.checkDatabase(); err != nil {
		return fmt.Errorf("database check failed: %w", err)
	}
	fmt.Println("Database connection: OK")

	if err := a.checkRedis(); err != nil {
		return fmt.Errorf("redis check failed: %w", err)
	}
	fmt.Println("Redis connection: OK")

	if err := a.checkRabbitMQ(); err != nil {
		return fmt.Errorf("rabbitmq check failed: %w", err)
	}
	fmt.Println("RabbitMQ connection: OK")

	fmt.Println("All health checks passed")
	return nil
}

func (a *Application) checkDatabase() error {
	db, err := initDatabase(a.config.Database)
	if err != nil {
		return err
	}
	defer func(master *sql.DB) {
		_ = master.Close()
	}(db.Master)

	return db.Master.Ping()
}

func (a *Application) checkRedis() error {
	client := redis.New(a.config.Redis.Addr, a.config.Redis.Password, a.config.Redis.DB)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return client.Ping(ctx).Err()
}

func (a *Application) checkRabbitMQ() error {
	conn, err := rabbitmq.Connect(a.config.RabbitMQ.URL, 1, time.Second)
	if err != nil {
		return err
	}
	return conn.Close()
}

func initDatabase(cfg cfgman.DatabaseConfig) (*dbpg.DB, error) {
	opts := &dbpg.Options{
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	}

	db, err := dbpg.New(cfg.DSN, nil, opts)
	if err != nil {
		return nil, err
	}

	if err := db.Master.Ping(); err != nil {
		return nil, err
	}

	zlog.Logger.Info().Msg("database connection established")
	return db, nil
}

func initRedis(cfg cfgman.RedisConfig) (*redis.Client, error) {
	client := redis.New(cfg.Addr, cfg.Password, cfg.DB)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	zlog.Logger.Info().Msg("redis connection established")
	return client, nil
}

func initLogger(level string) error {
	zlog.Init()

	zerologLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	return zlog.SetLevel(zerologLevel.String())
}

// cleanup releases every open connection.
func (a *Application) cleanup() {
	zlog.Logger.Info().Msg("cleaning up resources")

	if a.rabbitCh != nil {
		_ = a.rabbitCh.Close()
	}
	if a.rabbit != nil {
		_ = a.rabbit.Close()
	}
	if a.db != nil {
		_ = a.db.Master.Close()
	}

	zlog.Logger.Info().Msg("cleanup completed")
}
