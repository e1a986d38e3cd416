package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/yunojang/backend/internal/domain/entity"
	"github.com/yunojang/backend/internal/domain/usecase"
	psqlRepo "github.com/yunojang/backend/internal/repository/psql"
	"github.com/yunojang/backend/internal/repository/rabbitmq"
	"github.com/yunojang/backend/internal/repository/redisq"
	s3Repo "github.com/yunojang/backend/internal/repository/s3"
	"github.com/yunojang/backend/internal/repository/ytdlp"
	"github.com/yunojang/backend/pkg/client/psql"
	redisGo "github.com/yunojang/backend/pkg/client/redis"
	s3ClientGo "github.com/yunojang/backend/pkg/client/s3"
)

type Config struct {
	RedisAddr string
	RedisDB   int

	PSQLHost     string
	PSQLPort     int
	PSQLUser     string
	PSQLPassword string
	PSQLDBName   string
	PSQLSSLMode  string

	S3Host      string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string

	RabbitMQURL string

	IngestWorkDir string
	Concurrency   int
}

func main() {
	cfg := loadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)

	redisClient, err := redisGo.NewRedisClient(context.Background(), redisGo.Config{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}

	queue := redisq.NewQueue(redisClient, redisq.DefaultRetention)
	progress := redisq.NewProgressPublisher(redisClient)

	db, err := psql.NewPostgresDB(psql.Config{
		Host:     cfg.PSQLHost,
		User:     cfg.PSQLUser,
		Password: cfg.PSQLPassword,
		DBName:   cfg.PSQLDBName,
		Port:     cfg.PSQLPort,
		SslMode:  cfg.PSQLSSLMode,
	})
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}

	if err := db.AutoMigrate(&entity.Project{}, &entity.PipelineStage{}); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}

	projectRepo := psqlRepo.NewGormProjectRepo(db)

	s3Client, err := s3ClientGo.NewS3Client(cfg.S3Host, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket)
	if err != nil {
		log.Fatalf("failed to init s3 client: %v", err)
	}
	storage := s3Repo.NewS3Repo(s3Client)

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()

	jobStarter, err := rabbitmq.NewJobPublisher(conn, "projects.exchange", "projects.process")
	if err != nil {
		log.Fatalf("failed to init publisher: %v", err)
	}

	finalizeUC := usecase.NewFinalizeUseCase(projectRepo, projectRepo, jobStarter)
	ingestUC := usecase.NewIngestUseCase(queue, storage, ytdlp.NewClient(), progress, finalizeUC, cfg.IngestWorkDir)

	consumer := redisq.NewIngestConsumer(queue, ingestUC, cfg.Concurrency)

	go func() {
		if err := consumer.Start(ctx); err != nil {
			log.Fatalf("consumer stopped with error: %v", err)
		}
	}()

	log.Println("Ingest worker started")
	<-sigCh
	log.Println("Shutting down ingest worker...")
	cancel()
	time.Sleep(time.Second)
}

func loadConfig() Config {
	if err := godotenv.Load("./.env.local"); err != nil {
		log.Println("No .env file found. Falling back to OS environment variables.")
	}
	mustGetEnv := func(key string) string {
		val := os.Getenv(key)
		if val == "" {
			log.Fatalf("Environment variable %s is not set", key)
		}
		return val
	}

	// REDIS
	redisHost := mustGetEnv("REDIS_HOST")
	redisPort := mustGetEnv("REDIS_PORT")
	redisDBStr := os.Getenv("REDIS_DB")
	if redisDBStr == "" {
		redisDBStr = "0"
	}
	redisDB, err := strconv.Atoi(redisDBStr)
	if err != nil {
		log.Fatalf("Invalid REDIS_DB value: %v", err)
	}

	// PSQL
	psqlPortStr := mustGetEnv("PSQL_PORT")
	psqlPort, err := strconv.Atoi(psqlPortStr)
	if err != nil {
		log.Fatalf("Invalid PSQL_PORT value: %v", err)
	}

	// RABBITMQ
	rmqUser := mustGetEnv("RABBITMQ_USER")
	rmqPassword := mustGetEnv("RABBITMQ_PASSWORD")
	rmqHost := mustGetEnv("RABBITMQ_HOST")
	rmqPort := mustGetEnv("RABBITMQ_PORT")
	rabbitMQURL := "amqp://" + rmqUser + ":" + rmqPassword + "@" + rmqHost + ":" + rmqPort + "/"

	// WORKER ENV
	concurrencyStr := os.Getenv("WORKER_CONCURRENCY")
	if concurrencyStr == "" {
		concurrencyStr = "4"
	}
	concurrency, err := strconv.Atoi(concurrencyStr)
	if err != nil {
		log.Fatalf("Invalid WORKER_CONCURRENCY value: %v", err)
	}

	return Config{
		RedisAddr: redisHost + ":" + redisPort,
		RedisDB:   redisDB,

		PSQLHost:     mustGetEnv("PSQL_HOST"),
		PSQLPort:     psqlPort,
		PSQLUser:     mustGetEnv("PSQL_USER"),
		PSQLPassword: mustGetEnv("PSQL_PASSWORD"),
		PSQLDBName:   mustGetEnv("PSQL_DB"),
		PSQLSSLMode:  mustGetEnv("PSQL_SSLMODE"),

		S3Host:      mustGetEnv("S3_HOST") + ":" + mustGetEnv("S3_PORT"),
		S3Bucket:    mustGetEnv("S3_BUCKET"),
		S3AccessKey: mustGetEnv("S3_ACCESS_KEY"),
		S3SecretKey: mustGetEnv("S3_SECRET_KEY"),

		RabbitMQURL: rabbitMQURL,

		IngestWorkDir: mustGetEnv("INGEST_WORKDIR"),
		Concurrency:   concurrency,
	}
}
