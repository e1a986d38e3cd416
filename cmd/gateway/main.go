package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"

	v1 "github.com/yunojang/backend/internal/controller/http/v1"
	"github.com/yunojang/backend/internal/domain/entity"
	"github.com/yunojang/backend/internal/domain/usecase"
	psqlRepo "github.com/yunojang/backend/internal/repository/psql"
	"github.com/yunojang/backend/internal/repository/rabbitmq"
	"github.com/yunojang/backend/internal/repository/redisq"
	s3Repo "github.com/yunojang/backend/internal/repository/s3"
	"github.com/yunojang/backend/pkg/client/psql"
	redisGo "github.com/yunojang/backend/pkg/client/redis"
	s3ClientGo "github.com/yunojang/backend/pkg/client/s3"
	"github.com/yunojang/backend/pkg/middleware"
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
}

func main() {
	cfg := loadConfig()
	ctx := context.Background()

	r := gin.Default()

	redisClient, err := redisGo.NewRedisClient(ctx, redisGo.Config{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}

	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RedisClient: redisClient,
		Limit:       10,
		Window:      time.Second,
		KeyPrefix:   "rl:",
	})
	r.Use(rl)
	r.Use(middleware.BearerAuthMiddleware())

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
	queue := redisq.NewQueue(redisClient, redisq.DefaultRetention)

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

	registerUC := usecase.NewRegisterUseCase(queue)
	finalizeUC := usecase.NewFinalizeUseCase(projectRepo, projectRepo, jobStarter)
	projectUC := usecase.NewProjectUseCase(projectRepo)

	storageHandler := v1.NewStorageHandler(registerUC, storage, finalizeUC)
	projectHandler := v1.NewProjectHandler(projectUC)

	v1Group := r.Group("/api/v1")
	{
		v1Group.POST("/projects", projectHandler.CreateProject)
		v1Group.GET("/projects/:project_id", projectHandler.GetProject)
		v1Group.POST("/storage/register-source", storageHandler.RegisterSource)
		v1Group.POST("/storage/prepare-upload", storageHandler.PrepareUpload)
		v1Group.POST("/storage/finish-upload", storageHandler.FinishUpload)
		v1Group.GET("/storage/media/*object_key", storageHandler.MediaRedirect)
		v1Group.GET("/jobs/:job_id/status", storageHandler.JobStatus)
	}

	if err := r.Run(":8080"); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
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
	}
}
