// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mockinterview-go/internal/config"
	"mockinterview-go/internal/handler"
	"mockinterview-go/internal/middleware"
	"mockinterview-go/internal/orchestrator"
	"mockinterview-go/internal/pipeline"
	"mockinterview-go/internal/repository"
	"mockinterview-go/internal/service"
	"mockinterview-go/pkg/database"
	"mockinterview-go/pkg/es"
	"mockinterview-go/pkg/kafka"
	"mockinterview-go/pkg/log"
	"mockinterview-go/pkg/modelgateway"
	"mockinterview-go/pkg/progressstream"
	"mockinterview-go/pkg/storage"
	"mockinterview-go/pkg/token"
	"mockinterview-go/pkg/tts"
	"mockinterview-go/pkg/vectorstore"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、缓存、对象存储与搜索引擎
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	if err := vectorstore.EnsureIndex(es.ESClient, cfg.Elasticsearch.IndexName, cfg.Embedding.Dimensions); err != nil {
		log.Errorf("向量索引初始化失败 %s", err)
		return
	}
	kafka.InitProducers(cfg.Kafka)

	// 4. 初始化 Repository
	userRepo := repository.NewUserRepository(database.DB)
	recordRepo := repository.NewRecordRepository(database.DB)
	setRepo := repository.NewQuestionSetRepository(database.DB)
	sessionRepo := repository.NewSessionRepository(database.DB)
	checkpointRepo := repository.NewCheckpointRepository(database.DB)
	checkpointCacheRepo := repository.NewCheckpointCacheRepository(database.RDB)

	// 5. 初始化基础设施客户端
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	gateway := modelgateway.NewClient(cfg.LLM, cfg.Embedding)
	store := vectorstore.NewStore(database.DB, es.ESClient, cfg.Elasticsearch.IndexName)
	progress := progressstream.NewBus()
	ttsClient := tts.NewClient(cfg.TTS)

	// 6. 初始化 Service (依赖注入)
	userService := service.NewUserService(userRepo, jwtManager)
	adminService := service.NewAdminService(userRepo, recordRepo, sessionRepo)
	recordService := service.NewRecordService(recordRepo, cfg.MinIO)
	setService := service.NewQuestionSetService(recordRepo, setRepo)
	orch := orchestrator.New(gateway, store, ttsClient, sessionRepo, checkpointRepo, checkpointCacheRepo, cfg.Interview)
	interviewService := service.NewInterviewService(orch, sessionRepo)

	// 7. 初始化两条流水线并启动对应的 Kafka 消费者
	ingestProcessor := pipeline.NewIngestProcessor(gateway, store, recordRepo, progress, cfg.MinIO, cfg.Ingest)
	qgenProcessor := pipeline.NewQuestionGenProcessor(gateway, store, recordRepo, setRepo, progress, cfg.QGen)
	go kafka.StartIngestConsumer(cfg.Kafka, ingestProcessor)
	go kafka.StartQuestionGenConsumer(cfg.Kafka, qgenProcessor)

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	recordHandler := handler.NewRecordHandler(recordService, progress)
	questionSetHandler := handler.NewQuestionSetHandler(setService, progress)
	interviewHandler := handler.NewInterviewHandler(interviewService)
	userHandler := handler.NewUserHandler(userService)
	authHandler := handler.NewAuthHandler(userService)
	adminHandler := handler.NewAdminHandler(adminService, userService)

	// 9. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		auth := apiV1.Group("/auth")
		{
			auth.POST("/refreshToken", authHandler.RefreshToken)
		}

		users := apiV1.Group("/users")
		{
			users.POST("/register", userHandler.Register)
			users.POST("/login", userHandler.Login)

			authed := users.Group("/")
			authed.Use(middleware.AuthMiddleware(jwtManager, userService))
			{
				authed.GET("/me", userHandler.GetProfile)
				authed.POST("/logout", userHandler.Logout)
			}
		}

		records := apiV1.Group("/records")
		records.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			records.POST("", recordHandler.Upload)
			records.GET("", recordHandler.List)
			records.GET("/:recordId", recordHandler.Get)
			records.DELETE("/:recordId", recordHandler.Delete)
			records.GET("/:recordId/progress", recordHandler.Progress)
		}

		questionSets := apiV1.Group("/question-sets")
		questionSets.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			questionSets.POST("", questionSetHandler.Generate)
			questionSets.GET("/:setId", questionSetHandler.Get)
			questionSets.GET("/by-record/:recordId", questionSetHandler.ListByRecord)
			questionSets.GET("/by-record/:recordId/progress", questionSetHandler.Progress)
		}

		interviews := apiV1.Group("/interviews")
		interviews.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			interviews.POST("/start", interviewHandler.Start)
			interviews.POST("/turn", interviewHandler.Turn)
			interviews.POST("/turn-audio", interviewHandler.TurnAudio)
			interviews.GET("/sessions", interviewHandler.ListSessions)
			interviews.GET("/sessions/:threadId", interviewHandler.GetSession)
			interviews.POST("/:threadId/abandon", interviewHandler.Abandon)
			interviews.GET("/:threadId/logs", interviewHandler.GetLogs)
		}

		admin := apiV1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtManager, userService), middleware.AdminAuthMiddleware())
		{
			admin.GET("/users/list", adminHandler.ListUsers)
			admin.GET("/dashboard", adminHandler.Dashboard)
		}
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	// Kafka 消费者是无限循环，随进程退出而结束，这里不做额外的关闭编排。
	log.Info("服务已优雅关闭")
}
