// Package main 是应用程序的入口点。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"careercoach-go/internal/config"
	"careercoach-go/internal/handler"
	"careercoach-go/internal/middleware"
	"careercoach-go/internal/model"
	"careercoach-go/internal/pipeline"
	"careercoach-go/internal/repository"
	"careercoach-go/internal/service"
	"careercoach-go/pkg/database"
	"careercoach-go/pkg/es"
	"careercoach-go/pkg/kafka"
	"careercoach-go/pkg/llm"
	"careercoach-go/pkg/log"
	"careercoach-go/pkg/storage"
	"careercoach-go/pkg/token"
	"careercoach-go/pkg/tts"

	"github.com/gin-gonic/gin"
)

// newInterviewRepository 按配置选择会话存储。
func newInterviewRepository(store string) repository.InterviewRepository {
	switch strings.ToLower(strings.TrimSpace(store)) {
	case "", "mysql":
		return repository.NewInterviewRepository(database.DB)
	case "memory":
		log.Warnf("面试会话使用内存存储，重启后数据会丢失")
		return repository.NewMemoryInterviewRepository()
	default:
		log.Fatalf("未知的会话存储类型: %s", store)
		return nil
	}
}

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 1. 初始化配置
	config.Init(*configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化存储与中间件客户端
	database.InitMySQL(cfg.Database.MySQL, &model.User{}, &model.InterviewSession{}, &model.Turn{}, &model.Roadmap{})
	database.InitRedis(cfg.Database.Redis)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	kafka.InitProducer(cfg.Kafka)
	defer kafka.CloseProducer()

	// 4. 初始化 Repository
	userRepo := repository.NewUserRepository(database.DB)
	interviewRepo := newInterviewRepository(cfg.Interview.Store)
	roadmapRepo := repository.NewRoadmapRepository(database.DB)
	turnLock := repository.NewRedisTurnLock(database.RDB, time.Duration(cfg.Interview.TurnLockTTLSeconds)*time.Second)
	wsTickets := repository.NewWSTicketRepository(database.RDB, time.Minute)
	objectStore := storage.NewObjectStore(storage.MinioClient, cfg.MinIO.BucketName)
	indexer := es.NewIndexer(es.ESClient, cfg.Elasticsearch.IndexName)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	llmClient := llm.NewClient(cfg.LLM)
	speech := service.NewSpeechSynthesizer(tts.NewClient(cfg.TTS))

	userService := service.NewUserService(userRepo, jwtManager, database.RDB)
	interviewService := service.NewInterviewService(interviewRepo, turnLock)
	turnService := service.NewInterviewTurnService(
		interviewRepo,
		turnLock,
		service.NewPromptBuilder(rand.NewSource(time.Now().UnixNano())),
		llmClient,
		service.NewContractValidator(cfg.Interview.FallbackStatement),
		speech,
		kafka.NewPublisher(),
	)
	adminService := service.NewAdminService(userRepo, interviewService)
	roadmapService := service.NewRoadmapService(roadmapRepo, llmClient)
	searchService := service.NewSearchService(indexer)
	archiveService := service.NewArchiveService(interviewService, objectStore, pipeline.ArchiveKey)

	// 6. 启动后台归档消费者
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		kafka.StartConsumer(consumerCtx, cfg.Kafka, pipeline.NewArchiver(interviewRepo, objectStore, indexer))
	}()

	// 7. 设置 Gin 模式并注册路由
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())
	registerRoutes(r, jwtManager, routeHandlers{
		user:      handler.NewUserHandler(userService),
		auth:      handler.NewAuthHandler(userService),
		interview: handler.NewInterviewHandler(interviewService, turnService, archiveService),
		ws:        handler.NewInterviewWSHandler(turnService, userService, wsTickets),
		search:    handler.NewSearchHandler(searchService),
		roadmap:   handler.NewRoadmapHandler(roadmapService),
		admin:     handler.NewAdminHandler(adminService),
	}, userService)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}

	stopConsumer()
	select {
	case <-consumerDone:
	case <-ctx.Done():
		log.Warnf("等待 Kafka 消费者退出超时")
	}
	log.Info("服务已优雅关闭")
}

type routeHandlers struct {
	user      *handler.UserHandler
	auth      *handler.AuthHandler
	interview *handler.InterviewHandler
	ws        *handler.InterviewWSHandler
	search    *handler.SearchHandler
	roadmap   *handler.RoadmapHandler
	admin     *handler.AdminHandler
}

func registerRoutes(r *gin.Engine, jwtManager *token.JWTManager, h routeHandlers, userService service.UserService) {
	authMW := middleware.AuthMiddleware(jwtManager, userService)

	apiV1 := r.Group("/api/v1")
	{
		auth := apiV1.Group("/auth")
		{
			auth.POST("/refreshToken", h.auth.RefreshToken)
		}

		users := apiV1.Group("/users")
		{
			// 无需认证的路由
			users.POST("/register", h.user.Register)
			users.POST("/login", h.user.Login)

			authed := users.Group("/")
			authed.Use(authMW)
			{
				authed.GET("/me", h.user.GetProfile)
				authed.POST("/logout", h.user.Logout)
			}
		}

		interviews := apiV1.Group("/interviews")
		interviews.Use(authMW)
		{
			interviews.POST("", h.interview.Create)
			interviews.GET("", h.interview.List)
			interviews.POST("/conversation", h.interview.Conversation)
			interviews.GET("/search", h.search.SearchInterviews)
			interviews.GET("/ws-token", h.ws.IssueTicket)
			interviews.GET("/:id", h.interview.Get)
			interviews.POST("/:id/cancel", h.interview.Cancel)
			interviews.GET("/:id/archive", h.interview.Archive)
		}

		roadmaps := apiV1.Group("/roadmaps")
		roadmaps.Use(authMW)
		{
			roadmaps.POST("", h.roadmap.Generate)
			roadmaps.GET("", h.roadmap.List)
			roadmaps.GET("/:id", h.roadmap.Get)
		}

		// 管理员路由组，需要同时通过认证和管理员授权两个中间件
		admin := apiV1.Group("/admin")
		admin.Use(authMW, middleware.AdminAuthMiddleware())
		{
			admin.GET("/users/list", h.admin.ListUsers)
			admin.GET("/interviews", h.admin.ListInterviews)
			admin.PUT("/interviews/:id/cancel", h.admin.CancelInterview)
		}
	}

	// WebSocket 使用一次性票据认证
	r.GET("/interview/:token", h.ws.Handle)
}
