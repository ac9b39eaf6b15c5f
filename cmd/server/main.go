// Package main 是应用程序的入口点。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"knowledge-bot-go/internal/config"
	"knowledge-bot-go/internal/extract"
	"knowledge-bot-go/internal/handler"
	"knowledge-bot-go/internal/pipeline"
	"knowledge-bot-go/internal/repository"
	"knowledge-bot-go/internal/retrieval"
	"knowledge-bot-go/internal/service"
	"knowledge-bot-go/pkg/database"
	"knowledge-bot-go/pkg/embedding"
	"knowledge-bot-go/pkg/es"
	"knowledge-bot-go/pkg/kafka"
	"knowledge-bot-go/pkg/llm"
	"knowledge-bot-go/pkg/log"
	"knowledge-bot-go/pkg/storage"
	"knowledge-bot-go/pkg/tika"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	defaultPath := os.Getenv("KBOT_CONFIG")
	if defaultPath == "" {
		defaultPath = "./configs/config.yaml"
	}
	configPath := flag.String("config", defaultPath, "path to config.yaml")
	flag.Parse()

	// 1. 加载 .env 并初始化配置
	_ = godotenv.Load()
	config.Init(*configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. 初始化外部服务客户端与文档集合
	tikaClient := tika.NewClient(cfg.Tika)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)
	store := repository.NewDocumentRepository()
	if !llmClient.Configured() {
		log.Warnf("未配置 LLM API Key，问答请求将返回错误信息")
	}

	// 4. 选择检索策略，向量模式下初始化索引与入库管道
	var retriever retrieval.Retriever = retrieval.NewLexicalRetriever()
	var indexer pipeline.Indexer
	var producer *kafka.Producer
	var indexPinger handler.IndexPinger
	if cfg.Retrieval.Strategy == config.StrategyVector {
		index, err := initVectorIndex(ctx, cfg)
		if err != nil {
			log.Errorf("向量索引初始化失败，回退到词法检索: %v", err)
		} else {
			indexPinger = index
			retriever = retrieval.NewVectorRetriever(embeddingClient, index, cfg.Retrieval.TopK)
			processor := pipeline.NewProcessor(embeddingClient, index, embeddingClient.ModelVersion(), cfg.Retrieval)
			indexer = processor

			if cfg.Kafka.Brokers != "" {
				producer = kafka.NewProducer(cfg.Kafka)
				indexer = pipeline.NewAsyncIndexer(producer, processor)
				// 启动后台 Kafka 消费者
				go kafka.StartConsumer(ctx, cfg.Kafka, processor, initAttemptCounter(ctx, cfg.Database.Redis))
			}
		}
	}
	log.Infof("检索策略: %s", retriever.Strategy())

	// 5. 可选的上传历史与原始文件归档
	var opts []service.DocumentServiceOption
	if cfg.Database.MySQL.DSN != "" {
		if db, err := database.InitMySQL(cfg.Database.MySQL.DSN); err != nil {
			log.Errorf("MySQL 初始化失败，不记录上传历史: %v", err)
		} else if err := repository.AutoMigrate(db); err != nil {
			log.Errorf("upload_records 表迁移失败，不记录上传历史: %v", err)
		} else {
			opts = append(opts, service.WithUploadRecords(repository.NewUploadRepository(db)))
		}
	}
	if cfg.MinIO.Endpoint != "" {
		if archive, err := storage.NewArchive(ctx, cfg.MinIO); err != nil {
			log.Errorf("MinIO 初始化失败，不归档原始文件: %v", err)
		} else {
			opts = append(opts, service.WithArchiver(archive))
		}
	}

	// 6. 初始化 Service (依赖注入)
	documentService := service.NewDocumentService(store, extract.NewExtractor(tikaClient), indexer, opts...)
	chatService := service.NewChatService(store, retriever, llmClient, cfg.LLM.Prompt.System)

	// 7. 设置 Gin 模式并注册路由
	gin.SetMode(cfg.Server.Mode)
	r := handler.NewRouter(handler.RouterDeps{
		Documents: documentService,
		Chat:      chatService,
		Health: handler.HealthStatus{
			OpenAIConfigured:    llmClient.Configured(),
			EmbeddingConfigured: embeddingClient.Configured(),
			RetrievalStrategy:   retriever.Strategy(),
		},
		VectorIndex:    indexPinger,
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
	})

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

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}
	// 通知 Kafka 消费者退出
	cancel()
	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Errorf("关闭 Kafka 生产者失败: %v", err)
		}
	}
	log.Info("服务已优雅关闭")
}

// initVectorIndex 创建 Elasticsearch 客户端，确保分块索引存在并清空上次运行留下的分块。
// 文档集合只存在于进程内存中，启动时为空，索引必须与之一致。
func initVectorIndex(ctx context.Context, cfg config.Config) (*es.VectorIndex, error) {
	index, err := es.NewVectorIndex(cfg.Elasticsearch, cfg.Embedding.Dimensions)
	if err != nil {
		return nil, err
	}
	if err := index.EnsureIndex(ctx); err != nil {
		return nil, err
	}
	if err := index.DeleteAll(ctx); err != nil {
		return nil, fmt.Errorf("clear stale chunks: %w", err)
	}
	return index, nil
}

// initAttemptCounter 优先使用 Redis 记录 Kafka 消息的失败次数，不可用时使用进程内计数。
func initAttemptCounter(ctx context.Context, redisCfg config.RedisConfig) kafka.AttemptCounter {
	if redisCfg.Addr == "" {
		return database.NewMemoryAttemptCounter()
	}
	rdb, err := database.InitRedis(ctx, redisCfg.Addr, redisCfg.Password, redisCfg.DB)
	if err != nil {
		log.Errorf("Redis 初始化失败，使用进程内失败计数: %v", err)
		return database.NewMemoryAttemptCounter()
	}
	return database.NewRedisAttemptCounter(rdb)
}
