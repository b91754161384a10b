package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/carloslauriano/sendMyFiles/config"
	"github.com/carloslauriano/sendMyFiles/notify"
	"github.com/carloslauriano/sendMyFiles/objectstore"
	"github.com/carloslauriano/sendMyFiles/server"
	"github.com/carloslauriano/sendMyFiles/storage"
	"github.com/carloslauriano/sendMyFiles/transfer"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "caminho do arquivo de configuração (padrão: ./config.yaml, opcional)")
	flag.Parse()

	// Carregar configuração
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Erro ao carregar configuração: %v", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Erro ao inicializar logger: %v", err)
	}
	defer logger.Sync()

	// Inicializar armazenamento
	store, err := storage.NewStorage(cfg)
	if err != nil {
		logger.Fatal("erro ao inicializar banco de dados", zap.Error(err))
	}
	if err := store.Open(); err != nil {
		logger.Fatal("erro ao abrir banco de dados", zap.String("type", cfg.Database.Type), zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	objects, err := objectstore.New(ctx, cfg.Storage)
	cancel()
	if err != nil {
		store.Close()
		logger.Fatal("erro ao inicializar armazenamento de objetos", zap.String("backend", cfg.Storage.Backend), zap.Error(err))
	}

	notifier := notify.New(cfg.SMTP, cfg.Transfer.LinkTTL, logger)

	engine := transfer.New(store, store, objects, notifier, transfer.Options{
		FreeQuotaBytes:   cfg.Transfer.FreeQuotaBytes,
		LinkTTL:          cfg.Transfer.LinkTTL,
		PresignTTL:       cfg.Transfer.PresignTTL,
		OperationTimeout: cfg.Transfer.OperationTimeout,
		TokenAttempts:    cfg.Transfer.TokenAttempts,
	}, logger)

	var redisClient *redis.Client
	var throttle server.Throttle
	if cfg.RateLimit.Enabled {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RateLimit.RedisAddr})
		throttle = server.NewRedisThrottle(redisClient, cfg.RateLimit.Requests, cfg.RateLimit.Window)
		logger.Info("limite de downloads ativo",
			zap.String("redis", cfg.RateLimit.RedisAddr),
			zap.Int("requests", cfg.RateLimit.Requests),
			zap.Duration("window", cfg.RateLimit.Window))
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := server.NewHTTPServer(cfg, server.NewRouter(cfg, engine, store, throttle, logger))

	go func() {
		logger.Info("servidor HTTP iniciado", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("erro no servidor HTTP", zap.Error(err))
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"http": func(ctx context.Context) error {
				logger.Info("encerrando servidor HTTP")
				return srv.Shutdown(ctx)
			},
		},
	)
	exitCode := <-wait

	// Os recursos só são fechados depois que as requisições em andamento terminam
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Warn("erro ao fechar conexão com Redis", zap.Error(err))
		}
	}
	if err := objects.Close(); err != nil {
		logger.Warn("erro ao fechar armazenamento de objetos", zap.Error(err))
	}
	if err := store.Close(); err != nil {
		logger.Warn("erro ao fechar banco de dados", zap.Error(err))
	}

	logger.Info("aplicação encerrada", zap.Int("exit_code", exitCode))
	logger.Sync()
	os.Exit(exitCode)
}

// newLogger cria o logger zap conforme a configuração
func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("nível de log inválido %q: %w", cfg.Level, err)
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	return zcfg.Build()
}
