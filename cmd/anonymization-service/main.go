package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/synaptica-ai/mlprofile/pkg/anonymize"
	"github.com/synaptica-ai/mlprofile/pkg/audit"
	"github.com/synaptica-ai/mlprofile/pkg/common/config"
	"github.com/synaptica-ai/mlprofile/pkg/common/database"
	"github.com/synaptica-ai/mlprofile/pkg/common/kafka"
	"github.com/synaptica-ai/mlprofile/pkg/common/logger"
	"github.com/synaptica-ai/mlprofile/pkg/common/models"
	"github.com/synaptica-ai/mlprofile/pkg/compliance"
	"github.com/synaptica-ai/mlprofile/pkg/dlp"
	"github.com/synaptica-ai/mlprofile/pkg/embedding"
	"github.com/synaptica-ai/mlprofile/pkg/features"
	"github.com/synaptica-ai/mlprofile/pkg/ops"
	"github.com/synaptica-ai/mlprofile/pkg/pipeline"
	"github.com/synaptica-ai/mlprofile/pkg/pseudonym"
	"github.com/synaptica-ai/mlprofile/pkg/storage"
	"github.com/synaptica-ai/mlprofile/pkg/vector"
)

const serviceName = "anonymization-service"

func main() {
	logger.Init()
	cfg := config.Load()

	switch {
	case cfg.AuditHashSecret != "":
		logger.SetSubjectKey(cfg.AuditHashSecret)
	case cfg.PseudonymSecret != "":
		logger.SetSubjectKey(cfg.PseudonymSecret)
	default:
		logger.Log.Warn("no AUDIT_HASH_SECRET or PSEUDONYM_SECRET, subject hashes change on restart")
	}

	db, err := database.GetPostgres(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer database.ClosePostgres()

	auditRepo := audit.NewRepository(db)
	profiles := storage.NewProfileRepository(db)
	releases := storage.NewReleaseLog(db)
	for name, migrate := range map[string]func() error{
		"audit":    auditRepo.AutoMigrate,
		"profiles": profiles.AutoMigrate,
		"releases": releases.AutoMigrate,
	} {
		if err := migrate(); err != nil {
			logger.Log.WithError(err).WithField("table", name).Fatal("failed to migrate tables")
		}
	}

	redisClient := database.GetRedis(cfg)
	defer database.CloseRedis()
	cache := storage.NewProfileCache(redisClient, cfg.ProfileCacheTTL)

	auditProducer := kafka.NewProducer(cfg, cfg.AuditTopic)
	defer auditProducer.Close()
	sink := audit.MultiSink{auditRepo, audit.NewEventSink(auditProducer, serviceName), audit.LogSink{}}

	engine, err := buildEngine(cfg, sink)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to build anonymization engine")
	}

	profileProducer := kafka.NewProducer(cfg, cfg.ProfilesTopic)
	defer profileProducer.Close()

	worker := &pipeline.Worker{
		Engine:    engine,
		Publisher: profileProducer,
		Store:     profiles,
		Cache:     cache,
		Releases:  releases,
		Config: pipeline.Config{
			Source:  serviceName,
			K:       cfg.KAnonymityK,
			Epsilon: cfg.DPEpsilon,
		},
	}

	consumer := kafka.NewConsumer(cfg, cfg.RawRecordsTopic, cfg.KafkaGroupID)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := consumer.Consume(ctx, worker.Handle); err != nil && !errors.Is(err, context.Canceled) {
			logger.Log.WithError(err).Fatal("consumer error")
		}
	}()

	router := ops.NewRouter(engine,
		ops.Check{Name: "postgres", Ping: database.Ping},
		ops.Check{Name: "redis", Ping: database.PingRedis},
	)
	ops.RegisterRotation(router, &pipeline.Rotation{Engine: engine, Store: profiles, Cache: cache})
	ops.RegisterProfiles(router, storage.NewLookup(cache, profiles))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":  cfg.ServerHost,
			"port":  cfg.ServerPort,
			"topic": cfg.RawRecordsTopic,
		}).Info("Anonymization Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Anonymization Service...")
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Anonymization Service stopped")
}

func buildEngine(cfg *config.Config, sink audit.Sink) (*anonymize.Engine, error) {
	vocab := features.DefaultVocabulary()
	if cfg.VocabularyPath != "" {
		loaded, err := features.LoadVocabulary(cfg.VocabularyPath)
		if err != nil {
			return nil, err
		}
		vocab = loaded
	}

	policy := features.DefaultPolicy()
	if ageGroup, err := models.ParseAgeGroup(cfg.DefaultAgeGroup); err == nil {
		policy.DefaultAgeGroup = ageGroup
	} else {
		logger.Log.WithError(err).Warn("invalid DEFAULT_AGE_GROUP, keeping policy default")
	}
	if cfg.DefaultTrimester >= 1 && cfg.DefaultTrimester <= 3 {
		policy.DefaultTrimester = cfg.DefaultTrimester
	}
	extractor, err := features.NewExtractor(vocab, policy)
	if err != nil {
		return nil, err
	}

	rules := dlp.DefaultRules()
	if cfg.DLPRulesPath != "" {
		if rules, err = dlp.LoadRules(cfg.DLPRulesPath); err != nil {
			return nil, err
		}
	}
	detector, err := dlp.NewDetector(rules)
	if err != nil {
		return nil, err
	}

	var embedder embedding.Embedder
	if cfg.EmbeddingURL != "" {
		httpEmbedder, err := embedding.NewHTTPEmbedder(embedding.HTTPConfig{
			URL:          cfg.EmbeddingURL,
			Model:        cfg.EmbeddingModel,
			Timeout:      cfg.EmbeddingTimeout,
			TokenURL:     cfg.EmbeddingTokenURL,
			ClientID:     cfg.EmbeddingClientID,
			ClientSecret: cfg.EmbeddingClientSecret,
		})
		if err != nil {
			return nil, err
		}
		embedder = httpEmbedder
	} else {
		logger.Log.Warn("EMBEDDING_URL not set, profiles with text will not be prediction ready")
	}

	generator := pseudonym.NewGenerator(cfg.PseudonymSecret,
		pseudonym.WithRotationDays(cfg.PseudonymRotationDays),
		pseudonym.WithIterations(cfg.PseudonymIterations),
		pseudonym.WithCacheSize(cfg.PseudonymCacheSize),
		pseudonym.WithAuditSink(sink),
	)

	engineCfg := anonymize.DefaultConfig()
	engineCfg.Workers = cfg.BatchWorkers
	engineCfg.EmbeddingDim = cfg.EmbeddingDim
	engineCfg.EmbeddingTimeout = cfg.EmbeddingTimeout
	engineCfg.ComplianceMinScore = cfg.ComplianceMinScore
	engineCfg.QualityMinScore = cfg.QualityMinScore
	engineCfg.MaxGeneralizationDepth = cfg.MaxGeneralization

	return anonymize.NewEngine(anonymize.Deps{
		Pseudonyms: generator,
		Extractor:  extractor,
		Preparator: vector.NewPreparator(detector),
		Validator:  compliance.NewValidator(detector, compliance.DefaultThresholds()),
		Embedder:   embedder,
		Sink:       sink,
	}, engineCfg)
}
