package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/yoockh/virtualvisits/config"
	"github.com/yoockh/virtualvisits/internal/api/handlers"
	"github.com/yoockh/virtualvisits/internal/api/middleware"
	"github.com/yoockh/virtualvisits/internal/api/routes"
	"github.com/yoockh/virtualvisits/internal/events"
	"github.com/yoockh/virtualvisits/internal/logger"
	"github.com/yoockh/virtualvisits/internal/metrics"
	"github.com/yoockh/virtualvisits/internal/notifications"
	"github.com/yoockh/virtualvisits/internal/providers/acs"
	"github.com/yoockh/virtualvisits/internal/providers/callautomation"
	"github.com/yoockh/virtualvisits/internal/providers/identity"
	mongorepo "github.com/yoockh/virtualvisits/internal/repositories/mongo"
	"github.com/yoockh/virtualvisits/internal/services"
	"github.com/yoockh/virtualvisits/internal/transcription"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("").WithError(err).Fatal("config load error")
	}
	l := logger.New(cfg.Server.LogLevel)
	m := metrics.DefaultMetrics

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := transcription.NewStore(l)
	hub := notifications.NewHub(l, m)

	// Redis relay (optional): fan-out across instances
	var notifier notifications.Broadcaster = hub
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = config.InitRedis(ctx, cfg.Redis)
		if err != nil {
			l.WithError(err).Fatal("redis init error")
		}
		relay := notifications.NewRedisRelay(rdb, cfg.Redis.Channel, hub, l)
		go runRelay(ctx, relay, l)
		notifier = relay
		l.Info("redis connected, notification relay enabled")
	}

	publisher := events.New(&events.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		Enabled: len(cfg.Kafka.Brokers) > 0,
	}, l, m)

	// MongoDB (optional): survey results
	var surveys mongorepo.SurveyRepository
	var mongoClient *mongo.Client
	if cfg.Mongo.URI != "" {
		mongoClient, err = config.InitMongo(ctx, cfg.Mongo)
		if err != nil {
			l.WithError(err).Fatal("mongo init error")
		}
		db := mongoClient.Database(cfg.Mongo.Database)
		if err := config.EnsureMongoIndexes(ctx, db); err != nil {
			l.WithError(err).Warn("ensure mongo indexes")
		}
		surveys = mongorepo.NewSurveyRepo(db)
		l.WithField("database", cfg.Mongo.Database).Info("mongo connected")
	}

	hc := &http.Client{Timeout: 30 * time.Second}
	var ids identity.Provider
	var calls callautomation.Client
	if cfg.UsesLocalIdentity() {
		ids = identity.NewLocalProvider(cfg.LocalTokenSecret, 24*time.Hour)
		l.Warn("no communication services connection string, issuing local development tokens")
	} else {
		conn, err := acs.ParseConnectionString(cfg.CommunicationServicesConnectionString)
		if err != nil {
			l.WithError(err).Fatal("communication services connection string")
		}
		ids = identity.NewRESTProvider(conn, hc)
		calls = callautomation.NewRESTClient(conn, hc)
		l.WithField("endpoint", conn.Endpoint.String()).Info("communication services configured")
	}

	transcriptions := services.NewTranscriptionService(store, calls, notifier, services.ConnectSettings{
		CallbackURI:  cfg.CallbackURI(),
		TransportURL: cfg.TranscriptionTransportURL(),
		Locale:       cfg.CallAutomation.TranscriptionLocale,
	}, m, l)
	callEvents := services.NewCallEventService(store, notifier, publisher, m, l)

	if cfg.Server.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(l))
	routes.RegisterRoutes(r, routes.Deps{
		Config:         handlers.NewConfigHandler(cfg.Client()),
		Token:          handlers.NewTokenHandler(services.NewTokenService(ids, cfg.TokenScopes)),
		Survey:         handlers.NewSurveyHandler(services.NewSurveyService(surveys)),
		CallAutomation: handlers.NewCallAutomationHandler(callEvents, l),
		Transcription:  handlers.NewTranscriptionHandler(transcriptions),
		TranscriptWS:   handlers.NewTranscriptionWSHandler(callEvents, l),
		Notifications:  handlers.NewNotificationHandler(hub, l),
		Gatherer:       prometheus.DefaultGatherer,
	})

	go reportStoreSize(ctx, store, m)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// no WriteTimeout: notification streams stay open
	}
	go func() {
		l.WithFields(logrus.Fields{"port": cfg.Server.Port, "callback_uri": cfg.CallbackURI()}).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()
	l.Info("shutting down")

	// end SSE streams first so Shutdown does not wait on them
	hub.CloseAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.WithError(err).Warn("server shutdown")
	}
	if err := publisher.Close(); err != nil {
		l.WithError(err).Warn("kafka writer close")
	}
	if mongoClient != nil {
		_ = mongoClient.Disconnect(shutdownCtx)
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}

// runRelay keeps the relay subscribed; while it is down the relay delivers
// broadcasts to this instance only.
func runRelay(ctx context.Context, relay *notifications.RedisRelay, l *logrus.Logger) {
	for {
		err := relay.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		l.WithError(err).Error("notification relay stopped, retrying")
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

func reportStoreSize(ctx context.Context, store *transcription.Store, m *metrics.Metrics) {
	t := time.NewTicker(15 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			st := store.Stats()
			m.RecordStoreSize(st.Connections, st.Sessions)
		}
	}
}
