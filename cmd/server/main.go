package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/rrrane/connect-four/internal/api"
	"github.com/rrrane/connect-four/internal/config"
	"github.com/rrrane/connect-four/internal/kafka"
	"github.com/rrrane/connect-four/internal/match"
	"github.com/rrrane/connect-four/internal/matchmaker"
	"github.com/rrrane/connect-four/internal/storage"
	"github.com/rrrane/connect-four/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if err := config.SetupLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatal().Err(err).Msg("invalid logging configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// PostgreSQL is optional
	var store api.Store
	pg, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Warn().Err(err).Msg("database not available, matches and solutions will not be persisted")
		pg = nil
	} else {
		store = pg
		defer pg.Close()
	}

	producer, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		log.Warn().Err(err).Msg("kafka producer not available")
	}
	defer producer.Close()

	var consumer *kafka.Consumer
	if producer.IsEnabled() {
		consumer, err = kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroup, cfg.KafkaTopic)
		if err != nil {
			log.Warn().Err(err).Msg("kafka consumer not available")
		} else {
			consumer.Start()
			defer consumer.Stop()
		}
	}

	mm := matchmaker.New(matchmaker.Config{
		Timeout:         cfg.MatchmakingTimeout,
		BotDepth:        cfg.BotDepth,
		ReconnectWindow: cfg.ReconnectWindow,
	})
	hub := websocket.NewHub(mm, websocket.Config{
		ReconnectWindow: cfg.ReconnectWindow,
		BotMoveDelay:    cfg.BotMoveDelay,
	})

	mm.SetOnGameStart(producer.EmitGameStart)
	hub.SetOnMove(producer.EmitMove)
	hub.SetOnGameEnd(func(m *match.Match) {
		producer.EmitGameEnd(m)

		if pg != nil {
			saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := pg.SaveGame(saveCtx, m); err != nil {
				log.Error().Err(err).Str("match", m.ID).Msg("save match")
			}
		}
	})

	go hub.Run(ctx)
	handler := websocket.NewHandler(hub, mm, cfg.MaxSolveDepth)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(api.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		apiHandlers := api.NewHandlers(store, mm, producer, consumer, api.Options{
			SearchTimeout:    cfg.SearchTimeout,
			MaxDepth:         cfg.MaxSolveDepth,
			ConnectedClients: hub.ClientCount,
		})
		apiHandlers.RegisterRoutes(r)
	})

	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeWs(hub, handler, w, r)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.SearchTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.Port).
			Int("botDepth", cfg.BotDepth).
			Bool("database", store != nil).
			Bool("kafka", producer.IsEnabled()).
			Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}
	log.Info().Msg("server exited properly")
}
