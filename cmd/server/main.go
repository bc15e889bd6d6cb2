package main

import (
	"net/http"
	"os"

	"github.com/sirupsen/logrus"

	"twentyone/internal/config"
	"twentyone/internal/db"
	"twentyone/internal/game"
	"twentyone/internal/notify"
	"twentyone/internal/server"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	if err := config.LoadDotEnv(".env"); err != nil {
		log.WithError(err).Warn("failed to load .env")
	}
	cfg := config.Load()

	conn, err := db.Open(os.Getenv("DATABASE_URL"), cfg)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	if err := db.Migrate(conn); err != nil {
		log.WithError(err).Fatal("database migration failed")
	}

	var extra []game.Notifier
	if cfg.RedisAddr != "" {
		publisher, err := notify.ConnectRedis(cfg.RedisAddr, cfg.RedisDB, log)
		if err != nil {
			log.WithError(err).Fatal("redis connection failed")
		}
		defer publisher.Close()
		extra = append(extra, publisher)
	}

	srv := server.New(conn, cfg, log, extra...)
	defer srv.Game().StopTimers()

	addr := ":8080"
	if env := os.Getenv("PORT"); env != "" {
		addr = ":" + env
	}
	log.WithField("addr", addr).Info("twentyone server listening")
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		log.Fatal(err)
	}
}
