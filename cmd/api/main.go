package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"todopad.org/internal/auth"
	"todopad.org/internal/config"
	"todopad.org/internal/httpapi"
	"todopad.org/internal/obs"
	"todopad.org/internal/store/pg"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	verifier, err := auth.NewVerifier(auth.Config{
		Domain:     cfg.Auth.Domain,
		Audience:   cfg.Auth.Audience,
		Algorithms: []string{cfg.Auth.Algorithm},
	})
	if err != nil {
		log.Fatalf("configure token verifier: %v", err)
	}

	store, err := pg.Open(cfg.DB.DSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	api := httpapi.New(httpapi.ReadyProbe{DB: store.DB()}, version, verifier, store)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting %s %s on %s", cfg.App.Name, version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
