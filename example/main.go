package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	statebind "github.com/st-keller/statebind-client"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Sugar()

	// STATEBIND_PAGE_URL=http://localhost:8000/ go run ./example
	config, err := statebind.LoadConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	client, err := statebind.New(config, statebind.WithLogger(logger))
	if err != nil {
		log.Fatalf("failed to create binding client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = client.Start(ctx)
	cancel()
	if err != nil {
		log.Fatalf("failed to start binding client: %v", err)
	}
	defer client.Stop()

	decls, err := client.Declarations()
	if err != nil {
		log.Warnf("failed to index bindings: %v", err)
	}
	for _, d := range decls {
		log.Infof("bound %-8s %q (%d elements)", d.Kind, d.Key, d.Elements)
	}
	log.Infof("syncing with %s", client.Endpoint())

	// Fire an application event once connected, the way a click handler would.
	go func() {
		for i := 0; i < 10; i++ {
			time.Sleep(500 * time.Millisecond)
			if err := client.SendEvent("example-started"); err == nil {
				return
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-sigChan:
			log.Info("shutting down")
			return
		case <-ticker.C:
			status := client.Status()
			log.Infow("status",
				"state", status.State.String(),
				"attempts", status.Attempts,
				"state_keys", client.State().Keys(),
			)
		}
	}
}
