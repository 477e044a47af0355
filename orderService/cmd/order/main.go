package main

import (
	"context"
	"flag"
	"log"

	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/application/order"
	"github.com/nastyazhadan/spot-order-trigger/shared/config"
	zapLogger "github.com/nastyazhadan/spot-order-trigger/shared/interceptors/logger/zap"
)

func main() {
	envPath := flag.String("env", ".env", "optional dotenv file with ORDER_* variables")
	flag.Parse()

	cfg, err := config.Load(*envPath)
	if err != nil {
		log.Fatalf("config.Load: %v", err)
	}

	// fx logs through zap from the start, so the logger is up before the app is built.
	if err := zapLogger.Init(cfg.LogLevel, cfg.LogFormat == "json"); err != nil {
		log.Fatalf("zapLogger.Init: %v", err)
	}

	order.Run(context.Background(), cfg)
}
