package main

import (
	"log"

	"regionmart/config"
	"regionmart/internal/commission"
	"regionmart/internal/database"
	"regionmart/internal/gateway/handlers"
	"regionmart/internal/utils"
)

func main() {
	cfg := config.LoadConfig()

	logger := utils.NewLogger("commissiond")
	defer logger.Sync()

	db, err := database.NewConnection(cfg.DB.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.MigrateCommissionDB(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	redisClient := config.NewRedisClient(cfg.Redis)
	defer redisClient.Close()

	configs := commission.NewConfigStore(db, logger)
	resolver := commission.NewResolver(commission.NewGormUserSource(db), logger)
	ledger := commission.NewLedger(db, logger)
	queue := commission.NewFailureQueue(db, logger)
	stats := commission.NewStatsAggregator(db, redisClient, logger)
	engine := commission.NewEngine(configs, resolver, ledger, queue, stats, logger)

	handler := handlers.NewCommissionHTTPHandler(engine, configs, ledger, stats, queue, resolver)

	r := newRouter(handler, db, redisClient)

	port := ":" + cfg.HTTP.Port
	log.Printf("Starting commission server on port %s", port)
	if err := r.Run(port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
