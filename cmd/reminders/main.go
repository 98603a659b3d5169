// Command reminders runs one mileage evaluation across all active shops and
// exits. It is meant for cron or a PaaS scheduler when the API process runs
// without its built-in scheduler.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kendall-kelly/autoshop-crm-api/config"
	"github.com/kendall-kelly/autoshop-crm-api/services"
	log "github.com/sirupsen/logrus"
)

func main() {
	asOf := flag.String("as-of", "", "evaluate as of this day (YYYY-MM-DD), default today")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	config.SetupLogger(cfg)

	day := time.Now()
	if *asOf != "" {
		if day, err = time.ParseInLocation("2006-01-02", *asOf, time.Local); err != nil {
			log.Fatalf("Invalid -as-of: %v", err)
		}
	}

	if err := config.ConnectDatabase(cfg.DatabaseURL); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	var publisher services.Publisher = services.LogPublisher{}
	if cfg.MQTTBrokerURL != "" {
		p, err := services.NewMQTTPublisher(cfg.MQTTBrokerURL, cfg.MQTTClientID+"-reminders")
		if err != nil {
			log.Fatalf("Failed to connect to MQTT broker: %v", err)
		}
		publisher = p
	}
	defer publisher.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	predictor := services.NewMileagePredictor(config.GetDB(),
		services.NewNotificationService(config.GetDB(), publisher, cfg.MQTTTopicPrefix),
		services.PredictorOptions{
			LookaheadDays: cfg.ReminderLookaheadDays,
			MinVisits:     cfg.MinVisitsForPrediction,
		})

	results, err := predictor.EvaluateAllShops(ctx, day)
	if err != nil {
		log.Fatalf("Evaluation failed: %v", err)
	}
	flagged, notified := 0, 0
	for _, predictions := range results {
		for _, p := range predictions {
			flagged++
			if p.Notified {
				notified++
			}
		}
	}
	log.WithFields(log.Fields{
		"shops":    len(results),
		"flagged":  flagged,
		"notified": notified,
		"as_of":    day.Format("2006-01-02"),
	}).Info("Mileage evaluation finished")
}
