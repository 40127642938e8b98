// cmd/worker/main.go
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	"github.com/unclebandit/mailblast-backend/internal/config"
	"github.com/unclebandit/mailblast-backend/internal/db"
	"github.com/unclebandit/mailblast-backend/internal/logger"
	"github.com/unclebandit/mailblast-backend/internal/mailer"
	"github.com/unclebandit/mailblast-backend/internal/metrics"
	"github.com/unclebandit/mailblast-backend/internal/model"
	"github.com/unclebandit/mailblast-backend/internal/queue"
	"github.com/unclebandit/mailblast-backend/internal/repository"
	"github.com/unclebandit/mailblast-backend/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to db")
	}
	defer conn.Close()

	q, err := queue.NewAMQP(cfg.Queue)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to queue")
	}
	defer q.Close()

	campaignRepo := &repository.CampaignRepository{DB: conn}
	contactRepo := &repository.ContactRepository{DB: conn}
	deliveryRepo := &repository.DeliveryRepository{DB: conn}
	attachmentRepo := &repository.AttachmentRepository{DB: conn}

	sender := mailer.NewSMTPSender(cfg.SMTP, log)
	rate := service.NewRateController(cfg.Rate)

	worker := service.NewDeliveryWorker(
		campaignRepo,
		contactRepo,
		deliveryRepo,
		attachmentRepo,
		sender,
		rate,
		cfg.Worker.MaxThrottleRetries,
		log,
	)

	deliveries, err := q.Consume()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register consumer")
	}

	log.Info().Str("queue", cfg.Queue.TaskQueue).Msg("worker running, waiting for tasks")

	// Tasks are processed strictly one at a time; the rate controller's
	// sleep is the deliberate serialization point.
	for d := range deliveries {
		handle(d, worker, q, cfg.Queue.MaxRedeliver, log)
	}
}

func handle(d amqp.Delivery, worker *service.DeliveryWorker, q *queue.AMQPQueue, maxRedeliver int, log zerolog.Logger) {
	var task model.RecipientTask
	if err := json.Unmarshal(d.Body, &task); err != nil {
		log.Warn().Err(err).Msg("invalid task payload, dropping")
		d.Ack(false)
		return
	}

	err := worker.ProcessTask(task)
	if err == nil {
		d.Ack(false)
		return
	}

	// Systemic failure: keep the task alive. Republish with a bumped retry
	// counter so redeliveries stay bounded, then dead-letter.
	retries := queue.RetryCount(d)
	if retries < maxRedeliver {
		if reqErr := q.Requeue(d.Body, retries+1); reqErr != nil {
			log.Error().Err(reqErr).Msg("requeue failed, nacking for broker redelivery")
			d.Nack(false, true)
			return
		}
		log.Warn().Err(err).Int("retry", retries+1).
			Str("campaign_id", task.CampaignID).
			Msg("task requeued after systemic failure")
		d.Ack(false)
		return
	}

	if dlErr := q.PublishDead(d.Body, retries); dlErr != nil {
		log.Error().Err(dlErr).Msg("dead letter publish failed, nacking")
		d.Nack(false, true)
		return
	}
	metrics.TasksDeadLettered.Inc()
	log.Error().Err(err).
		Str("campaign_id", task.CampaignID).
		Str("recipient", task.Email).
		Msg("task dead-lettered after max redeliveries")
	d.Ack(false)
}
