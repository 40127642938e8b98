// internal/service/worker.go
package service

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
	"github.com/unclebandit/mailblast-backend/internal/mailer"
	"github.com/unclebandit/mailblast-backend/internal/metrics"
	"github.com/unclebandit/mailblast-backend/internal/model"
	"github.com/unclebandit/mailblast-backend/internal/repository"
)

// DeliveryWorker processes recipient tasks from the queue, one at a time.
// The rate controller's delay is the serialization point that keeps a single
// consumer under the transport's rate limit; throughput comes from running
// more worker processes, not from concurrency inside one.
type DeliveryWorker struct {
	CampaignRepo repository.CampaignRepositoryInterface
	ContactRepo  repository.ContactRepositoryInterface
	DeliveryRepo repository.DeliveryRepositoryInterface
	Blobs        repository.BlobStore
	Sender       mailer.Sender
	Rate         *RateController
	Logger       zerolog.Logger

	// MaxThrottleRetries bounds in-process re-attempts after throttle
	// signals before the task counts as failed.
	MaxThrottleRetries int

	// Sleep is swappable in tests; defaults to time.Sleep.
	Sleep func(time.Duration)
}

func NewDeliveryWorker(
	campaignRepo repository.CampaignRepositoryInterface,
	contactRepo repository.ContactRepositoryInterface,
	deliveryRepo repository.DeliveryRepositoryInterface,
	blobs repository.BlobStore,
	sender mailer.Sender,
	rate *RateController,
	maxThrottleRetries int,
	logger zerolog.Logger,
) *DeliveryWorker {
	return &DeliveryWorker{
		CampaignRepo:       campaignRepo,
		ContactRepo:        contactRepo,
		DeliveryRepo:       deliveryRepo,
		Blobs:              blobs,
		Sender:             sender,
		Rate:               rate,
		MaxThrottleRetries: maxThrottleRetries,
		Logger:             logger.With().Str("component", "delivery-worker").Logger(),
		Sleep:              time.Sleep,
	}
}

// ProcessTask runs one task through received → addressed → rendered →
// sent|retry|failed. A non-nil return means a systemic store failure: the
// caller should leave the task for queue redelivery instead of acking it.
// Malformed or unprocessable tasks return nil so they are acked and dropped.
func (w *DeliveryWorker) ProcessTask(task model.RecipientTask) error {
	log := w.Logger.With().
		Str("campaign_id", task.CampaignID).
		Str("recipient", task.Email).
		Str("role", roleLabel(task.Role)).
		Logger()

	addr := NormalizeAddress(task.Email)
	if addr == "" {
		log.Warn().Msg("task carries an undeliverable address, dropping")
		return nil
	}

	campaign, err := w.CampaignRepo.GetByID(task.CampaignID)
	if err != nil {
		var notFound *appErrors.ErrCampaignNotFound
		if errors.As(err, &notFound) {
			log.Warn().Msg("task references an unknown campaign, dropping")
			return nil
		}
		return err
	}

	delivery, err := w.DeliveryRepo.EnsurePending(campaign.ID, addr, task.Role)
	if err != nil {
		return err
	}
	if delivery.Status != model.DeliveryPending {
		// Queue redelivered a task that already finished; best-effort
		// idempotency says skip it.
		log.Info().Str("status", delivery.Status).Msg("task already settled, skipping redelivery")
		return nil
	}

	msg := w.resolveAddressing(campaign, addr)
	if err := w.render(campaign, addr, &msg); err != nil {
		return err
	}

	attachmentBytes := campaign.AttachmentBytes()
	attachments, permErr, sysErr := w.fetchAttachments(campaign)
	if sysErr != nil {
		return sysErr
	}
	if permErr != nil {
		return w.fail(log, delivery, campaign, permErr.Error(), 0, "attachment_missing")
	}
	msg.Attachments = attachments

	delay := w.Rate.DelayFor(attachmentBytes)
	for attempt := 0; ; attempt++ {
		w.Sleep(delay)

		messageID, sendErr := w.Sender.Send(msg)
		if sendErr == nil {
			w.Rate.NextDelay(OutcomeSuccess, 0)
			return w.succeed(log, delivery, campaign, messageID)
		}

		if errors.Is(sendErr, mailer.ErrThrottled) {
			metrics.MailThrottled.Inc()
			if attempt < w.MaxThrottleRetries {
				delay = w.Rate.NextDelay(OutcomeThrottled, attachmentBytes)
				log.Warn().
					Int("attempt", attempt+1).
					Dur("next_delay", delay).
					Msg("transport throttled, retrying")
				continue
			}
			return w.fail(log, delivery, campaign, sendErr.Error(), attempt, "throttle_exhausted")
		}

		// Permanent transport rejection: no retry.
		return w.fail(log, delivery, campaign, sendErr.Error(), attempt, "permanent")
	}
}

// resolveAddressing builds the header set for a task. Every physical
// recipient gets a message with To set to their own address and the full
// cc roster visible; addressing the copy to the campaign sender is exactly
// the bug this layout avoids.
func (w *DeliveryWorker) resolveAddressing(campaign *model.Campaign, recipient string) mailer.OutboundMessage {
	return mailer.OutboundMessage{
		From:    campaign.FromAddress,
		To:      recipient,
		Cc:      campaign.CCList,
		Bcc:     campaign.BCCList,
		Subject: campaign.Subject,
	}
}

func (w *DeliveryWorker) render(campaign *model.Campaign, addr string, msg *mailer.OutboundMessage) error {
	contact, err := w.ContactRepo.GetByEmail(addr)
	if err != nil {
		return err
	}
	fields := PersonalizationFields(contact, addr)
	msg.Subject = RenderTemplate(campaign.Subject, fields)
	msg.HTMLBody = RenderTemplate(campaign.Body, fields)
	return nil
}

// fetchAttachments resolves every blob reference. A missing blob is a
// permanent failure for the recipient; an unreachable store is systemic.
func (w *DeliveryWorker) fetchAttachments(campaign *model.Campaign) ([]mailer.Attachment, error, error) {
	if len(campaign.Attachments) == 0 {
		return nil, nil, nil
	}
	attachments := make([]mailer.Attachment, 0, len(campaign.Attachments))
	for _, ref := range campaign.Attachments {
		filename, content, err := w.Blobs.Get(ref.Key)
		if err != nil {
			var notFound *appErrors.ErrAttachmentNotFound
			if errors.As(err, &notFound) {
				return nil, err, nil
			}
			return nil, nil, err
		}
		if filename == "" {
			filename = ref.Filename
		}
		attachments = append(attachments, mailer.Attachment{Filename: filename, Content: content})
	}
	return attachments, nil, nil
}

func (w *DeliveryWorker) succeed(log zerolog.Logger, delivery *model.Delivery, campaign *model.Campaign, messageID string) error {
	transitioned, err := w.DeliveryRepo.MarkSent(delivery.ID, campaign.ID, messageID)
	if err != nil {
		// Mail went out but the store is unreachable. Surface it and let the
		// queue redeliver; the pending row means a rare duplicate send, which
		// is the accepted trade-off.
		log.Error().Err(err).Msg("sent but could not record, leaving for redelivery")
		return err
	}
	if transitioned {
		metrics.MailSent.Inc()
		log.Info().Str("message_id", messageID).Msg("delivered")
	}
	w.maybeComplete(log, campaign.ID)
	return nil
}

func (w *DeliveryWorker) fail(log zerolog.Logger, delivery *model.Delivery, campaign *model.Campaign, reason string, retries int, class string) error {
	transitioned, err := w.DeliveryRepo.MarkFailed(delivery.ID, campaign.ID, reason, retries)
	if err != nil {
		log.Error().Err(err).Msg("could not record failure, leaving for redelivery")
		return err
	}
	if transitioned {
		metrics.MailFailed.WithLabelValues(class).Inc()
		log.Warn().Str("reason", reason).Str("class", class).Msg("delivery failed")
	}
	w.maybeComplete(log, campaign.ID)
	return nil
}

func (w *DeliveryWorker) maybeComplete(log zerolog.Logger, campaignID string) {
	done, err := w.CampaignRepo.MarkCompletedIfDone(campaignID)
	if err != nil {
		log.Error().Err(err).Msg("completion check failed")
		return
	}
	if done {
		log.Info().Msg("campaign completed")
	}
}
