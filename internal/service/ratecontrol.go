// internal/service/ratecontrol.go
package service

import (
	"time"

	"github.com/unclebandit/mailblast-backend/internal/config"
)

// Outcome of the previous send attempt, as seen by the rate controller.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeThrottled
)

const megabyte = 1 << 20

// successDecay pulls the delay back toward the floor after each clean send;
// throttleFactor doubles it on every throttle signal.
const (
	successDecay   = 0.9
	throttleFactor = 2
)

// RateController computes the inter-send delay for one worker's processing
// loop. State lives only for the lifetime of the loop; queue redelivery
// covers retries across invocations.
type RateController struct {
	cfg     config.RateConfig
	current time.Duration

	consecutiveSuccesses int
	consecutiveThrottles int
}

func NewRateController(cfg config.RateConfig) *RateController {
	return &RateController{cfg: cfg, current: cfg.BaseDelay}
}

// DelayFor is the sleep before a first attempt: the current adaptive delay
// plus the attachment surcharge.
func (r *RateController) DelayFor(attachmentBytes int64) time.Duration {
	return r.clamp(r.current + r.surcharge(attachmentBytes))
}

// NextDelay folds the previous outcome into the adaptive delay and returns
// the sleep before the next attempt. Successes decay multiplicatively toward
// MinDelay, throttles back off multiplicatively toward MaxDelay.
func (r *RateController) NextDelay(outcome Outcome, attachmentBytes int64) time.Duration {
	switch outcome {
	case OutcomeThrottled:
		r.consecutiveThrottles++
		r.consecutiveSuccesses = 0
		r.current = r.clamp(r.current * throttleFactor)
	case OutcomeSuccess:
		r.consecutiveSuccesses++
		r.consecutiveThrottles = 0
		r.current = r.clamp(time.Duration(float64(r.current) * successDecay))
	}
	return r.DelayFor(attachmentBytes)
}

// Reset returns the controller to its base state, used between campaigns.
func (r *RateController) Reset() {
	r.current = r.cfg.BaseDelay
	r.consecutiveSuccesses = 0
	r.consecutiveThrottles = 0
}

// surcharge adds a fixed increment for every megabyte of attachment payload
// beyond the configured threshold. Large payloads take longer to transmit
// and draw throttles sooner.
func (r *RateController) surcharge(attachmentBytes int64) time.Duration {
	extra := attachmentBytes - r.cfg.AttachmentThreshold
	if extra <= 0 {
		return 0
	}
	mbs := (extra + megabyte - 1) / megabyte
	return time.Duration(mbs) * r.cfg.PerMBSurcharge
}

func (r *RateController) clamp(d time.Duration) time.Duration {
	if d < r.cfg.MinDelay {
		return r.cfg.MinDelay
	}
	if d > r.cfg.MaxDelay {
		return r.cfg.MaxDelay
	}
	return d
}
