package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/unclebandit/mailblast-backend/internal/config"
	"github.com/unclebandit/mailblast-backend/internal/service"
)

func rateConfig() config.RateConfig {
	return config.RateConfig{
		BaseDelay:           1 * time.Second,
		MinDelay:            100 * time.Millisecond,
		MaxDelay:            30 * time.Second,
		AttachmentThreshold: 1 << 20,
		PerMBSurcharge:      500 * time.Millisecond,
	}
}

func TestSuccessesDecayTowardMinAndNeverBelow(t *testing.T) {
	rc := service.NewRateController(rateConfig())

	prev := rc.DelayFor(0)
	for i := 0; i < 100; i++ {
		d := rc.NextDelay(service.OutcomeSuccess, 0)
		assert.LessOrEqual(t, d, prev, "delay must not grow on success")
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		prev = d
	}
	assert.Equal(t, 100*time.Millisecond, prev, "long success streak settles at MinDelay")
}

func TestThrottlesBackOffTowardMaxAndNeverAbove(t *testing.T) {
	rc := service.NewRateController(rateConfig())

	prev := rc.DelayFor(0)
	for i := 0; i < 20; i++ {
		d := rc.NextDelay(service.OutcomeThrottled, 0)
		assert.GreaterOrEqual(t, d, prev, "delay must not shrink on throttle")
		assert.LessOrEqual(t, d, 30*time.Second)
		prev = d
	}
	assert.Equal(t, 30*time.Second, prev, "throttle streak settles at MaxDelay")
}

func TestThrottleDoublesThenSuccessRecovers(t *testing.T) {
	rc := service.NewRateController(rateConfig())

	throttled := rc.NextDelay(service.OutcomeThrottled, 0)
	assert.Equal(t, 2*time.Second, throttled)

	recovered := rc.NextDelay(service.OutcomeSuccess, 0)
	assert.Less(t, recovered, throttled)
}

func TestAttachmentSurcharge(t *testing.T) {
	rc := service.NewRateController(rateConfig())

	// Below the threshold, no surcharge.
	assert.Equal(t, 1*time.Second, rc.DelayFor(512<<10))

	// 3MB payload: 2MB over the 1MB threshold, 500ms per MB.
	assert.Equal(t, 2*time.Second, rc.DelayFor(3<<20))

	// Partial MBs round up.
	assert.Equal(t, 1500*time.Millisecond, rc.DelayFor((1<<20)+1))
}

func TestSurchargeIsCappedAtMaxDelay(t *testing.T) {
	rc := service.NewRateController(rateConfig())
	assert.Equal(t, 30*time.Second, rc.DelayFor(1<<40))
}

func TestResetRestoresBase(t *testing.T) {
	rc := service.NewRateController(rateConfig())
	rc.NextDelay(service.OutcomeThrottled, 0)
	rc.Reset()
	assert.Equal(t, 1*time.Second, rc.DelayFor(0))
}
