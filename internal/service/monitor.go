// internal/service/monitor.go
package service

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/mailblast-backend/internal/metrics"
	"github.com/unclebandit/mailblast-backend/internal/repository"
)

// Stuck reasons reported by the monitor.
const (
	ReasonSlowProgress = "slow_progress"
	ReasonNoActivity   = "no_recent_activity"
)

// StuckCampaignReport flags one stalled campaign.
type StuckCampaignReport struct {
	CampaignID string  `json:"campaign_id"`
	Name       string  `json:"name"`
	Completion float64 `json:"completion"`
	Reason     string  `json:"reason"`
}

// Monitor sweeps active campaigns and flags the ones that stalled. It never
// mutates campaign state; it only reports and emits.
type Monitor struct {
	CampaignRepo repository.CampaignRepositoryInterface
	Emitter      metrics.Emitter
	Logger       zerolog.Logger

	MaxAge             time.Duration
	MaxIdle            time.Duration
	CompletionFraction float64

	// Now is swappable in tests; defaults to time.Now.
	Now func() time.Time
}

func NewMonitor(
	campaignRepo repository.CampaignRepositoryInterface,
	emitter metrics.Emitter,
	maxAge, maxIdle time.Duration,
	completionFraction float64,
	logger zerolog.Logger,
) *Monitor {
	return &Monitor{
		CampaignRepo:       campaignRepo,
		Emitter:            emitter,
		Logger:             logger.With().Str("component", "monitor").Logger(),
		MaxAge:             maxAge,
		MaxIdle:            maxIdle,
		CompletionFraction: completionFraction,
		Now:                time.Now,
	}
}

// CheckStuckCampaigns flags every queued/sending campaign that is either old
// with low completion, or idle past the activity window.
func (m *Monitor) CheckStuckCampaigns() ([]StuckCampaignReport, error) {
	campaigns, err := m.CampaignRepo.ListActive()
	if err != nil {
		return nil, err
	}

	now := m.Now()
	reports := []StuckCampaignReport{}
	for _, c := range campaigns {
		completion := Completion(c)

		var reason string
		switch {
		case now.Sub(c.CreatedAt) > m.MaxAge && completion < m.CompletionFraction:
			reason = ReasonSlowProgress
		case now.Sub(c.LastActivityAt) > m.MaxIdle:
			reason = ReasonNoActivity
		default:
			continue
		}

		report := StuckCampaignReport{
			CampaignID: c.ID,
			Name:       c.Name,
			Completion: completion,
			Reason:     reason,
		}
		reports = append(reports, report)

		m.Emitter.Emit("stuck_campaigns", 1, map[string]string{
			"campaign_id": c.ID,
			"reason":      reason,
		})
		m.Logger.Warn().
			Str("campaign_id", c.ID).
			Str("name", c.Name).
			Str("reason", reason).
			Str("completion", fmt.Sprintf("%.0f%%", completion*100)).
			Msg("stuck campaign detected")
	}

	return reports, nil
}
