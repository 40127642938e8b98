// internal/service/campaign_service.go
package service

import (
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
	"github.com/unclebandit/mailblast-backend/internal/metrics"
	"github.com/unclebandit/mailblast-backend/internal/model"
	"github.com/unclebandit/mailblast-backend/internal/queue"
	"github.com/unclebandit/mailblast-backend/internal/repository"
)

// CampaignSpec is the caller's request to create and dispatch a campaign.
type CampaignSpec struct {
	Name        string                `json:"name"`
	Subject     string                `json:"subject"`
	Body        string                `json:"body"`
	FromAddress string                `json:"from_address"`
	TargetList  []string              `json:"target_list"`
	TargetAll   bool                  `json:"target_all"`
	To          []string              `json:"to"`
	CC          []string              `json:"cc"`
	BCC         []string              `json:"bcc"`
	Attachments []model.AttachmentRef `json:"attachments"`
}

// CampaignService is the dispatcher: it validates a spec, fans it out into
// deduplicated recipient tasks, persists the campaign, and enqueues the tasks.
type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	ContactRepo  repository.ContactRepositoryInterface
	Queue        queue.Publisher
	Logger       zerolog.Logger
	NewID        func() string
}

func NewCampaignService(
	campaignRepo repository.CampaignRepositoryInterface,
	contactRepo repository.ContactRepositoryInterface,
	q queue.Publisher,
	logger zerolog.Logger,
) *CampaignService {
	return &CampaignService{
		CampaignRepo: campaignRepo,
		ContactRepo:  contactRepo,
		Queue:        q,
		Logger:       logger.With().Str("component", "dispatcher").Logger(),
		NewID:        uuid.NewString,
	}
}

// CreateCampaign runs the full dispatch: validate, deduplicate, persist with
// status queued, enqueue one task per recipient, then flip to sending. The
// record is written before the first enqueue so no worker ever sees a task
// for a campaign that does not exist yet.
func (s *CampaignService) CreateCampaign(spec CampaignSpec) (*model.Campaign, error) {
	if err := validateSpec(&spec); err != nil {
		return nil, err
	}

	targets := spec.TargetList
	if spec.TargetAll {
		contacts, err := s.ContactRepo.ListAll()
		if err != nil {
			return nil, err
		}
		targets = make([]string, 0, len(contacts))
		for _, c := range contacts {
			targets = append(targets, c.Email)
		}
	}

	id := s.NewID()
	tasks := Deduplicate(id, targets, spec.To, spec.CC, spec.BCC)

	campaign := &model.Campaign{
		ID:              id,
		Name:            spec.Name,
		Subject:         spec.Subject,
		Body:            spec.Body,
		FromAddress:     strings.TrimSpace(spec.FromAddress),
		Status:          model.StatusQueued,
		TotalRecipients: len(tasks),
		CCList:          NormalizeList(spec.CC),
		BCCList:         NormalizeList(spec.BCC),
		Attachments:     spec.Attachments,
	}

	if err := s.CampaignRepo.Create(campaign); err != nil {
		return nil, err
	}

	log := s.Logger.With().Str("campaign_id", id).Logger()

	// Every supplied address was invalid: a zero-recipient campaign is legal
	// and finishes immediately.
	if len(tasks) == 0 {
		if err := s.CampaignRepo.UpdateStatus(id, model.StatusCompleted); err != nil {
			return nil, err
		}
		campaign.Status = model.StatusCompleted
		log.Info().Msg("campaign has no deliverable recipients, completed immediately")
		return campaign, nil
	}

	queued := 0
	for i, task := range tasks {
		if err := s.Queue.PublishTask(task); err != nil {
			// Do not blindly retry the batch: record how far we got and let
			// an operator re-dispatch the remainder.
			log.Error().Err(err).
				Int("enqueued", queued).
				Int("remaining", len(tasks)-i).
				Str("failed_at", task.Email).
				Msg("enqueue stopped mid-batch")
			break
		}
		queued++
		metrics.TasksEnqueued.WithLabelValues(roleLabel(task.Role)).Inc()
	}

	if err := s.CampaignRepo.SetQueuedCount(id, queued); err != nil {
		log.Error().Err(err).Msg("failed to record queued count")
	}
	campaign.QueuedCount = queued

	if err := s.CampaignRepo.UpdateStatus(id, model.StatusSending); err != nil {
		return campaign, err
	}
	campaign.Status = model.StatusSending

	log.Info().
		Int("total_recipients", campaign.TotalRecipients).
		Int("queued", queued).
		Msg("campaign dispatched")
	return campaign, nil
}

func validateSpec(spec *CampaignSpec) error {
	if strings.TrimSpace(spec.Subject) == "" {
		return appErrors.NewValidation("subject", "is required")
	}
	if strings.TrimSpace(spec.Body) == "" {
		return appErrors.NewValidation("body", "is required")
	}
	if NormalizeAddress(spec.FromAddress) == "" {
		return appErrors.NewValidation("from_address", "must be a valid address")
	}
	if !spec.TargetAll &&
		len(spec.TargetList)+len(spec.To)+len(spec.CC)+len(spec.BCC) == 0 {
		return appErrors.NewValidation("recipients", "at least one recipient is required")
	}
	return nil
}

func roleLabel(role model.Role) string {
	if role == model.RoleNone {
		return "none"
	}
	return string(role)
}

// CampaignProgress is the queryable view of a campaign's accounting.
type CampaignProgress struct {
	model.Campaign
	Completion float64 `json:"completion"`
}

// GetCampaignProgress fetches a campaign with its completion fraction.
func (s *CampaignService) GetCampaignProgress(id string) (*CampaignProgress, error) {
	campaign, err := s.CampaignRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	return &CampaignProgress{
		Campaign:   *campaign,
		Completion: Completion(campaign),
	}, nil
}

// Completion treats a zero-recipient campaign as fully complete.
func Completion(c *model.Campaign) float64 {
	if c.TotalRecipients == 0 {
		return 1
	}
	return float64(c.SentCount+c.FailedCount) / float64(c.TotalRecipients)
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

// RenderPreview personalizes a campaign's subject and body for one contact,
// optionally against an override body.
func (s *CampaignService) RenderPreview(campaignID, email string, overrideBody *string) (subject, body string, err error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return "", "", err
	}

	addr := NormalizeAddress(email)
	if addr == "" {
		return "", "", appErrors.NewValidation("email", "must be a valid address")
	}

	contact, err := s.ContactRepo.GetByEmail(addr)
	if err != nil {
		return "", "", err
	}
	if contact == nil {
		return "", "", appErrors.NewContactNotFound(addr)
	}

	template := campaign.Body
	if overrideBody != nil && strings.TrimSpace(*overrideBody) != "" {
		template = *overrideBody
	}

	fields := PersonalizationFields(contact, addr)
	return RenderTemplate(campaign.Subject, fields), RenderTemplate(template, fields), nil
}

// PersonalizationFields merges the contact profile with the implicit email
// field. A nil contact still renders, with everything but email blank.
func PersonalizationFields(contact *model.Contact, email string) map[string]string {
	fields := map[string]string{}
	if contact != nil {
		for k, v := range contact.Fields {
			fields[k] = v
		}
	}
	if _, ok := fields["email"]; !ok {
		fields["email"] = email
	}
	return fields
}
