package service_test

import (
	"fmt"
	"sync"
	"time"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
	"github.com/unclebandit/mailblast-backend/internal/mailer"
	"github.com/unclebandit/mailblast-backend/internal/model"
)

// In-memory repositories shared by the service tests. The mutex stands in
// for the store's atomic increment semantics.

type memCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[string]*model.Campaign

	failCreate bool
	failGet    bool
}

func newMemCampaignRepo() *memCampaignRepo {
	return &memCampaignRepo{campaigns: map[string]*model.Campaign{}}
}

func (r *memCampaignRepo) Create(c *model.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate {
		return fmt.Errorf("store unavailable")
	}
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
		c.LastActivityAt = now
	}
	cp := *c
	r.campaigns[c.ID] = &cp
	return nil
}

func (r *memCampaignRepo) GetByID(id string) (*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failGet {
		return nil, fmt.Errorf("store unavailable")
	}
	c, ok := r.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (r *memCampaignRepo) UpdateStatus(id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.campaigns[id]; ok {
		c.Status = status
		c.LastActivityAt = time.Now()
	}
	return nil
}

func (r *memCampaignRepo) SetQueuedCount(id string, queued int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.campaigns[id]; ok {
		c.QueuedCount = queued
	}
	return nil
}

func (r *memCampaignRepo) IncrementSent(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.campaigns[id]; ok {
		c.SentCount++
		c.LastActivityAt = time.Now()
	}
	return nil
}

func (r *memCampaignRepo) IncrementFailed(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.campaigns[id]; ok {
		c.FailedCount++
		c.LastActivityAt = time.Now()
	}
	return nil
}

func (r *memCampaignRepo) MarkCompletedIfDone(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return false, nil
	}
	if c.Status == model.StatusSending && c.SentCount+c.FailedCount >= c.TotalRecipients {
		c.Status = model.StatusCompleted
		return true, nil
	}
	return false, nil
}

func (r *memCampaignRepo) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := []*model.Campaign{}
	for _, c := range r.campaigns {
		if status != "" && c.Status != status {
			continue
		}
		cp := *c
		all = append(all, &cp)
	}
	total := len(all)
	if offset > len(all) {
		return []*model.Campaign{}, total, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

func (r *memCampaignRepo) ListActive() ([]*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	active := []*model.Campaign{}
	for _, c := range r.campaigns {
		if c.Status == model.StatusQueued || c.Status == model.StatusSending {
			cp := *c
			active = append(active, &cp)
		}
	}
	return active, nil
}

type memContactRepo struct {
	contacts map[string]model.Contact
	failGet  bool
}

func newMemContactRepo(contacts ...model.Contact) *memContactRepo {
	r := &memContactRepo{contacts: map[string]model.Contact{}}
	for _, c := range contacts {
		r.contacts[c.Email] = c
	}
	return r
}

func (r *memContactRepo) GetByEmail(email string) (*model.Contact, error) {
	if r.failGet {
		return nil, fmt.Errorf("store unavailable")
	}
	c, ok := r.contacts[email]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *memContactRepo) ListAll() ([]model.Contact, error) {
	all := []model.Contact{}
	for _, c := range r.contacts {
		all = append(all, c)
	}
	return all, nil
}

type memDeliveryRepo struct {
	mu         sync.Mutex
	deliveries map[string]*model.Delivery
	nextID     int
	campaigns  *memCampaignRepo

	failMark bool
}

func newMemDeliveryRepo(campaigns *memCampaignRepo) *memDeliveryRepo {
	return &memDeliveryRepo{
		deliveries: map[string]*model.Delivery{},
		campaigns:  campaigns,
	}
}

func deliveryKey(campaignID, recipient string) string {
	return campaignID + "|" + recipient
}

func (r *memDeliveryRepo) EnsurePending(campaignID, recipient string, role model.Role) (*model.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := deliveryKey(campaignID, recipient)
	if d, ok := r.deliveries[key]; ok {
		cp := *d
		return &cp, nil
	}
	r.nextID++
	d := &model.Delivery{
		ID:         r.nextID,
		CampaignID: campaignID,
		Recipient:  recipient,
		Role:       role,
		Status:     model.DeliveryPending,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	r.deliveries[key] = d
	cp := *d
	return &cp, nil
}

func (r *memDeliveryRepo) MarkSent(id int, campaignID, messageID string) (bool, error) {
	if r.failMark {
		return false, fmt.Errorf("store unavailable")
	}
	r.mu.Lock()
	var target *model.Delivery
	for _, d := range r.deliveries {
		if d.ID == id {
			target = d
			break
		}
	}
	if target == nil || target.Status != model.DeliveryPending {
		r.mu.Unlock()
		return false, nil
	}
	target.Status = model.DeliverySent
	target.MessageID = messageID
	target.UpdatedAt = time.Now()
	r.mu.Unlock()
	return true, r.campaigns.IncrementSent(campaignID)
}

func (r *memDeliveryRepo) MarkFailed(id int, campaignID, reason string, retries int) (bool, error) {
	if r.failMark {
		return false, fmt.Errorf("store unavailable")
	}
	r.mu.Lock()
	var target *model.Delivery
	for _, d := range r.deliveries {
		if d.ID == id {
			target = d
			break
		}
	}
	if target == nil || target.Status != model.DeliveryPending {
		r.mu.Unlock()
		return false, nil
	}
	target.Status = model.DeliveryFailed
	target.LastError = reason
	target.RetryCount = retries
	target.UpdatedAt = time.Now()
	r.mu.Unlock()
	return true, r.campaigns.IncrementFailed(campaignID)
}

func (r *memDeliveryRepo) ListFailed(campaignID string) ([]model.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	failed := []model.Delivery{}
	for _, d := range r.deliveries {
		if d.CampaignID == campaignID && d.Status == model.DeliveryFailed {
			failed = append(failed, *d)
		}
	}
	return failed, nil
}

type memBlobStore struct {
	blobs map[string]mailer.Attachment
	fail  bool
}

func (r *memBlobStore) Get(key string) (string, []byte, error) {
	if r.fail {
		return "", nil, fmt.Errorf("store unavailable")
	}
	a, ok := r.blobs[key]
	if !ok {
		return "", nil, appErrors.NewAttachmentNotFound(key)
	}
	return a.Filename, a.Content, nil
}

// scriptedSender replays a per-recipient script of outcomes and records every
// message it was asked to send.
type scriptedSender struct {
	mu      sync.Mutex
	scripts map[string][]error // errors to return before succeeding
	Sent    []mailer.OutboundMessage
	next    int
}

func newScriptedSender() *scriptedSender {
	return &scriptedSender{scripts: map[string][]error{}}
}

func (s *scriptedSender) failWith(recipient string, errs ...error) {
	s.scripts[recipient] = errs
}

func (s *scriptedSender) Send(msg mailer.OutboundMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if script := s.scripts[msg.To]; len(script) > 0 {
		err := script[0]
		s.scripts[msg.To] = script[1:]
		return "", err
	}
	s.Sent = append(s.Sent, msg)
	s.next++
	return fmt.Sprintf("msg-%d", s.next), nil
}

// recordingEmitter captures monitor emissions.
type recordingEmitter struct {
	mu      sync.Mutex
	emitted []emission
}

type emission struct {
	name  string
	value float64
	dims  map[string]string
}

func (e *recordingEmitter) Emit(name string, value float64, dims map[string]string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emitted = append(e.emitted, emission{name: name, value: value, dims: dims})
}
