package database

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"workflow-collab-backend/pkg/apperr"
	"workflow-collab-backend/pkg/models"
)

// MemoryDatabase is an in-memory DatabaseInterface for development and
// tests. It mirrors the guarded-write semantics of the Postgres
// implementation so concurrency tests exercise the same contract.
type MemoryDatabase struct {
	mu sync.Mutex

	tenants      map[string]*models.Tenant
	memberships  map[string]*models.TenantMembership            // id -> row
	workflows    map[string]*models.Workflow                    // id -> row
	participants map[string]map[string]*models.WorkflowParticipant // workflowID -> userID -> row
	invitations  map[string]*models.WorkflowInvitation          // id -> row
	messages     map[string]*models.WorkflowMessage             // id -> row
	recipients   map[string]map[string]*models.MessageRecipient // messageID -> recipientID -> row
	attachments  map[string][]*models.MessageAttachment         // messageID -> rows
	links        map[string][]*models.MessageLink               // messageID -> rows
}

// NewMemoryDatabase creates an empty in-memory store.
func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{
		tenants:      make(map[string]*models.Tenant),
		memberships:  make(map[string]*models.TenantMembership),
		workflows:    make(map[string]*models.Workflow),
		participants: make(map[string]map[string]*models.WorkflowParticipant),
		invitations:  make(map[string]*models.WorkflowInvitation),
		messages:     make(map[string]*models.WorkflowMessage),
		recipients:   make(map[string]map[string]*models.MessageRecipient),
		attachments:  make(map[string][]*models.MessageAttachment),
		links:        make(map[string][]*models.MessageLink),
	}
}

// ================= Tenants & Memberships =================

func (db *MemoryDatabase) CreateTenant(t *models.Tenant) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	cp := *t
	db.tenants[t.ID] = &cp
	db.addMemberLocked(&models.TenantMembership{
		TenantID: t.ID, UserID: t.OwnerID, Role: models.TenantRoleOwner,
	})
	return nil
}

func (db *MemoryDatabase) GetTenant(tenantID string) (*models.Tenant, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	t, ok := db.tenants[tenantID]
	if !ok {
		return nil, apperr.NotFound("tenant not found")
	}
	cp := *t
	return &cp, nil
}

func (db *MemoryDatabase) addMemberLocked(m *models.TenantMembership) {
	for _, existing := range db.memberships {
		if existing.TenantID == m.TenantID && existing.UserID == m.UserID {
			existing.Role = m.Role
			m.ID = existing.ID
			return
		}
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.CreatedAt = time.Now()
	cp := *m
	db.memberships[m.ID] = &cp
}

func (db *MemoryDatabase) AddTenantMember(m *models.TenantMembership) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.addMemberLocked(m)
	return nil
}

func (db *MemoryDatabase) ListTenantMembers(tenantID string) ([]models.TenantMembership, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var result []models.TenantMembership
	for _, m := range db.memberships {
		if m.TenantID == tenantID {
			result = append(result, *m)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (db *MemoryDatabase) GetTenantRole(tenantID, userID string) (models.TenantRole, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, m := range db.memberships {
		if m.TenantID == tenantID && m.UserID == userID {
			return m.Role, true, nil
		}
	}
	return "", false, nil
}

// ================= Workflows & Participants =================

func (db *MemoryDatabase) CreateWorkflow(w *models.Workflow) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	now := time.Now()
	w.CreatedAt = now
	w.UpdatedAt = now
	cp := *w
	db.workflows[w.ID] = &cp
	db.participants[w.ID] = map[string]*models.WorkflowParticipant{
		w.InitiatorID: {
			WorkflowID: w.ID,
			UserID:     w.InitiatorID,
			Role:       models.ParticipantInitiator,
			JoinedAt:   now,
		},
	}
	return nil
}

func (db *MemoryDatabase) GetWorkflow(workflowID string) (*models.Workflow, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	w, ok := db.workflows[workflowID]
	if !ok {
		return nil, apperr.NotFound("workflow not found")
	}
	cp := *w
	return &cp, nil
}

func (db *MemoryDatabase) ListWorkflowsByTenant(tenantID string, includeDeleted bool) ([]models.Workflow, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var result []models.Workflow
	for _, w := range db.workflows {
		if w.TenantID != tenantID {
			continue
		}
		if !includeDeleted && w.Status == models.WorkflowDeleted {
			continue
		}
		result = append(result, *w)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (db *MemoryDatabase) UpdateWorkflowStatus(workflowID string, from, to models.WorkflowStatus, completedBy *string, completedAt *time.Time) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	w, ok := db.workflows[workflowID]
	if !ok || w.Status != from {
		return false, nil
	}
	w.Status = to
	if completedBy != nil {
		w.CompletedBy = completedBy
	}
	if completedAt != nil {
		w.CompletedAt = completedAt
	}
	w.UpdatedAt = time.Now()
	return true, nil
}

func (db *MemoryDatabase) ListParticipants(workflowID string) ([]models.WorkflowParticipant, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var result []models.WorkflowParticipant
	for _, p := range db.participants[workflowID] {
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].JoinedAt.Before(result[j].JoinedAt) })
	return result, nil
}

func (db *MemoryDatabase) IsParticipant(workflowID, userID string) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, ok := db.participants[workflowID][userID]
	return ok, nil
}

// ================= Invitations =================

func (db *MemoryDatabase) CreateInvitation(inv *models.WorkflowInvitation) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, existing := range db.invitations {
		if existing.WorkflowID == inv.WorkflowID && existing.InviteeID == inv.InviteeID &&
			existing.Status == models.InvitationPending {
			return apperr.New(apperr.KindDuplicateInvitation, "a pending invitation for this invitee already exists")
		}
	}
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	now := time.Now()
	inv.CreatedAt = now
	inv.UpdatedAt = now
	cp := *inv
	db.invitations[inv.ID] = &cp
	return nil
}

func (db *MemoryDatabase) GetInvitation(invitationID string) (*models.WorkflowInvitation, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	inv, ok := db.invitations[invitationID]
	if !ok {
		return nil, apperr.NotFound("invitation not found")
	}
	cp := *inv
	return &cp, nil
}

func (db *MemoryDatabase) FindPendingInvitation(workflowID, inviteeID string) (*models.WorkflowInvitation, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, inv := range db.invitations {
		if inv.WorkflowID == workflowID && inv.InviteeID == inviteeID && inv.Status == models.InvitationPending {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, nil
}

func (db *MemoryDatabase) ListInvitationsForUser(userID string) ([]models.WorkflowInvitation, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var result []models.WorkflowInvitation
	for _, inv := range db.invitations {
		if inv.InviteeID == userID {
			result = append(result, *inv)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (db *MemoryDatabase) AcceptInvitation(invitationID string, participant *models.WorkflowParticipant) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	inv, ok := db.invitations[invitationID]
	if !ok || inv.Status != models.InvitationPending {
		return false, nil
	}
	inv.Status = models.InvitationAccepted
	inv.UpdatedAt = time.Now()
	if db.participants[participant.WorkflowID] == nil {
		db.participants[participant.WorkflowID] = make(map[string]*models.WorkflowParticipant)
	}
	if _, exists := db.participants[participant.WorkflowID][participant.UserID]; !exists {
		cp := *participant
		cp.JoinedAt = time.Now()
		db.participants[participant.WorkflowID][participant.UserID] = &cp
	}
	return true, nil
}

func (db *MemoryDatabase) UpdateInvitationStatus(invitationID string, status models.InvitationStatus) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	inv, ok := db.invitations[invitationID]
	if !ok || inv.Status != models.InvitationPending {
		return false, nil
	}
	inv.Status = status
	inv.UpdatedAt = time.Now()
	return true, nil
}

func (db *MemoryDatabase) ExtendInvitation(invitationID string, expiresAt time.Time) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	inv, ok := db.invitations[invitationID]
	if !ok || inv.Status != models.InvitationPending {
		return false, nil
	}
	inv.ExpiresAt = expiresAt
	inv.UpdatedAt = time.Now()
	return true, nil
}

// ================= Messages =================

func (db *MemoryDatabase) CreateMessage(msg *models.WorkflowMessage, attachments []models.MessageAttachment, links []models.MessageLink, recipientIDs []string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	msg.CreatedAt = time.Now()
	cp := *msg
	db.messages[msg.ID] = &cp

	for i := range attachments {
		a := &attachments[i]
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		a.MessageID = msg.ID
		a.CreatedAt = time.Now()
		acp := *a
		db.attachments[msg.ID] = append(db.attachments[msg.ID], &acp)
	}
	for i := range links {
		l := &links[i]
		if l.ID == "" {
			l.ID = uuid.New().String()
		}
		l.MessageID = msg.ID
		l.CreatedAt = time.Now()
		lcp := *l
		db.links[msg.ID] = append(db.links[msg.ID], &lcp)
	}
	db.recipients[msg.ID] = make(map[string]*models.MessageRecipient)
	for _, rid := range recipientIDs {
		db.recipients[msg.ID][rid] = &models.MessageRecipient{
			MessageID:   msg.ID,
			RecipientID: rid,
		}
	}
	return nil
}

func (db *MemoryDatabase) GetMessage(messageID string) (*models.WorkflowMessage, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	m, ok := db.messages[messageID]
	if !ok {
		return nil, apperr.NotFound("message not found")
	}
	cp := *m
	return &cp, nil
}

func (db *MemoryDatabase) ListMessagesForViewer(workflowID, viewerID string) ([]models.MessageView, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var views []models.MessageView
	for _, m := range db.messages {
		if m.WorkflowID != workflowID || m.DeletedAt != nil {
			continue
		}
		r := db.recipients[m.ID][viewerID]
		if m.SenderID != viewerID {
			if r == nil || r.DeletedAt != nil {
				continue
			}
		}
		v := models.MessageView{WorkflowMessage: *m}
		if r != nil {
			v.IsRead = r.IsRead
			v.ReadAt = r.ReadAt
		}
		for _, a := range db.attachments[m.ID] {
			v.Attachments = append(v.Attachments, *a)
		}
		for _, l := range db.links[m.ID] {
			v.Links = append(v.Links, *l)
		}
		views = append(views, v)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].CreatedAt.Before(views[j].CreatedAt) })
	return views, nil
}

func (db *MemoryDatabase) GetReadState(messageID, recipientID string) (*models.MessageRecipient, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	r := db.recipients[messageID][recipientID]
	if r == nil {
		return nil, apperr.NotFound("read state not found")
	}
	cp := *r
	return &cp, nil
}

func (db *MemoryDatabase) MarkMessageRead(messageID, recipientID string, readAt time.Time) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	r := db.recipients[messageID][recipientID]
	if r == nil || r.IsRead {
		return false, nil
	}
	r.IsRead = true
	t := readAt
	r.ReadAt = &t
	return true, nil
}

func (db *MemoryDatabase) MarkAllRead(workflowID, recipientID string, readAt time.Time) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var n int64
	for _, m := range db.messages {
		if m.WorkflowID != workflowID || m.DeletedAt != nil {
			continue
		}
		r := db.recipients[m.ID][recipientID]
		if r == nil || r.IsRead {
			continue
		}
		r.IsRead = true
		t := readAt
		r.ReadAt = &t
		n++
	}
	return n, nil
}

func (db *MemoryDatabase) SoftDeleteMessage(messageID string, deletedAt time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	m, ok := db.messages[messageID]
	if !ok {
		return apperr.NotFound("message not found")
	}
	if m.DeletedAt == nil {
		t := deletedAt
		m.DeletedAt = &t
	}
	return nil
}

func (db *MemoryDatabase) SoftDeleteMessageForRecipient(messageID, recipientID string, deletedAt time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	r := db.recipients[messageID][recipientID]
	if r == nil {
		return apperr.NotFound("read state not found")
	}
	if r.DeletedAt == nil {
		t := deletedAt
		r.DeletedAt = &t
	}
	return nil
}

func (db *MemoryDatabase) ListSoftDeletedMessages(criteria MessageCriteria) ([]models.WorkflowMessage, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	idSet := make(map[string]bool, len(criteria.IDs))
	for _, id := range criteria.IDs {
		idSet[strings.TrimSpace(id)] = true
	}
	var list []models.WorkflowMessage
	for _, m := range db.messages {
		if m.DeletedAt == nil {
			continue
		}
		if len(idSet) > 0 && !idSet[m.ID] {
			continue
		}
		if criteria.TenantID != "" {
			w := db.workflows[m.WorkflowID]
			if w == nil || w.TenantID != criteria.TenantID {
				continue
			}
		}
		if criteria.OlderThan != nil && !m.CreatedAt.Before(*criteria.OlderThan) {
			continue
		}
		list = append(list, *m)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

func (db *MemoryDatabase) ListAttachmentsByMessage(messageID string) ([]models.MessageAttachment, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var list []models.MessageAttachment
	for _, a := range db.attachments[messageID] {
		list = append(list, *a)
	}
	return list, nil
}

func (db *MemoryDatabase) HardDeleteMessage(messageID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.messages[messageID]; !ok {
		return apperr.NotFound("message not found")
	}
	delete(db.messages, messageID)
	delete(db.recipients, messageID)
	delete(db.attachments, messageID)
	delete(db.links, messageID)
	return nil
}

// ================= Cascading deletion =================

func (db *MemoryDatabase) ListAttachmentsByWorkflow(workflowID string) ([]models.MessageAttachment, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var list []models.MessageAttachment
	for msgID, atts := range db.attachments {
		m := db.messages[msgID]
		if m == nil || m.WorkflowID != workflowID {
			continue
		}
		for _, a := range atts {
			list = append(list, *a)
		}
	}
	return list, nil
}

func (db *MemoryDatabase) PurgeWorkflow(workflowID string) (*PurgeCounts, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.workflows[workflowID]; !ok {
		return nil, apperr.NotFound("workflow not found")
	}
	counts := &PurgeCounts{}
	for id, m := range db.messages {
		if m.WorkflowID == workflowID {
			delete(db.messages, id)
			delete(db.recipients, id)
			delete(db.attachments, id)
			delete(db.links, id)
			counts.Messages++
		}
	}
	counts.Participants = int64(len(db.participants[workflowID]))
	delete(db.participants, workflowID)
	for id, inv := range db.invitations {
		if inv.WorkflowID == workflowID {
			delete(db.invitations, id)
			counts.Invitations++
		}
	}
	delete(db.workflows, workflowID)
	return counts, nil
}

// ================= Notification channel =================

func (db *MemoryDatabase) ListTenantMessagesSince(tenantID string, since time.Time, limit int) ([]models.WorkflowMessage, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	var list []models.WorkflowMessage
	for _, m := range db.messages {
		if m.DeletedAt != nil || m.CreatedAt.Before(since) {
			continue
		}
		w := db.workflows[m.WorkflowID]
		if w == nil || w.TenantID != tenantID || w.Status == models.WorkflowDeleted {
			continue
		}
		list = append(list, *m)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (db *MemoryDatabase) HealthCheck() error { return nil }

func (db *MemoryDatabase) Close() error { return nil }
