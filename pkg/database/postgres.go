package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"workflow-collab-backend/pkg/apperr"
	"workflow-collab-backend/pkg/models"

	"github.com/lib/pq"
)

// PostgresDatabase is the production DatabaseInterface implementation.
type PostgresDatabase struct {
	db *sql.DB
}

// NewPostgresDatabase opens a PostgreSQL connection with pool parameters
// sized for short-lived serverless instances.
func NewPostgresDatabase(dsn string) (DatabaseInterface, error) {
	// Sanitize DSN to avoid stray CR/LF from env values
	dsn = strings.TrimSpace(dsn)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &PostgresDatabase{db: db}, nil
}

// wrapDBErr maps statement timeouts/cancellations to the Timeout kind and
// wraps everything else. Timeouts must surface as-is, never retried here.
func wrapDBErr(err error, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.Wrap(err, apperr.KindTimeout, "%s", msg)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "57014" { // query_canceled
		return apperr.Wrap(err, apperr.KindTimeout, "%s", msg)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// ================= Tenants & Memberships =================

func (db *PostgresDatabase) CreateTenant(t *models.Tenant) error {
	query := `
        INSERT INTO tenants (name, owner_id, created_at, updated_at)
        VALUES ($1, $2, NOW(), NOW())
        RETURNING id, created_at, updated_at
    `
	err := db.db.QueryRow(query, t.Name, t.OwnerID).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return wrapDBErr(err, "failed to create tenant")
	}
	// owner membership
	_, err = db.db.Exec(`
        INSERT INTO tenant_memberships (tenant_id, user_id, role, created_at)
        VALUES ($1, $2, 'owner', NOW())
        ON CONFLICT (tenant_id, user_id) DO NOTHING
    `, t.ID, t.OwnerID)
	if err != nil {
		return wrapDBErr(err, "failed to add owner membership")
	}
	return nil
}

func (db *PostgresDatabase) GetTenant(tenantID string) (*models.Tenant, error) {
	query := `SELECT id, name, owner_id, created_at, updated_at FROM tenants WHERE id = $1`
	var t models.Tenant
	err := db.db.QueryRow(query, tenantID).Scan(&t.ID, &t.Name, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("tenant not found")
		}
		return nil, wrapDBErr(err, "failed to get tenant")
	}
	return &t, nil
}

func (db *PostgresDatabase) AddTenantMember(m *models.TenantMembership) error {
	query := `
        INSERT INTO tenant_memberships (tenant_id, user_id, role, created_at)
        VALUES ($1, $2, $3, NOW())
        ON CONFLICT (tenant_id, user_id) DO UPDATE SET role = EXCLUDED.role
        RETURNING id
    `
	err := db.db.QueryRow(query, m.TenantID, m.UserID, string(m.Role)).Scan(&m.ID)
	if err != nil {
		return wrapDBErr(err, "failed to add tenant member")
	}
	return nil
}

func (db *PostgresDatabase) ListTenantMembers(tenantID string) ([]models.TenantMembership, error) {
	query := `
        SELECT id, tenant_id, user_id, role, created_at
        FROM tenant_memberships
        WHERE tenant_id = $1
        ORDER BY created_at ASC
    `
	rows, err := db.db.Query(query, tenantID)
	if err != nil {
		return nil, wrapDBErr(err, "failed to list tenant members")
	}
	defer rows.Close()
	var result []models.TenantMembership
	for rows.Next() {
		var m models.TenantMembership
		var role string
		if err := rows.Scan(&m.ID, &m.TenantID, &m.UserID, &role, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = models.TenantRole(role)
		result = append(result, m)
	}
	return result, rows.Err()
}

func (db *PostgresDatabase) GetTenantRole(tenantID, userID string) (models.TenantRole, bool, error) {
	var role string
	err := db.db.QueryRow(`
        SELECT role FROM tenant_memberships WHERE tenant_id = $1 AND user_id = $2
    `, tenantID, userID).Scan(&role)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, wrapDBErr(err, "failed to get tenant role")
	}
	return models.TenantRole(role), true, nil
}

// ================= Workflows & Participants =================

// CreateWorkflow inserts the workflow and its initiator participant row
// in one transaction; a workflow never exists without its initiator.
func (db *PostgresDatabase) CreateWorkflow(w *models.Workflow) error {
	tx, err := db.db.Begin()
	if err != nil {
		return wrapDBErr(err, "failed to begin transaction")
	}
	query := `
        INSERT INTO workflows (tenant_id, initiator_id, title, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, NOW(), NOW())
        RETURNING id, created_at, updated_at
    `
	err = tx.QueryRow(query, w.TenantID, w.InitiatorID, w.Title, string(w.Status)).
		Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		_ = tx.Rollback()
		return wrapDBErr(err, "failed to create workflow")
	}
	_, err = tx.Exec(`
        INSERT INTO workflow_participants (workflow_id, user_id, role, joined_at)
        VALUES ($1, $2, 'initiator', NOW())
    `, w.ID, w.InitiatorID)
	if err != nil {
		_ = tx.Rollback()
		return wrapDBErr(err, "failed to add initiator participant")
	}
	return tx.Commit()
}

func (db *PostgresDatabase) GetWorkflow(workflowID string) (*models.Workflow, error) {
	query := `
        SELECT id, tenant_id, initiator_id, title, status, created_at, updated_at, completed_at, completed_by
        FROM workflows
        WHERE id = $1
    `
	var w models.Workflow
	var status string
	err := db.db.QueryRow(query, workflowID).Scan(
		&w.ID, &w.TenantID, &w.InitiatorID, &w.Title, &status,
		&w.CreatedAt, &w.UpdatedAt, &w.CompletedAt, &w.CompletedBy,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("workflow not found")
		}
		return nil, wrapDBErr(err, "failed to get workflow")
	}
	w.Status = models.WorkflowStatus(status)
	return &w, nil
}

func (db *PostgresDatabase) ListWorkflowsByTenant(tenantID string, includeDeleted bool) ([]models.Workflow, error) {
	query := `
        SELECT id, tenant_id, initiator_id, title, status, created_at, updated_at, completed_at, completed_by
        FROM workflows
        WHERE tenant_id = $1 AND ($2 OR status <> 'deleted')
        ORDER BY created_at DESC
    `
	rows, err := db.db.Query(query, tenantID, includeDeleted)
	if err != nil {
		return nil, wrapDBErr(err, "failed to list workflows")
	}
	defer rows.Close()
	var result []models.Workflow
	for rows.Next() {
		var w models.Workflow
		var status string
		if err := rows.Scan(&w.ID, &w.TenantID, &w.InitiatorID, &w.Title, &status,
			&w.CreatedAt, &w.UpdatedAt, &w.CompletedAt, &w.CompletedBy); err != nil {
			return nil, err
		}
		w.Status = models.WorkflowStatus(status)
		result = append(result, w)
	}
	return result, rows.Err()
}

func (db *PostgresDatabase) UpdateWorkflowStatus(workflowID string, from, to models.WorkflowStatus, completedBy *string, completedAt *time.Time) (bool, error) {
	res, err := db.db.Exec(`
        UPDATE workflows
        SET status = $1,
            completed_by = COALESCE($2, completed_by),
            completed_at = COALESCE($3, completed_at),
            updated_at = NOW()
        WHERE id = $4 AND status = $5
    `, string(to), completedBy, completedAt, workflowID, string(from))
	if err != nil {
		return false, wrapDBErr(err, "failed to update workflow status")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapDBErr(err, "failed to read rows affected")
	}
	return n > 0, nil
}

func (db *PostgresDatabase) ListParticipants(workflowID string) ([]models.WorkflowParticipant, error) {
	query := `
        SELECT workflow_id, user_id, role, joined_at
        FROM workflow_participants
        WHERE workflow_id = $1
        ORDER BY joined_at ASC
    `
	rows, err := db.db.Query(query, workflowID)
	if err != nil {
		return nil, wrapDBErr(err, "failed to list participants")
	}
	defer rows.Close()
	var result []models.WorkflowParticipant
	for rows.Next() {
		var p models.WorkflowParticipant
		var role string
		if err := rows.Scan(&p.WorkflowID, &p.UserID, &role, &p.JoinedAt); err != nil {
			return nil, err
		}
		p.Role = models.ParticipantRole(role)
		result = append(result, p)
	}
	return result, rows.Err()
}

func (db *PostgresDatabase) IsParticipant(workflowID, userID string) (bool, error) {
	var exists bool
	err := db.db.QueryRow(`
        SELECT EXISTS(SELECT 1 FROM workflow_participants WHERE workflow_id = $1 AND user_id = $2)
    `, workflowID, userID).Scan(&exists)
	if err != nil {
		return false, wrapDBErr(err, "failed to check participant")
	}
	return exists, nil
}

// ================= Invitations =================

func (db *PostgresDatabase) CreateInvitation(inv *models.WorkflowInvitation) error {
	query := `
        INSERT INTO workflow_invitations (workflow_id, inviter_id, invitee_id, role, token, status, expires_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
        RETURNING id, created_at, updated_at
    `
	err := db.db.QueryRow(query, inv.WorkflowID, inv.InviterID, inv.InviteeID,
		string(inv.Role), inv.Token, string(inv.Status), inv.ExpiresAt).
		Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return apperr.New(apperr.KindDuplicateInvitation, "a pending invitation for this invitee already exists")
		}
		return wrapDBErr(err, "failed to create invitation")
	}
	return nil
}

func (db *PostgresDatabase) GetInvitation(invitationID string) (*models.WorkflowInvitation, error) {
	query := `
        SELECT id, workflow_id, inviter_id, invitee_id, role, token, status, expires_at, created_at, updated_at
        FROM workflow_invitations
        WHERE id = $1
    `
	var inv models.WorkflowInvitation
	var role, status string
	err := db.db.QueryRow(query, invitationID).Scan(
		&inv.ID, &inv.WorkflowID, &inv.InviterID, &inv.InviteeID,
		&role, &inv.Token, &status, &inv.ExpiresAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("invitation not found")
		}
		return nil, wrapDBErr(err, "failed to get invitation")
	}
	inv.Role = models.ParticipantRole(role)
	inv.Status = models.InvitationStatus(status)
	return &inv, nil
}

func (db *PostgresDatabase) FindPendingInvitation(workflowID, inviteeID string) (*models.WorkflowInvitation, error) {
	query := `
        SELECT id, workflow_id, inviter_id, invitee_id, role, token, status, expires_at, created_at, updated_at
        FROM workflow_invitations
        WHERE workflow_id = $1 AND invitee_id = $2 AND status = 'pending'
        LIMIT 1
    `
	var inv models.WorkflowInvitation
	var role, status string
	err := db.db.QueryRow(query, workflowID, inviteeID).Scan(
		&inv.ID, &inv.WorkflowID, &inv.InviterID, &inv.InviteeID,
		&role, &inv.Token, &status, &inv.ExpiresAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, wrapDBErr(err, "failed to find pending invitation")
	}
	inv.Role = models.ParticipantRole(role)
	inv.Status = models.InvitationStatus(status)
	return &inv, nil
}

func (db *PostgresDatabase) ListInvitationsForUser(userID string) ([]models.WorkflowInvitation, error) {
	query := `
        SELECT id, workflow_id, inviter_id, invitee_id, role, token, status, expires_at, created_at, updated_at
        FROM workflow_invitations
        WHERE invitee_id = $1
        ORDER BY created_at DESC
    `
	rows, err := db.db.Query(query, userID)
	if err != nil {
		return nil, wrapDBErr(err, "failed to list invitations")
	}
	defer rows.Close()
	var list []models.WorkflowInvitation
	for rows.Next() {
		var inv models.WorkflowInvitation
		var role, status string
		if err := rows.Scan(&inv.ID, &inv.WorkflowID, &inv.InviterID, &inv.InviteeID,
			&role, &inv.Token, &status, &inv.ExpiresAt, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, err
		}
		inv.Role = models.ParticipantRole(role)
		inv.Status = models.InvitationStatus(status)
		list = append(list, inv)
	}
	return list, rows.Err()
}

// AcceptInvitation is the single atomic read-modify-write of §resolve:
// the guarded UPDATE decides the race, and the participant insert rides
// the same transaction so a winner can never commit one without the other.
func (db *PostgresDatabase) AcceptInvitation(invitationID string, participant *models.WorkflowParticipant) (bool, error) {
	tx, err := db.db.Begin()
	if err != nil {
		return false, wrapDBErr(err, "failed to begin transaction")
	}
	res, err := tx.Exec(`
        UPDATE workflow_invitations SET status = 'accepted', updated_at = NOW()
        WHERE id = $1 AND status = 'pending'
    `, invitationID)
	if err != nil {
		_ = tx.Rollback()
		return false, wrapDBErr(err, "failed to accept invitation")
	}
	n, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return false, wrapDBErr(err, "failed to read rows affected")
	}
	if n == 0 {
		_ = tx.Rollback()
		return false, nil
	}
	_, err = tx.Exec(`
        INSERT INTO workflow_participants (workflow_id, user_id, role, joined_at)
        VALUES ($1, $2, $3, NOW())
        ON CONFLICT (workflow_id, user_id) DO NOTHING
    `, participant.WorkflowID, participant.UserID, string(participant.Role))
	if err != nil {
		_ = tx.Rollback()
		return false, wrapDBErr(err, "failed to add participant")
	}
	if err := tx.Commit(); err != nil {
		return false, wrapDBErr(err, "failed to commit accept")
	}
	return true, nil
}

func (db *PostgresDatabase) UpdateInvitationStatus(invitationID string, status models.InvitationStatus) (bool, error) {
	res, err := db.db.Exec(`
        UPDATE workflow_invitations SET status = $1, updated_at = NOW()
        WHERE id = $2 AND status = 'pending'
    `, string(status), invitationID)
	if err != nil {
		return false, wrapDBErr(err, "failed to update invitation status")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapDBErr(err, "failed to read rows affected")
	}
	return n > 0, nil
}

func (db *PostgresDatabase) ExtendInvitation(invitationID string, expiresAt time.Time) (bool, error) {
	res, err := db.db.Exec(`
        UPDATE workflow_invitations SET expires_at = $1, updated_at = NOW()
        WHERE id = $2 AND status = 'pending'
    `, expiresAt, invitationID)
	if err != nil {
		return false, wrapDBErr(err, "failed to extend invitation")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapDBErr(err, "failed to read rows affected")
	}
	return n > 0, nil
}

// ================= Messages =================

// CreateMessage persists the message plus child attachment/link rows and
// the unread recipient rows in one transaction.
func (db *PostgresDatabase) CreateMessage(msg *models.WorkflowMessage, attachments []models.MessageAttachment, links []models.MessageLink, recipientIDs []string) error {
	tx, err := db.db.Begin()
	if err != nil {
		return wrapDBErr(err, "failed to begin transaction")
	}
	query := `
        INSERT INTO workflow_messages (workflow_id, sender_id, content, type, created_at)
        VALUES ($1, $2, $3, $4, NOW())
        RETURNING id, created_at
    `
	err = tx.QueryRow(query, msg.WorkflowID, msg.SenderID, msg.Content, string(msg.Type)).
		Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		_ = tx.Rollback()
		return wrapDBErr(err, "failed to create message")
	}
	for i := range attachments {
		a := &attachments[i]
		a.MessageID = msg.ID
		err = tx.QueryRow(`
            INSERT INTO workflow_message_attachments (message_id, storage_key, file_name, content_type, size_bytes, created_at)
            VALUES ($1, $2, $3, $4, $5, NOW())
            RETURNING id, created_at
        `, a.MessageID, a.StorageKey, a.FileName, a.ContentType, a.SizeBytes).Scan(&a.ID, &a.CreatedAt)
		if err != nil {
			_ = tx.Rollback()
			return wrapDBErr(err, "failed to create attachment")
		}
	}
	for i := range links {
		l := &links[i]
		l.MessageID = msg.ID
		err = tx.QueryRow(`
            INSERT INTO workflow_message_links (message_id, url, title, created_at)
            VALUES ($1, $2, $3, NOW())
            RETURNING id, created_at
        `, l.MessageID, l.URL, l.Title).Scan(&l.ID, &l.CreatedAt)
		if err != nil {
			_ = tx.Rollback()
			return wrapDBErr(err, "failed to create link")
		}
	}
	for _, rid := range recipientIDs {
		if _, err := tx.Exec(`
            INSERT INTO workflow_message_recipients (message_id, recipient_id, is_read)
            VALUES ($1, $2, false)
            ON CONFLICT (message_id, recipient_id) DO NOTHING
        `, msg.ID, rid); err != nil {
			_ = tx.Rollback()
			return wrapDBErr(err, "failed to create recipient row")
		}
	}
	return tx.Commit()
}

func (db *PostgresDatabase) GetMessage(messageID string) (*models.WorkflowMessage, error) {
	query := `
        SELECT id, workflow_id, sender_id, content, type, created_at, deleted_at
        FROM workflow_messages
        WHERE id = $1
    `
	var m models.WorkflowMessage
	var msgType string
	err := db.db.QueryRow(query, messageID).Scan(
		&m.ID, &m.WorkflowID, &m.SenderID, &m.Content, &msgType, &m.CreatedAt, &m.DeletedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("message not found")
		}
		return nil, wrapDBErr(err, "failed to get message")
	}
	m.Type = models.MessageType(msgType)
	return &m, nil
}

// ListMessagesForViewer joins the viewer's read state. A viewer sees a
// message when they sent it, or when their recipient row exists and they
// have not soft-deleted their own copy. Sender-deleted messages are
// hidden from everyone.
func (db *PostgresDatabase) ListMessagesForViewer(workflowID, viewerID string) ([]models.MessageView, error) {
	query := `
        SELECT m.id, m.workflow_id, m.sender_id, m.content, m.type, m.created_at,
               COALESCE(r.is_read, false), r.read_at
        FROM workflow_messages m
        LEFT JOIN workflow_message_recipients r
               ON r.message_id = m.id AND r.recipient_id = $2
        WHERE m.workflow_id = $1
          AND m.deleted_at IS NULL
          AND (m.sender_id = $2 OR (r.recipient_id IS NOT NULL AND r.deleted_at IS NULL))
        ORDER BY m.created_at ASC
    `
	rows, err := db.db.Query(query, workflowID, viewerID)
	if err != nil {
		return nil, wrapDBErr(err, "failed to list messages")
	}
	defer rows.Close()

	var views []models.MessageView
	index := make(map[string]int)
	for rows.Next() {
		var v models.MessageView
		var msgType string
		if err := rows.Scan(&v.ID, &v.WorkflowID, &v.SenderID, &v.Content, &msgType,
			&v.CreatedAt, &v.IsRead, &v.ReadAt); err != nil {
			return nil, err
		}
		v.Type = models.MessageType(msgType)
		index[v.ID] = len(views)
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return views, nil
	}

	// Hydrate children with one query per table instead of one per message
	attRows, err := db.db.Query(`
        SELECT a.id, a.message_id, a.storage_key, a.file_name, COALESCE(a.content_type,''), COALESCE(a.size_bytes,0), a.created_at
        FROM workflow_message_attachments a
        JOIN workflow_messages m ON m.id = a.message_id
        WHERE m.workflow_id = $1
    `, workflowID)
	if err != nil {
		return nil, wrapDBErr(err, "failed to list attachments")
	}
	defer attRows.Close()
	for attRows.Next() {
		var a models.MessageAttachment
		if err := attRows.Scan(&a.ID, &a.MessageID, &a.StorageKey, &a.FileName, &a.ContentType, &a.SizeBytes, &a.CreatedAt); err != nil {
			return nil, err
		}
		if i, ok := index[a.MessageID]; ok {
			views[i].Attachments = append(views[i].Attachments, a)
		}
	}
	if err := attRows.Err(); err != nil {
		return nil, err
	}

	linkRows, err := db.db.Query(`
        SELECT l.id, l.message_id, l.url, COALESCE(l.title,''), l.created_at
        FROM workflow_message_links l
        JOIN workflow_messages m ON m.id = l.message_id
        WHERE m.workflow_id = $1
    `, workflowID)
	if err != nil {
		return nil, wrapDBErr(err, "failed to list links")
	}
	defer linkRows.Close()
	for linkRows.Next() {
		var l models.MessageLink
		if err := linkRows.Scan(&l.ID, &l.MessageID, &l.URL, &l.Title, &l.CreatedAt); err != nil {
			return nil, err
		}
		if i, ok := index[l.MessageID]; ok {
			views[i].Links = append(views[i].Links, l)
		}
	}
	return views, linkRows.Err()
}

func (db *PostgresDatabase) GetReadState(messageID, recipientID string) (*models.MessageRecipient, error) {
	query := `
        SELECT message_id, recipient_id, is_read, read_at, deleted_at
        FROM workflow_message_recipients
        WHERE message_id = $1 AND recipient_id = $2
    `
	var r models.MessageRecipient
	err := db.db.QueryRow(query, messageID, recipientID).Scan(
		&r.MessageID, &r.RecipientID, &r.IsRead, &r.ReadAt, &r.DeletedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("read state not found")
		}
		return nil, wrapDBErr(err, "failed to get read state")
	}
	return &r, nil
}

func (db *PostgresDatabase) MarkMessageRead(messageID, recipientID string, readAt time.Time) (bool, error) {
	res, err := db.db.Exec(`
        UPDATE workflow_message_recipients
        SET is_read = true, read_at = $1
        WHERE message_id = $2 AND recipient_id = $3 AND is_read = false
    `, readAt, messageID, recipientID)
	if err != nil {
		return false, wrapDBErr(err, "failed to mark message read")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapDBErr(err, "failed to read rows affected")
	}
	return n > 0, nil
}

func (db *PostgresDatabase) MarkAllRead(workflowID, recipientID string, readAt time.Time) (int64, error) {
	res, err := db.db.Exec(`
        UPDATE workflow_message_recipients r
        SET is_read = true, read_at = $1
        FROM workflow_messages m
        WHERE m.id = r.message_id
          AND m.workflow_id = $2
          AND r.recipient_id = $3
          AND r.is_read = false
          AND m.deleted_at IS NULL
    `, readAt, workflowID, recipientID)
	if err != nil {
		return 0, wrapDBErr(err, "failed to mark all read")
	}
	return res.RowsAffected()
}

func (db *PostgresDatabase) SoftDeleteMessage(messageID string, deletedAt time.Time) error {
	_, err := db.db.Exec(`
        UPDATE workflow_messages SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL
    `, deletedAt, messageID)
	if err != nil {
		return wrapDBErr(err, "failed to soft delete message")
	}
	return nil
}

func (db *PostgresDatabase) SoftDeleteMessageForRecipient(messageID, recipientID string, deletedAt time.Time) error {
	_, err := db.db.Exec(`
        UPDATE workflow_message_recipients
        SET deleted_at = $1
        WHERE message_id = $2 AND recipient_id = $3 AND deleted_at IS NULL
    `, deletedAt, messageID, recipientID)
	if err != nil {
		return wrapDBErr(err, "failed to soft delete message for recipient")
	}
	return nil
}

func (db *PostgresDatabase) ListSoftDeletedMessages(criteria MessageCriteria) ([]models.WorkflowMessage, error) {
	clauses := []string{"m.deleted_at IS NOT NULL"}
	args := []interface{}{}
	idx := 1
	if len(criteria.IDs) > 0 {
		clauses = append(clauses, fmt.Sprintf("m.id = ANY($%d)", idx))
		args = append(args, pq.Array(criteria.IDs))
		idx++
	}
	if criteria.TenantID != "" {
		clauses = append(clauses, fmt.Sprintf("w.tenant_id = $%d", idx))
		args = append(args, criteria.TenantID)
		idx++
	}
	if criteria.OlderThan != nil {
		clauses = append(clauses, fmt.Sprintf("m.created_at < $%d", idx))
		args = append(args, *criteria.OlderThan)
		idx++
	}
	query := fmt.Sprintf(`
        SELECT m.id, m.workflow_id, m.sender_id, m.content, m.type, m.created_at, m.deleted_at
        FROM workflow_messages m
        JOIN workflows w ON w.id = m.workflow_id
        WHERE %s
        ORDER BY m.created_at ASC
    `, strings.Join(clauses, " AND "))
	rows, err := db.db.Query(query, args...)
	if err != nil {
		return nil, wrapDBErr(err, "failed to list soft-deleted messages")
	}
	defer rows.Close()
	var list []models.WorkflowMessage
	for rows.Next() {
		var m models.WorkflowMessage
		var msgType string
		if err := rows.Scan(&m.ID, &m.WorkflowID, &m.SenderID, &m.Content, &msgType, &m.CreatedAt, &m.DeletedAt); err != nil {
			return nil, err
		}
		m.Type = models.MessageType(msgType)
		list = append(list, m)
	}
	return list, rows.Err()
}

func (db *PostgresDatabase) ListAttachmentsByMessage(messageID string) ([]models.MessageAttachment, error) {
	rows, err := db.db.Query(`
        SELECT id, message_id, storage_key, file_name, COALESCE(content_type,''), COALESCE(size_bytes,0), created_at
        FROM workflow_message_attachments
        WHERE message_id = $1
    `, messageID)
	if err != nil {
		return nil, wrapDBErr(err, "failed to list attachments")
	}
	defer rows.Close()
	var list []models.MessageAttachment
	for rows.Next() {
		var a models.MessageAttachment
		if err := rows.Scan(&a.ID, &a.MessageID, &a.StorageKey, &a.FileName, &a.ContentType, &a.SizeBytes, &a.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// HardDeleteMessage removes the row; recipient/attachment/link children
// go with it via ON DELETE CASCADE.
func (db *PostgresDatabase) HardDeleteMessage(messageID string) error {
	res, err := db.db.Exec(`DELETE FROM workflow_messages WHERE id = $1`, messageID)
	if err != nil {
		return wrapDBErr(err, "failed to hard delete message")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBErr(err, "failed to read rows affected")
	}
	if n == 0 {
		return apperr.NotFound("message not found")
	}
	return nil
}

// ================= Cascading deletion =================

func (db *PostgresDatabase) ListAttachmentsByWorkflow(workflowID string) ([]models.MessageAttachment, error) {
	rows, err := db.db.Query(`
        SELECT a.id, a.message_id, a.storage_key, a.file_name, COALESCE(a.content_type,''), COALESCE(a.size_bytes,0), a.created_at
        FROM workflow_message_attachments a
        JOIN workflow_messages m ON m.id = a.message_id
        WHERE m.workflow_id = $1
    `, workflowID)
	if err != nil {
		return nil, wrapDBErr(err, "failed to list workflow attachments")
	}
	defer rows.Close()
	var list []models.MessageAttachment
	for rows.Next() {
		var a models.MessageAttachment
		if err := rows.Scan(&a.ID, &a.MessageID, &a.StorageKey, &a.FileName, &a.ContentType, &a.SizeBytes, &a.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// PurgeWorkflow deletes the workflow's rows in dependency order inside a
// single transaction. Blob deletion happens before this call; database
// consistency wins over storage completeness.
func (db *PostgresDatabase) PurgeWorkflow(workflowID string) (*PurgeCounts, error) {
	tx, err := db.db.Begin()
	if err != nil {
		return nil, wrapDBErr(err, "failed to begin transaction")
	}
	counts := &PurgeCounts{}

	res, err := tx.Exec(`DELETE FROM workflow_messages WHERE workflow_id = $1`, workflowID)
	if err != nil {
		_ = tx.Rollback()
		return nil, wrapDBErr(err, "failed to delete messages")
	}
	counts.Messages, _ = res.RowsAffected()

	res, err = tx.Exec(`DELETE FROM workflow_participants WHERE workflow_id = $1`, workflowID)
	if err != nil {
		_ = tx.Rollback()
		return nil, wrapDBErr(err, "failed to delete participants")
	}
	counts.Participants, _ = res.RowsAffected()

	res, err = tx.Exec(`DELETE FROM workflow_invitations WHERE workflow_id = $1`, workflowID)
	if err != nil {
		_ = tx.Rollback()
		return nil, wrapDBErr(err, "failed to delete invitations")
	}
	counts.Invitations, _ = res.RowsAffected()

	res, err = tx.Exec(`DELETE FROM workflows WHERE id = $1`, workflowID)
	if err != nil {
		_ = tx.Rollback()
		return nil, wrapDBErr(err, "failed to delete workflow")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		_ = tx.Rollback()
		return nil, apperr.NotFound("workflow not found")
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapDBErr(err, "failed to commit purge")
	}
	return counts, nil
}

// ================= Notification channel =================

func (db *PostgresDatabase) ListTenantMessagesSince(tenantID string, since time.Time, limit int) ([]models.WorkflowMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
        SELECT m.id, m.workflow_id, m.sender_id, m.content, m.type, m.created_at, m.deleted_at
        FROM workflow_messages m
        JOIN workflows w ON w.id = m.workflow_id
        WHERE w.tenant_id = $1
          AND w.status <> 'deleted'
          AND m.deleted_at IS NULL
          AND m.created_at >= $2
        ORDER BY m.created_at ASC
        LIMIT $3
    `
	rows, err := db.db.Query(query, tenantID, since, limit)
	if err != nil {
		return nil, wrapDBErr(err, "failed to query messages since watermark")
	}
	defer rows.Close()
	var list []models.WorkflowMessage
	for rows.Next() {
		var m models.WorkflowMessage
		var msgType string
		if err := rows.Scan(&m.ID, &m.WorkflowID, &m.SenderID, &m.Content, &msgType, &m.CreatedAt, &m.DeletedAt); err != nil {
			return nil, err
		}
		m.Type = models.MessageType(msgType)
		list = append(list, m)
	}
	return list, rows.Err()
}

func (db *PostgresDatabase) HealthCheck() error {
	return db.db.Ping()
}

func (db *PostgresDatabase) Close() error {
	return db.db.Close()
}
