package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/subineru/redmine-stakeholder/internal/events"
	"github.com/subineru/redmine-stakeholder/internal/models"
	"github.com/subineru/redmine-stakeholder/internal/ratelimit"
	"github.com/subineru/redmine-stakeholder/internal/rbac"
	"github.com/subineru/redmine-stakeholder/internal/repositories"
)

// StakeholderStore is the record store: creation with sequence assignment,
// whitelisted mutation, destruction, list/analytics queries.
type StakeholderStore interface {
	Create(ctx context.Context, s *models.Stakeholder) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Stakeholder, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Stakeholder, error)
	Update(ctx context.Context, s *models.Stakeholder) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountByProject(ctx context.Context, projectID uuid.UUID) (int, error)
	GroupByParticipationDegree(ctx context.Context, projectID uuid.UUID) ([]repositories.DegreeCount, error)
	GroupByLocationType(ctx context.Context, projectID uuid.UUID) (map[string]int, error)
}

// HistoryStore is the audit ledger: append and ordered retrieval.
type HistoryStore interface {
	Record(ctx context.Context, h *models.History) error
	ListByStakeholder(ctx context.Context, stakeholderID uuid.UUID, limit, offset int) ([]models.History, error)
}

// MemberStore resolves an actor's role within a project.
type MemberStore interface {
	MemberRole(ctx context.Context, projectID, userID uuid.UUID) (string, error)
}

// FieldValue is one requested field assignment, raw string form. Updates
// carry an ordered slice of these so audit entries preserve the order the
// caller listed the fields in.
type FieldValue struct {
	Field string
	Value string
}

type StakeholderService struct {
	store     StakeholderStore
	history   HistoryStore
	members   MemberStore
	limiter   ratelimit.Limiter
	publisher events.Publisher
	log       *zap.Logger
}

func NewStakeholderService(
	store StakeholderStore,
	history HistoryStore,
	members MemberStore,
	limiter ratelimit.Limiter,
	publisher events.Publisher,
	log *zap.Logger,
) *StakeholderService {
	return &StakeholderService{
		store:     store,
		history:   history,
		members:   members,
		limiter:   limiter,
		publisher: publisher,
		log:       log,
	}
}

func (s *StakeholderService) authorize(ctx context.Context, actor, projectID uuid.UUID, permission string) error {
	role, err := s.members.MemberRole(ctx, projectID, actor)
	if err != nil {
		return err
	}
	if !rbac.HasPermission(role, permission) {
		s.log.Warn("permission denied",
			zap.String("actor", actor.String()),
			zap.String("project", projectID.String()),
			zap.String("permission", permission))
		return models.ErrUnauthorized
	}
	return nil
}

// findInProject loads the record and verifies it belongs to the project the
// caller asserted. A record under another project reads as not found so
// cross-project probing cannot confirm existence.
func (s *StakeholderService) findInProject(ctx context.Context, projectID, recordID uuid.UUID) (*models.Stakeholder, error) {
	rec, err := s.store.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec.ProjectID != projectID {
		s.log.Warn("cross-project record access attempt",
			zap.String("record", recordID.String()),
			zap.String("asserted_project", projectID.String()))
		return nil, models.ErrNotFound
	}
	return rec, nil
}

func (s *StakeholderService) Create(ctx context.Context, actor, projectID uuid.UUID, fields []FieldValue) (*models.Stakeholder, error) {
	if err := s.authorize(ctx, actor, projectID, rbac.PermManageStakeholders); err != nil {
		return nil, err
	}

	rec := &models.Stakeholder{ProjectID: projectID}
	for _, fv := range fields {
		if !models.IsUpdatableField(fv.Field) {
			return nil, &models.ForbiddenFieldError{Field: fv.Field}
		}
		if err := rec.SetFieldValue(fv.Field, fv.Value); err != nil {
			return nil, err
		}
	}
	if err := rec.Validate(); err != nil {
		s.log.Warn("stakeholder creation rejected",
			zap.String("project", projectID.String()),
			zap.String("actor", actor.String()),
			zap.Error(err))
		return nil, err
	}

	if err := s.store.Create(ctx, rec); err != nil {
		return nil, err
	}

	if err := s.history.Record(ctx, &models.History{
		StakeholderID: rec.ID,
		UserID:        actor,
		Action:        models.ActionCreate,
	}); err != nil {
		return nil, fmt.Errorf("record create history: %w", err)
	}

	s.log.Info("stakeholder created",
		zap.String("id", rec.ID.String()),
		zap.String("project", projectID.String()),
		zap.Int("sequence", rec.ProjectSequenceNumber),
		zap.String("actor", actor.String()))
	s.publish(ctx, events.EventStakeholderCreated, rec, actor, nil)

	return rec, nil
}

// Update applies a multi-field change all-or-nothing and writes one audit
// entry per field whose value actually differs from its pre-update
// snapshot. Fields resubmitted with their current value generate nothing.
func (s *StakeholderService) Update(ctx context.Context, actor, projectID, recordID uuid.UUID, fields []FieldValue) (*models.Stakeholder, []models.FieldChange, error) {
	if err := s.authorize(ctx, actor, projectID, rbac.PermManageStakeholders); err != nil {
		return nil, nil, err
	}

	rec, err := s.findInProject(ctx, projectID, recordID)
	if err != nil {
		return nil, nil, err
	}

	// Work on a copy: parse or validation failures must leave the loaded
	// record untouched.
	updated := *rec
	snapshots := make([]string, len(fields))
	for i, fv := range fields {
		if !models.IsUpdatableField(fv.Field) {
			return nil, nil, &models.ForbiddenFieldError{Field: fv.Field}
		}
		snapshots[i], _ = rec.FieldValue(fv.Field)
		if err := updated.SetFieldValue(fv.Field, fv.Value); err != nil {
			return nil, nil, err
		}
	}
	if err := updated.Validate(); err != nil {
		return nil, nil, err
	}

	var changes []models.FieldChange
	seen := make(map[string]bool, len(fields))
	for i, fv := range fields {
		if seen[fv.Field] {
			continue
		}
		seen[fv.Field] = true
		newValue, _ := updated.FieldValue(fv.Field)
		if snapshots[i] != newValue {
			changes = append(changes, models.FieldChange{
				Field:    fv.Field,
				OldValue: snapshots[i],
				NewValue: newValue,
			})
		}
	}

	if len(changes) == 0 {
		return rec, nil, nil
	}

	if err := s.store.Update(ctx, &updated); err != nil {
		return nil, nil, err
	}

	if err := s.recordChanges(ctx, &updated, actor, changes); err != nil {
		return nil, nil, err
	}

	changedNames := make([]string, len(changes))
	for i, c := range changes {
		changedNames[i] = c.Field
	}
	s.publish(ctx, events.EventStakeholderUpdated, &updated, actor, changedNames)

	return &updated, changes, nil
}

// InlineUpdate is the restricted single-field path: rate limited per actor,
// gated by the inline whitelist (no position), returning the display value
// for the edited cell.
func (s *StakeholderService) InlineUpdate(ctx context.Context, actor, projectID, recordID uuid.UUID, field, value string) (string, error) {
	if err := s.authorize(ctx, actor, projectID, rbac.PermManageStakeholders); err != nil {
		return "", err
	}

	ok, err := s.limiter.Allow(ctx, "inline_update:"+actor.String())
	if err != nil {
		return "", err
	}
	if !ok {
		s.log.Warn("inline update rate limit exceeded", zap.String("actor", actor.String()))
		return "", models.ErrRateLimited
	}

	if !models.IsInlineField(field) {
		s.log.Warn("inline update to non-whitelisted field",
			zap.String("actor", actor.String()),
			zap.String("field", field))
		return "", &models.ForbiddenFieldError{Field: field}
	}

	rec, err := s.findInProject(ctx, projectID, recordID)
	if err != nil {
		return "", err
	}

	updated := *rec
	oldValue, _ := rec.FieldValue(field)
	if err := updated.SetFieldValue(field, value); err != nil {
		return "", err
	}
	if err := updated.Validate(); err != nil {
		return "", err
	}

	newValue, _ := updated.FieldValue(field)
	if oldValue == newValue {
		return models.InlineDisplayValue(field, rec), nil
	}

	if err := s.store.Update(ctx, &updated); err != nil {
		return "", err
	}

	change := models.FieldChange{Field: field, OldValue: oldValue, NewValue: newValue}
	if err := s.recordChanges(ctx, &updated, actor, []models.FieldChange{change}); err != nil {
		return "", err
	}

	s.publish(ctx, events.EventStakeholderUpdated, &updated, actor, []string{field})

	return models.InlineDisplayValue(field, &updated), nil
}

// Destroy writes the delete audit entry while the record still exists and
// only then removes it; removal cascades the record's ledger rows.
func (s *StakeholderService) Destroy(ctx context.Context, actor, projectID, recordID uuid.UUID) error {
	if err := s.authorize(ctx, actor, projectID, rbac.PermManageStakeholders); err != nil {
		return err
	}

	rec, err := s.findInProject(ctx, projectID, recordID)
	if err != nil {
		return err
	}

	if err := s.history.Record(ctx, &models.History{
		StakeholderID: rec.ID,
		UserID:        actor,
		Action:        models.ActionDelete,
	}); err != nil {
		return fmt.Errorf("record delete history: %w", err)
	}

	if err := s.store.Delete(ctx, rec.ID); err != nil {
		return err
	}

	s.log.Info("stakeholder deleted",
		zap.String("id", rec.ID.String()),
		zap.String("project", projectID.String()),
		zap.String("actor", actor.String()))
	s.publish(ctx, events.EventStakeholderDeleted, rec, actor, nil)

	return nil
}

func (s *StakeholderService) Get(ctx context.Context, actor, projectID, recordID uuid.UUID) (*models.Stakeholder, error) {
	if err := s.authorize(ctx, actor, projectID, rbac.PermViewStakeholders); err != nil {
		return nil, err
	}
	return s.findInProject(ctx, projectID, recordID)
}

func (s *StakeholderService) List(ctx context.Context, actor, projectID uuid.UUID) ([]models.Stakeholder, error) {
	if err := s.authorize(ctx, actor, projectID, rbac.PermViewStakeholders); err != nil {
		return nil, err
	}
	return s.store.ListByProject(ctx, projectID)
}

// Export returns the project's records for file download. It checks the
// export permission rather than plain viewing, so a deployment can grant the
// two separately.
func (s *StakeholderService) Export(ctx context.Context, actor, projectID uuid.UUID) ([]models.Stakeholder, error) {
	if err := s.authorize(ctx, actor, projectID, rbac.PermExportStakeholders); err != nil {
		return nil, err
	}
	return s.store.ListByProject(ctx, projectID)
}

func (s *StakeholderService) History(ctx context.Context, actor, projectID, recordID uuid.UUID, limit, offset int) ([]models.History, error) {
	if err := s.authorize(ctx, actor, projectID, rbac.PermViewHistory); err != nil {
		return nil, err
	}
	if _, err := s.findInProject(ctx, projectID, recordID); err != nil {
		return nil, err
	}
	return s.history.ListByStakeholder(ctx, recordID, limit, offset)
}

// recordChanges appends one ledger row per changed field, in change order,
// with display-formatted values. Enum codes are label-converted at write
// time: the ledger stores what a user would read, not internal codes.
func (s *StakeholderService) recordChanges(ctx context.Context, rec *models.Stakeholder, actor uuid.UUID, changes []models.FieldChange) error {
	for _, c := range changes {
		h := &models.History{
			StakeholderID: rec.ID,
			UserID:        actor,
			Action:        models.ActionUpdate,
			FieldName:     c.Field,
			OldValue:      models.FormatFieldValue(c.Field, c.OldValue),
			NewValue:      models.FormatFieldValue(c.Field, c.NewValue),
		}
		if err := s.history.Record(ctx, h); err != nil {
			return fmt.Errorf("record update history for %s: %w", c.Field, err)
		}
	}
	return nil
}

func (s *StakeholderService) publish(ctx context.Context, eventType string, rec *models.Stakeholder, actor uuid.UUID, changedFields []string) {
	if s.publisher == nil {
		return
	}
	payload := map[string]any{
		"stakeholder_id": rec.ID.String(),
		"project_id":     rec.ProjectID.String(),
		"actor_id":       actor.String(),
	}
	if len(changedFields) > 0 {
		payload["changed_fields"] = changedFields
	}
	if err := s.publisher.Publish(ctx, events.StreamStakeholders, events.Event{
		Type:    eventType,
		Payload: payload,
	}); err != nil {
		s.log.Warn("event publish failed", zap.String("type", eventType), zap.Error(err))
	}
}
