package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/subineru/redmine-stakeholder/internal/models"
	"github.com/subineru/redmine-stakeholder/internal/rbac"
	"github.com/subineru/redmine-stakeholder/internal/repositories"
)

// opLog records the order of side effects so tests can assert sequencing
// (the delete audit entry must land before the record is removed).
type opLog struct {
	mu  sync.Mutex
	ops []string
}

func (l *opLog) add(op string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ops = append(l.ops, op)
}

type fakeStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]models.Stakeholder
	log     *opLog
}

func newFakeStore(log *opLog) *fakeStore {
	return &fakeStore{records: make(map[uuid.UUID]models.Stakeholder), log: log}
}

func (f *fakeStore) Create(ctx context.Context, s *models.Stakeholder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	max := 0
	for _, r := range f.records {
		if r.ProjectID == s.ProjectID && r.ProjectSequenceNumber > max {
			max = r.ProjectSequenceNumber
		}
	}
	s.ID = uuid.New()
	s.ProjectSequenceNumber = max + 1
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	f.records[s.ID] = *s
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Stakeholder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &r, nil
}

func (f *fakeStore) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Stakeholder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Stakeholder
	for _, r := range f.records {
		if r.ProjectID == projectID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ProjectSequenceNumber < out[j].ProjectSequenceNumber
	})
	return out, nil
}

func (f *fakeStore) Update(ctx context.Context, s *models.Stakeholder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[s.ID]; !ok {
		return models.ErrNotFound
	}
	f.records[s.ID] = *s
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[id]; !ok {
		return models.ErrNotFound
	}
	delete(f.records, id)
	f.log.add("store:delete")
	return nil
}

func (f *fakeStore) CountByProject(ctx context.Context, projectID uuid.UUID) (int, error) {
	list, _ := f.ListByProject(ctx, projectID)
	return len(list), nil
}

func (f *fakeStore) GroupByParticipationDegree(ctx context.Context, projectID uuid.UUID) ([]repositories.DegreeCount, error) {
	list, _ := f.ListByProject(ctx, projectID)
	byDegree := make(map[string]*repositories.DegreeCount)
	for _, r := range list {
		if r.ParticipationDegree == "" {
			continue
		}
		dc, ok := byDegree[r.ParticipationDegree]
		if !ok {
			dc = &repositories.DegreeCount{Degree: r.ParticipationDegree}
			byDegree[r.ParticipationDegree] = dc
		}
		dc.Count++
		dc.IDs = append(dc.IDs, r.ID)
	}
	var out []repositories.DegreeCount
	for _, dc := range byDegree {
		out = append(out, *dc)
	}
	return out, nil
}

func (f *fakeStore) GroupByLocationType(ctx context.Context, projectID uuid.UUID) (map[string]int, error) {
	list, _ := f.ListByProject(ctx, projectID)
	out := make(map[string]int)
	for _, r := range list {
		if r.LocationType != "" {
			out[r.LocationType]++
		}
	}
	return out, nil
}

// fakeHistory stamps every entry with its current clock and only advances
// when the test ticks, so entries written by one operation share a
// timestamp the way same-transaction rows do.
type fakeHistory struct {
	mu      sync.Mutex
	entries []models.History
	nextID  int64
	now     time.Time
	log     *opLog
}

func newFakeHistory(log *opLog) *fakeHistory {
	return &fakeHistory{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), log: log}
}

func (f *fakeHistory) tick() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(time.Second)
}

func (f *fakeHistory) Record(ctx context.Context, h *models.History) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	h.ID = f.nextID
	h.CreatedAt = f.now
	f.entries = append(f.entries, *h)
	f.log.add("history:" + h.Action)
	return nil
}

func (f *fakeHistory) ListByStakeholder(ctx context.Context, stakeholderID uuid.UUID, limit, offset int) ([]models.History, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.History
	for _, h := range f.entries {
		if h.StakeholderID == stakeholderID {
			out = append(out, h)
		}
	}
	// created_at descending, insertion order within equal timestamps
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type fakeMembers struct {
	roles map[uuid.UUID]map[uuid.UUID]string // project -> user -> role
}

func (f *fakeMembers) MemberRole(ctx context.Context, projectID, userID uuid.UUID) (string, error) {
	return f.roles[projectID][userID], nil
}

type fakeLimiter struct {
	mu    sync.Mutex
	count map[string]int
	limit int
}

func (f *fakeLimiter) Allow(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.count == nil {
		f.count = make(map[string]int)
	}
	f.count[key]++
	return f.count[key] <= f.limit, nil
}

type fixture struct {
	svc     *StakeholderService
	store   *fakeStore
	history *fakeHistory
	limiter *fakeLimiter
	ops     *opLog
	project uuid.UUID
	other   uuid.UUID
	manager uuid.UUID
	viewer  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ops := &opLog{}
	store := newFakeStore(ops)
	history := newFakeHistory(ops)
	limiter := &fakeLimiter{limit: 30}

	project := uuid.New()
	other := uuid.New()
	manager := uuid.New()
	viewer := uuid.New()
	members := &fakeMembers{roles: map[uuid.UUID]map[uuid.UUID]string{
		project: {manager: rbac.RoleManager, viewer: rbac.RoleViewer},
		other:   {manager: rbac.RoleManager},
	}}

	svc := NewStakeholderService(store, history, members, limiter, nil, zap.NewNop())
	return &fixture{
		svc: svc, store: store, history: history, limiter: limiter, ops: ops,
		project: project, other: other, manager: manager, viewer: viewer,
	}
}

func TestCreateAssignsGaplessSequenceNumbers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var seqs []int
	for i := 0; i < 5; i++ {
		rec, err := f.svc.Create(ctx, f.manager, f.project, []FieldValue{{Field: models.FieldName, Value: "S"}})
		require.NoError(t, err)
		seqs = append(seqs, rec.ProjectSequenceNumber)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, seqs)

	// a different project starts its own sequence
	rec, err := f.svc.Create(ctx, f.manager, f.other, []FieldValue{{Field: models.FieldName, Value: "T"}})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.ProjectSequenceNumber)
}

func TestCreateValidationFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.manager, f.project, []FieldValue{
		{Field: models.FieldName, Value: ""},
		{Field: models.FieldPower, Value: "9"},
	})
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Fields, 2)
	assert.Empty(t, f.store.records)
	assert.Empty(t, f.history.entries)
}

func TestLifecycleScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// create {name: Alice, power: 3}
	rec, err := f.svc.Create(ctx, f.manager, f.project, []FieldValue{
		{Field: models.FieldName, Value: "Alice"},
		{Field: models.FieldPower, Value: "3"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.ProjectSequenceNumber)

	entries, err := f.svc.History(ctx, f.viewer, f.project, rec.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionCreate, entries[0].Action)

	// update power 3->5, interest nil->2
	f.history.tick()
	_, changes, err := f.svc.Update(ctx, f.manager, f.project, rec.ID, []FieldValue{
		{Field: models.FieldPower, Value: "5"},
		{Field: models.FieldInterest, Value: "2"},
	})
	require.NoError(t, err)
	require.Len(t, changes, 2)

	entries, err = f.svc.History(ctx, f.viewer, f.project, rec.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	// most recent first; within the update batch, field order preserved
	assert.Equal(t, models.FieldPower, entries[0].FieldName)
	assert.Equal(t, "3", entries[0].OldValue)
	assert.Equal(t, "5", entries[0].NewValue)
	assert.Equal(t, models.FieldInterest, entries[1].FieldName)
	assert.Equal(t, "", entries[1].OldValue)
	assert.Equal(t, "2", entries[1].NewValue)
	assert.Equal(t, models.ActionCreate, entries[2].Action)

	// inline update location_type -> internal, label-formatted in ledger
	f.history.tick()
	formatted, err := f.svc.InlineUpdate(ctx, f.manager, f.project, rec.ID, models.FieldLocationType, "internal")
	require.NoError(t, err)
	assert.Equal(t, "Internal", formatted)

	entries, err = f.svc.History(ctx, f.viewer, f.project, rec.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, models.FieldLocationType, entries[0].FieldName)
	assert.Equal(t, "", entries[0].OldValue)
	assert.Equal(t, "Internal", entries[0].NewValue)

	// destroy: delete entry is written before the record goes away
	f.history.tick()
	require.NoError(t, f.svc.Destroy(ctx, f.manager, f.project, rec.ID))

	require.GreaterOrEqual(t, len(f.ops.ops), 2)
	lastTwo := f.ops.ops[len(f.ops.ops)-2:]
	assert.Equal(t, []string{"history:delete", "store:delete"}, lastTwo)

	_, err = f.svc.Get(ctx, f.viewer, f.project, rec.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUpdateUnchangedValueProducesNoEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.Create(ctx, f.manager, f.project, []FieldValue{
		{Field: models.FieldName, Value: "Alice"},
		{Field: models.FieldTitle, Value: "CTO"},
	})
	require.NoError(t, err)

	before := len(f.history.entries)
	_, changes, err := f.svc.Update(ctx, f.manager, f.project, rec.ID, []FieldValue{
		{Field: models.FieldName, Value: "Alice"}, // unchanged
		{Field: models.FieldTitle, Value: "CEO"},  // changed
	})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, models.FieldTitle, changes[0].Field)
	assert.Equal(t, before+1, len(f.history.entries))
}

func TestUpdateAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.Create(ctx, f.manager, f.project, []FieldValue{
		{Field: models.FieldName, Value: "Alice"},
	})
	require.NoError(t, err)

	before := len(f.history.entries)
	_, _, err = f.svc.Update(ctx, f.manager, f.project, rec.ID, []FieldValue{
		{Field: models.FieldTitle, Value: "CTO"},
		{Field: models.FieldPower, Value: "9"}, // out of range
	})
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)

	stored, err := f.svc.Get(ctx, f.viewer, f.project, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "", stored.Title, "no field may be mutated on validation failure")
	assert.Equal(t, before, len(f.history.entries))
}

func TestUpdateForbiddenField(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.Create(ctx, f.manager, f.project, []FieldValue{
		{Field: models.FieldName, Value: "Alice"},
	})
	require.NoError(t, err)

	_, _, err = f.svc.Update(ctx, f.manager, f.project, rec.ID, []FieldValue{
		{Field: "project_sequence_number", Value: "99"},
	})
	var fe *models.ForbiddenFieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "project_sequence_number", fe.Field)
}

func TestInlineUpdateIdempotentResubmission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.Create(ctx, f.manager, f.project, []FieldValue{
		{Field: models.FieldName, Value: "Alice"},
	})
	require.NoError(t, err)
	before := len(f.history.entries)

	_, err = f.svc.InlineUpdate(ctx, f.manager, f.project, rec.ID, models.FieldTitle, "CTO")
	require.NoError(t, err)
	assert.Equal(t, before+1, len(f.history.entries), "first call audits once")

	formatted, err := f.svc.InlineUpdate(ctx, f.manager, f.project, rec.ID, models.FieldTitle, "CTO")
	require.NoError(t, err)
	assert.Equal(t, "CTO", formatted)
	assert.Equal(t, before+1, len(f.history.entries), "resubmission audits nothing")
}

func TestInlineUpdateRejectsPosition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.Create(ctx, f.manager, f.project, []FieldValue{
		{Field: models.FieldName, Value: "Alice"},
	})
	require.NoError(t, err)

	_, err = f.svc.InlineUpdate(ctx, f.manager, f.project, rec.ID, models.FieldPosition, "2")
	var fe *models.ForbiddenFieldError
	require.ErrorAs(t, err, &fe)
}

func TestInlineUpdateRateLimitBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.Create(ctx, f.manager, f.project, []FieldValue{
		{Field: models.FieldName, Value: "Alice"},
	})
	require.NoError(t, err)

	for i := 0; i < 30; i++ {
		value := "a"
		if i%2 == 1 {
			value = "b"
		}
		_, err := f.svc.InlineUpdate(ctx, f.manager, f.project, rec.ID, models.FieldTitle, value)
		require.NoError(t, err, "call %d should be within budget", i+1)
	}

	before := len(f.history.entries)
	_, err = f.svc.InlineUpdate(ctx, f.manager, f.project, rec.ID, models.FieldTitle, "c")
	require.ErrorIs(t, err, models.ErrRateLimited, "31st call exceeds the budget")
	assert.Equal(t, before, len(f.history.entries), "limited call writes nothing")

	stored, err := f.svc.Get(ctx, f.viewer, f.project, rec.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "c", stored.Title, "limited call mutates nothing")
}

func TestCrossProjectAccessReadsAsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.Create(ctx, f.manager, f.project, []FieldValue{
		{Field: models.FieldName, Value: "Alice"},
	})
	require.NoError(t, err)
	before := len(f.history.entries)

	// manager of project `other` asserts the wrong project scope
	_, _, err = f.svc.Update(ctx, f.manager, f.other, rec.ID, []FieldValue{
		{Field: models.FieldName, Value: "Mallory"},
	})
	assert.ErrorIs(t, err, models.ErrNotFound)

	err = f.svc.Destroy(ctx, f.manager, f.other, rec.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	stored, err := f.svc.Get(ctx, f.viewer, f.project, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", stored.Name)
	assert.Equal(t, before, len(f.history.entries))
}

func TestAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.Create(ctx, f.manager, f.project, []FieldValue{
		{Field: models.FieldName, Value: "Alice"},
	})
	require.NoError(t, err)

	// viewer can read but not mutate
	_, err = f.svc.Get(ctx, f.viewer, f.project, rec.ID)
	require.NoError(t, err)
	_, _, err = f.svc.Update(ctx, f.viewer, f.project, rec.ID, []FieldValue{
		{Field: models.FieldName, Value: "Eve"},
	})
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	err = f.svc.Destroy(ctx, f.viewer, f.project, rec.ID)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	// a non-member can do nothing
	stranger := uuid.New()
	_, err = f.svc.Get(ctx, stranger, f.project, rec.ID)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestExportAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.manager, f.project, []FieldValue{
		{Field: models.FieldName, Value: "Alice"},
	})
	require.NoError(t, err)

	// both project roles carry the export permission
	records, err := f.svc.Export(ctx, f.viewer, f.project)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	_, err = f.svc.Export(ctx, uuid.New(), f.project)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestAnalytics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	degrees := []string{
		models.DegreeSupportive, models.DegreeSupportive, models.DegreeNeutral,
	}
	locations := []string{models.LocationInternal, models.LocationExternal, models.LocationInternal}
	for i := range degrees {
		_, err := f.svc.Create(ctx, f.manager, f.project, []FieldValue{
			{Field: models.FieldName, Value: "S"},
			{Field: models.FieldParticipationDegree, Value: degrees[i]},
			{Field: models.FieldLocationType, Value: locations[i]},
		})
		require.NoError(t, err)
	}

	stats, err := f.svc.Analytics(ctx, f.viewer, f.project)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalCount)

	require.Len(t, stats.ParticipationDegrees, 5, "all degrees present, zero-filled")
	byDegree := make(map[string]DegreeStat)
	for _, d := range stats.ParticipationDegrees {
		byDegree[d.Degree] = d
	}
	assert.Equal(t, 2, byDegree[models.DegreeSupportive].Count)
	assert.Len(t, byDegree[models.DegreeSupportive].IDs, 2)
	assert.Equal(t, 1, byDegree[models.DegreeNeutral].Count)
	assert.Equal(t, 0, byDegree[models.DegreeLeading].Count)
	assert.Equal(t, "Completely Unaware", byDegree[models.DegreeCompletelyUnaware].Label)

	byLocation := make(map[string]int)
	for _, l := range stats.LocationTypes {
		byLocation[l.LocationType] = l.Count
	}
	assert.Equal(t, 2, byLocation[models.LocationInternal])
	assert.Equal(t, 1, byLocation[models.LocationExternal])
}
