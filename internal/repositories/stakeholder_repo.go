package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/subineru/redmine-stakeholder/internal/models"
)

type StakeholderRepo struct {
	pool *pgxpool.Pool
}

func NewStakeholderRepo(pool *pgxpool.Pool) *StakeholderRepo {
	return &StakeholderRepo{pool: pool}
}

const stakeholderColumns = `
	id, project_id, project_sequence_number, name, title, location_type,
	project_role, primary_needs, expectations, participation_degree,
	power, interest, position, created_at, updated_at`

func scanStakeholder(row pgx.Row, s *models.Stakeholder) error {
	return row.Scan(
		&s.ID, &s.ProjectID, &s.ProjectSequenceNumber, &s.Name, &s.Title,
		&s.LocationType, &s.ProjectRole, &s.PrimaryNeeds, &s.Expectations,
		&s.ParticipationDegree, &s.Power, &s.Interest, &s.Position,
		&s.CreatedAt, &s.UpdatedAt,
	)
}

// Create persists a new stakeholder and assigns its project-local sequence
// number. The project row is locked for the duration of the transaction so
// concurrent creations in the same project cannot read the same max and
// collide; the unique index on (project_id, project_sequence_number) backs
// this up. Returns models.ErrNotFound when the project does not exist.
func (r *StakeholderRepo) Create(ctx context.Context, s *models.Stakeholder) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var projectID uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT id FROM projects WHERE id = $1 FOR UPDATE
	`, s.ProjectID).Scan(&projectID)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}
	if err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(project_sequence_number), 0) + 1
		FROM stakeholders WHERE project_id = $1
	`, s.ProjectID).Scan(&s.ProjectSequenceNumber)
	if err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO stakeholders (
			project_id, project_sequence_number, name, title, location_type,
			project_role, primary_needs, expectations, participation_degree,
			power, interest, position
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`, s.ProjectID, s.ProjectSequenceNumber, s.Name, s.Title, s.LocationType,
		s.ProjectRole, s.PrimaryNeeds, s.Expectations, s.ParticipationDegree,
		s.Power, s.Interest, s.Position).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *StakeholderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Stakeholder, error) {
	var s models.Stakeholder
	row := r.pool.QueryRow(ctx, `SELECT`+stakeholderColumns+` FROM stakeholders WHERE id = $1`, id)
	if err := scanStakeholder(row, &s); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *StakeholderRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Stakeholder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+stakeholderColumns+`
		FROM stakeholders WHERE project_id = $1
		ORDER BY position, project_sequence_number
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Stakeholder
	for rows.Next() {
		var s models.Stakeholder
		if err := scanStakeholder(rows, &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *StakeholderRepo) Update(ctx context.Context, s *models.Stakeholder) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE stakeholders SET
			name = $1, title = $2, location_type = $3, project_role = $4,
			primary_needs = $5, expectations = $6, participation_degree = $7,
			power = $8, interest = $9, position = $10, updated_at = now()
		WHERE id = $11
	`, s.Name, s.Title, s.LocationType, s.ProjectRole, s.PrimaryNeeds,
		s.Expectations, s.ParticipationDegree, s.Power, s.Interest,
		s.Position, s.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Delete removes the record. History rows cascade at the database level.
func (r *StakeholderRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM stakeholders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DegreeCount is one analytics bucket: how many stakeholders sit at a
// participation degree, and which ones.
type DegreeCount struct {
	Degree string      `json:"degree"`
	Count  int         `json:"count"`
	IDs    []uuid.UUID `json:"ids"`
}

func (r *StakeholderRepo) CountByProject(ctx context.Context, projectID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM stakeholders WHERE project_id = $1
	`, projectID).Scan(&n)
	return n, err
}

func (r *StakeholderRepo) GroupByParticipationDegree(ctx context.Context, projectID uuid.UUID) ([]DegreeCount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT participation_degree, COUNT(*), ARRAY_AGG(id ORDER BY project_sequence_number)
		FROM stakeholders
		WHERE project_id = $1 AND participation_degree <> ''
		GROUP BY participation_degree
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DegreeCount
	for rows.Next() {
		var dc DegreeCount
		if err := rows.Scan(&dc.Degree, &dc.Count, &dc.IDs); err != nil {
			return nil, err
		}
		out = append(out, dc)
	}
	return out, rows.Err()
}

func (r *StakeholderRepo) GroupByLocationType(ctx context.Context, projectID uuid.UUID) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT location_type, COUNT(*)
		FROM stakeholders
		WHERE project_id = $1 AND location_type <> ''
		GROUP BY location_type
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var locationType string
		var count int
		if err := rows.Scan(&locationType, &count); err != nil {
			return nil, err
		}
		out[locationType] = count
	}
	return out, rows.Err()
}
