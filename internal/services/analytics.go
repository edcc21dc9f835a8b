package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/subineru/redmine-stakeholder/internal/models"
	"github.com/subineru/redmine-stakeholder/internal/rbac"
)

// DegreeStat is one participation-degree bucket, zero-filled so charts
// always show all five levels in order.
type DegreeStat struct {
	Degree string      `json:"degree"`
	Label  string      `json:"label"`
	Count  int         `json:"count"`
	IDs    []uuid.UUID `json:"ids,omitempty"`
}

type LocationStat struct {
	LocationType string `json:"location_type"`
	Label        string `json:"label"`
	Count        int    `json:"count"`
}

type Analytics struct {
	TotalCount           int            `json:"total_count"`
	ParticipationDegrees []DegreeStat   `json:"participation_degrees"`
	LocationTypes        []LocationStat `json:"location_types"`
}

// Analytics aggregates a project's stakeholder distribution across the
// ordered participation degrees and the location types.
func (s *StakeholderService) Analytics(ctx context.Context, actor, projectID uuid.UUID) (*Analytics, error) {
	if err := s.authorize(ctx, actor, projectID, rbac.PermViewStakeholders); err != nil {
		return nil, err
	}

	total, err := s.store.CountByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	byDegree, err := s.store.GroupByParticipationDegree(ctx, projectID)
	if err != nil {
		return nil, err
	}
	counted := make(map[string]DegreeStat, len(byDegree))
	for _, dc := range byDegree {
		counted[dc.Degree] = DegreeStat{
			Degree: dc.Degree,
			Label:  models.FormatFieldValue(models.FieldParticipationDegree, dc.Degree),
			Count:  dc.Count,
			IDs:    dc.IDs,
		}
	}
	degrees := make([]DegreeStat, 0, len(models.ParticipationDegrees))
	for _, degree := range models.ParticipationDegrees {
		stat, ok := counted[degree]
		if !ok {
			stat = DegreeStat{
				Degree: degree,
				Label:  models.FormatFieldValue(models.FieldParticipationDegree, degree),
			}
		}
		degrees = append(degrees, stat)
	}

	byLocation, err := s.store.GroupByLocationType(ctx, projectID)
	if err != nil {
		return nil, err
	}
	locations := make([]LocationStat, 0, len(models.LocationTypes))
	for _, lt := range models.LocationTypes {
		locations = append(locations, LocationStat{
			LocationType: lt,
			Label:        models.FormatFieldValue(models.FieldLocationType, lt),
			Count:        byLocation[lt],
		})
	}

	return &Analytics{
		TotalCount:           total,
		ParticipationDegrees: degrees,
		LocationTypes:        locations,
	}, nil
}
