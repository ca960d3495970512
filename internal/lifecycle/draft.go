package lifecycle

import (
	"slices"

	"query-scheduler/internal/domain"
)

// Draft is the editable copy of a scheduled query's fields.
type Draft struct {
	Name     string
	SQLText  string
	Schedule domain.Schedule
	Tags     []TagRef
}

func snapshotDraft(q *domain.ScheduledQuery) *Draft {
	return &Draft{
		Name:     q.Name,
		SQLText:  q.SQLText,
		Schedule: q.Schedule,
		Tags:     TagIDs(q.Tags...),
	}
}

func (d *Draft) clone() *Draft {
	if d == nil {
		return nil
	}
	c := *d
	c.Tags = slices.Clone(d.Tags)
	return &c
}

// saveRequest builds the record handed to the saver. Names are trimmed and
// tags reduced to identifiers.
func (d *Draft) saveRequest(q *domain.ScheduledQuery) domain.SaveRequest {
	return domain.SaveRequest{
		ID:           q.ID,
		ConnectionID: q.ConnectionID,
		Owner:        q.Owner,
		SQLText:      d.SQLText,
		Name:         domain.NormalizeName(d.Name),
		Schedule:     d.Schedule.Normalize(),
		Tags:         FormatTags(d.Tags),
	}
}
