package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memTimeline struct {
	rows       []TimelineRow
	lastOffset int
	lastLimit  int
}

func (m *memTimeline) TimelineWindow(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	m.lastOffset = offset
	m.lastLimit = limit
	if offset >= len(m.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.rows) {
		end = len(m.rows)
	}
	return m.rows[offset:end], nil
}

func timelineRows(n int) []TimelineRow {
	rows := make([]TimelineRow, n)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := range rows {
		rows[i] = TimelineRow{
			At:       base.Add(-time.Duration(i) * time.Minute),
			Actor:    "webhook",
			Action:   "task.updated",
			Entity:   "service_order",
			EntityID: fmt.Sprintf("so-%d", i),
		}
	}
	return rows
}

func TestTimelinePagingDetectsNextPage(t *testing.T) {
	repo := &memTimeline{rows: timelineRows(25)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 20})
	require.NoError(t, err)
	require.Len(t, result.Rows, 20)
	require.True(t, result.Paging.HasNext)
	require.Equal(t, 2, result.Paging.NextPage)
	require.Zero(t, result.Paging.PrevPage)
	require.Equal(t, 21, repo.lastLimit)

	result, err = svc.Timeline(context.Background(), TimelineFilters{Page: 2, PageSize: 20})
	require.NoError(t, err)
	require.Len(t, result.Rows, 5)
	require.False(t, result.Paging.HasNext)
	require.Equal(t, 1, result.Paging.PrevPage)
	require.Equal(t, 20, repo.lastOffset)
}

func TestTimelineClampsPageSize(t *testing.T) {
	repo := &memTimeline{rows: timelineRows(60)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	require.Len(t, result.Rows, 50)
	require.Equal(t, 50, result.Paging.PageSize)
}
