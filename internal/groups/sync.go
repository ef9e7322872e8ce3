package groups

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// DeviceCounter counts the devices assigned to a group, legacy
// assignments included. Satisfied by the fleet store.
type DeviceCounter interface {
	CountByGroup(ctx context.Context, groupID string) (int, error)
}

// SyncReport describes one reconciliation pass.
type SyncReport struct {
	Groups  int `json:"groups"`
	Updated int `json:"updated"`
}

// SyncCounts recomputes every group's device count from the fleet and
// writes only the counts that actually drifted. A second pass over an
// unchanged fleet therefore performs zero writes.
func (s *Store) SyncCounts(ctx context.Context, counter DeviceCounter, logger *zap.Logger) (SyncReport, error) {
	groups, err := s.List(ctx)
	if err != nil {
		return SyncReport{}, err
	}

	report := SyncReport{Groups: len(groups)}
	for _, g := range groups {
		actual, err := counter.CountByGroup(ctx, g.ID)
		if err != nil {
			return report, fmt.Errorf("count devices for group %s: %w", g.ID, err)
		}
		if actual == g.DeviceCount {
			continue
		}

		if err := s.SetDeviceCount(ctx, g.ID, actual); err != nil {
			return report, err
		}
		report.Updated++

		logger.Info("group device count corrected",
			zap.String("group_id", g.ID),
			zap.String("name", g.Name),
			zap.Int("stored", g.DeviceCount),
			zap.Int("actual", actual),
		)
	}
	return report, nil
}
