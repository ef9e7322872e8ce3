package groups

import (
	"context"
	"time"

	"github.com/radiorevive/console/internal/fleet"
	"github.com/radiorevive/console/pkg/models"
	"github.com/radiorevive/console/pkg/patch"
	"go.uber.org/zap"
)

// DeviceStore is the slice of the fleet store that bulk assignment
// needs. Satisfied by *fleet.Store.
type DeviceStore interface {
	Get(ctx context.Context, id string) (*fleet.DeviceRow, error)
	Update(ctx context.Context, id string, p fleet.UpdateParams) error
}

// PlaybackDispatcher queues playback commands for device agents.
// Satisfied by the commands dispatcher.
type PlaybackDispatcher interface {
	SendStop(ctx context.Context, deviceID string) (*models.Command, error)
	SendPlay(ctx context.Context, deviceID, streamURL string) (*models.Command, error)
}

// AssignReport describes one bulk assignment.
type AssignReport struct {
	Assigned  int      `json:"assigned"`
	Restarted int      `json:"restarted"`
	Missing   []string `json:"missing,omitempty"`
}

// assigner moves devices into a group and restarts playback on the
// members that were playing. The sleep hook exists so tests do not wait
// out the settle delay.
type assigner struct {
	devices     DeviceStore
	dispatcher  PlaybackDispatcher
	settleDelay time.Duration
	sleep       func(time.Duration)
	logger      *zap.Logger
}

// Assign points each device at the group and at the group's stream URL.
// Devices that were playing are stopped first, then restarted on the new
// URL after a settle delay so the agent has flushed its old stream. The
// delay is paid once per call, not per device. Unknown device IDs are
// reported, not fatal.
func (a *assigner) Assign(ctx context.Context, group *models.Group, deviceIDs []string) (AssignReport, error) {
	var report AssignReport

	// Hardware IDs of members that need a restart. Commands address
	// devices by hardware identity, not by row ID.
	var restart []string

	for _, id := range deviceIDs {
		row, err := a.devices.Get(ctx, id)
		if err != nil {
			report.Missing = append(report.Missing, id)
			continue
		}

		wasPlaying := row.Status == string(models.DeviceStatusPlaying)
		if wasPlaying && row.DeviceID != "" {
			if _, err := a.dispatcher.SendStop(ctx, row.DeviceID); err != nil {
				a.logger.Error("failed to queue stop before reassignment",
					zap.String("device_id", row.DeviceID),
					zap.Error(err),
				)
			} else {
				restart = append(restart, row.DeviceID)
			}
		}

		err = a.devices.Update(ctx, id, fleet.UpdateParams{
			GroupID:   patch.Set(group.ID),
			StreamURL: patch.Set(group.StreamURL),
		})
		if err != nil {
			a.logger.Error("failed to assign device to group",
				zap.String("id", id),
				zap.String("group_id", group.ID),
				zap.Error(err),
			)
			continue
		}
		report.Assigned++
	}

	if len(restart) > 0 {
		a.sleep(a.settleDelay)
		for _, deviceID := range restart {
			if _, err := a.dispatcher.SendPlay(ctx, deviceID, group.StreamURL); err != nil {
				a.logger.Error("failed to queue play after reassignment",
					zap.String("device_id", deviceID),
					zap.Error(err),
				)
				continue
			}
			report.Restarted++
		}
	}

	a.logger.Info("bulk group assignment finished",
		zap.String("group_id", group.ID),
		zap.Int("assigned", report.Assigned),
		zap.Int("restarted", report.Restarted),
		zap.Int("missing", len(report.Missing)),
	)
	return report, nil
}
