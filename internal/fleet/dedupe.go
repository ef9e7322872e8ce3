package fleet

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// CleanupReport summarizes one duplicate-removal pass.
type CleanupReport struct {
	Before      int `json:"before"`
	After       int `json:"after"`
	Removed     int `json:"removed"`
	ByDeviceID  int `json:"by_device_id"`
	ByIPAddress int `json:"by_ip_address"`
	AlreadyGone int `json:"already_gone"`
}

// placeholderIP reports IP values that must never be used to group rows.
// Agents that cannot determine their address report these literals.
func placeholderIP(ip string) bool {
	return ip == "" || ip == "N/A" || ip == "unknown"
}

// Cleanup removes duplicate device rows. Rows are partitioned twice, once
// by hardware identity and once by IP address; within each partition the
// row with the newest last_seen survives. The two loser sets are unioned
// before deletion so a row is deleted at most once, and a delete that
// finds the row already gone is not an error.
func (s *Store) Cleanup(ctx context.Context, logger *zap.Logger) (CleanupReport, error) {
	rows, err := s.List(ctx)
	if err != nil {
		return CleanupReport{}, err
	}

	report := CleanupReport{Before: len(rows)}

	byDevice := make(map[string][]*DeviceRow)
	byIP := make(map[string][]*DeviceRow)
	for i := range rows {
		r := &rows[i]
		if r.DeviceID != "" {
			byDevice[r.DeviceID] = append(byDevice[r.DeviceID], r)
		}
		if !placeholderIP(r.IPAddress) {
			byIP[r.IPAddress] = append(byIP[r.IPAddress], r)
		}
	}

	doomed := make(map[string]bool)

	for _, group := range byDevice {
		for _, loser := range losers(group) {
			if !doomed[loser.ID] {
				doomed[loser.ID] = true
				report.ByDeviceID++
			}
		}
	}
	for _, group := range byIP {
		for _, loser := range losers(group) {
			if !doomed[loser.ID] {
				doomed[loser.ID] = true
				report.ByIPAddress++
			}
		}
	}

	for id := range doomed {
		removed, err := s.Delete(ctx, id)
		if err != nil {
			return report, err
		}
		if removed {
			report.Removed++
		} else {
			report.AlreadyGone++
		}
	}

	report.After = report.Before - report.Removed

	logger.Info("duplicate cleanup complete",
		zap.Int("before", report.Before),
		zap.Int("after", report.After),
		zap.Int("removed", report.Removed),
		zap.Int("by_device_id", report.ByDeviceID),
		zap.Int("by_ip_address", report.ByIPAddress),
	)

	return report, nil
}

// losers returns every row in the partition except the one with the newest
// last_seen. Rows without a last_seen sort oldest. Ties break toward the
// earlier row in list order so the outcome is deterministic.
func losers(group []*DeviceRow) []*DeviceRow {
	if len(group) < 2 {
		return nil
	}

	keeper := group[0]
	for _, r := range group[1:] {
		if lastSeenOf(r).After(lastSeenOf(keeper)) {
			keeper = r
		}
	}

	out := make([]*DeviceRow, 0, len(group)-1)
	for _, r := range group {
		if r != keeper {
			out = append(out, r)
		}
	}
	return out
}

func lastSeenOf(r *DeviceRow) time.Time {
	if r.LastSeen.Valid {
		return r.LastSeen.Time
	}
	return time.Time{}
}
