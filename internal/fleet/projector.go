package fleet

import (
	"time"

	"github.com/radiorevive/console/pkg/models"
)

// Project normalizes a raw stored row into the view every console page
// consumes. Defaults applied here exist only in the projection; the stored
// row is never rewritten by a read.
func Project(r *DeviceRow) models.Device {
	d := models.Device{
		ID:                r.ID,
		DeviceID:          r.DeviceID,
		Name:              r.Name,
		Status:            models.DeviceStatus(r.Status),
		IPAddress:         r.IPAddress,
		WifiConnected:     r.WifiConnected,
		EthernetConnected: r.EthernetConnected,
		GroupID:           r.EffectiveGroup(),
		StreamURL:         r.StreamURL,
		Volume:            r.Volume,
		CPUUsage:          r.CPUUsage,
		MemoryUsage:       r.MemoryUsage,
		DiskUsage:         r.DiskUsage,
		UptimeSec:         r.UptimeSec,
		FirmwareVersion:   r.FirmwareVersion,
	}

	if !models.KnownDeviceStatus(d.Status) {
		d.Status = models.DeviceStatusOffline
	}
	if d.Name == "" {
		d.Name = models.DefaultDeviceName
	}
	if d.StreamURL == "" {
		d.StreamURL = r.CurrentURL
	}

	if r.LastSeen.Valid {
		d.LastSeen = r.LastSeen.Time
	} else {
		// Display fallback only. The flag keeps freshness logic honest.
		d.LastSeen = time.Now().UTC()
		d.LastSeenEstimated = true
	}

	return d
}
