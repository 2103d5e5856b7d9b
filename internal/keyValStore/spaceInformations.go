package keyValStore

import (
	"fmt"

	"github.com/shirou/gopsutil/disk"
	"github.com/sirupsen/logrus"
)

// checkFreeSpace logs the disk usage of the store path and fails when less
// than minimumGB gigabytes remain free.
func checkFreeSpace(log *logrus.Logger, path string, minimumGB int) error {
	usage, err := disk.Usage(path)
	if err != nil {
		log.WithFields(logrus.Fields{
			"path": path,
		}).Errorf("Error retrieving disk usage stats: %v", err)
		return fmt.Errorf("error retrieving disk usage for %s: %w", path, err)
	}

	totalGB := float64(usage.Total) / 1e9
	freeGB := float64(usage.Free) / 1e9
	usedGB := float64(usage.Used) / 1e9

	log.WithFields(logrus.Fields{
		"Path":       path,
		"Total (GB)": fmt.Sprintf("%.2f", totalGB),
		"Used (GB)":  fmt.Sprintf("%.2f", usedGB),
		"Free (GB)":  fmt.Sprintf("%.2f", freeGB),
	}).Info("Disk Usage")

	if minimumGB > 0 && freeGB < float64(minimumGB) {
		return fmt.Errorf("not enough free space at %s: %.2f GB free, %d GB required", path, freeGB, minimumGB)
	}
	return nil
}
