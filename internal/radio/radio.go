// Package radio reports the signal strength of the wireless link to the operator.
package radio

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/procfs"
)

const (
	// DefaultProcPath is where procfs is mounted
	DefaultProcPath = procfs.DefaultMountPoint

	// DefaultInterface is the wireless interface serving the operator
	DefaultInterface = "wlan0"
)

// ErrInterfaceNotFound is returned when the wireless interface is not listed by the kernel
var ErrInterfaceNotFound = errors.New("wireless interface not found")

// Radio reports the current signal strength in dBm.
type Radio interface {
	SignalStrength(ctx context.Context) (int, error)
}

// Wireless reads the signal level of a wireless interface from /proc/net/wireless.
// Readings are taken on demand and never cached.
type Wireless struct {
	fs       procfs.FS
	iface    string
	procPath string
}

// NewWireless creates a reader for iface using procfs mounted at procPath.
func NewWireless(procPath, iface string) (*Wireless, error) {
	fs, err := procfs.NewFS(procPath)
	if err != nil {
		return nil, fmt.Errorf("opening procfs at '%s': %w", procPath, err)
	}

	return &Wireless{fs: fs, iface: iface, procPath: procPath}, nil
}

// SignalStrength returns the signal level of the interface in dBm.
func (w *Wireless) SignalStrength(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	ifaces, err := w.fs.Wireless()
	if err != nil {
		return 0, fmt.Errorf("reading wireless statistics: %w", err)
	}

	for _, iface := range ifaces {
		if iface.Name == w.iface {
			return iface.QualityLevel, nil
		}
	}

	return 0, fmt.Errorf("%w: %s", ErrInterfaceNotFound, w.iface)
}

// Interface returns the name of the monitored interface.
func (w *Wireless) Interface() string {
	return w.iface
}
