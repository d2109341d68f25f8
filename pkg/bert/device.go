package bert

import (
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
)

// DeviceKind names a compute backend for the forward pass.
type DeviceKind string

const (
	// DeviceCPU runs every matrix product on the calling goroutine.
	DeviceCPU DeviceKind = "cpu"
	// DeviceMulticore splits matrix products by output row across worker goroutines.
	DeviceMulticore DeviceKind = "multicore"
	// DeviceAuto picks multicore when more than one CPU is usable, else cpu.
	DeviceAuto DeviceKind = "auto"
)

// Device is the compute target selected once at startup.
type Device struct {
	Kind    DeviceKind
	Workers int
}

// SelectDevice resolves a preference ("auto", "cpu", "multicore") to a concrete device.
func SelectDevice(preference string) (Device, error) {
	procs := runtime.GOMAXPROCS(0)
	switch DeviceKind(strings.ToLower(strings.TrimSpace(preference))) {
	case "", DeviceAuto:
		if procs > 1 {
			return Device{Kind: DeviceMulticore, Workers: procs}, nil
		}
		return Device{Kind: DeviceCPU, Workers: 1}, nil
	case DeviceCPU:
		return Device{Kind: DeviceCPU, Workers: 1}, nil
	case DeviceMulticore:
		return Device{Kind: DeviceMulticore, Workers: procs}, nil
	default:
		return Device{}, fmt.Errorf("unknown device %q", preference)
	}
}

func (d Device) String() string {
	if d.Kind == DeviceMulticore {
		return fmt.Sprintf("%s(%d)", d.Kind, d.Workers)
	}
	return string(d.Kind)
}

// parallelRows calls fn over [0, rows) in contiguous chunks, one chunk per worker.
func (d Device) parallelRows(rows int, fn func(start, end int)) {
	workers := d.Workers
	if d.Kind != DeviceMulticore || workers <= 1 || rows < 2 {
		fn(0, rows)
		return
	}
	if workers > rows {
		workers = rows
	}
	chunk := (rows + workers - 1) / workers
	var g errgroup.Group
	for start := 0; start < rows; start += chunk {
		start, end := start, min(start+chunk, rows)
		g.Go(func() error {
			fn(start, end)
			return nil
		})
	}
	_ = g.Wait()
}
