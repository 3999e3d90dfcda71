package fingerprint

import (
	"context"
)

// sentinelProbe answers with a fixed sentinel and never fails.
type sentinelProbe string

func (s sentinelProbe) Probe(context.Context) (string, error) { return string(s), nil }

type zeroScreen struct{}

func (zeroScreen) Screen(context.Context) (Screen, error) { return Screen{}, nil }

// guarded answers with failed when the wrapped probe errors.
type guarded struct {
	probe  Probe
	failed string
}

func (g guarded) Probe(ctx context.Context) (string, error) {
	v, err := g.probe.Probe(ctx)
	if err != nil {
		return g.failed, nil
	}
	return v, nil
}

// Collector gathers a Signals bundle from a fixed set of probes.
type Collector struct {
	probes Probes
}

// NewCollector wires probes, filling unavailable capabilities with sentinel
// implementations once so Collect never has to branch on availability.
func NewCollector(p Probes) *Collector {
	p.Timezone = withFallback(p.Timezone, UnknownTimezone, UnknownTimezone)
	p.Language = withFallback(p.Language, UnknownLanguage, UnknownLanguage)
	p.UserAgent = withFallback(p.UserAgent, UnknownUA, UnknownUA)
	p.Platform = withFallback(p.Platform, UnknownPlatform, UnknownPlatform)
	p.Canvas = withFallback(p.Canvas, NoCanvas, CanvasError)
	p.WebGL = withFallback(p.WebGL, NoWebGL, WebGLError)
	if p.Screen == nil {
		p.Screen = zeroScreen{}
	}
	return &Collector{probes: p}
}

func withFallback(p Probe, missing, failed string) Probe {
	if p == nil {
		return sentinelProbe(missing)
	}
	return guarded{probe: p, failed: failed}
}

// Collect reads every probe. It never fails; unreadable capabilities become
// sentinels and unreadable optional hints are omitted.
func (c *Collector) Collect(ctx context.Context) Signals {
	screen, err := c.probes.Screen.Screen(ctx)
	if err != nil {
		screen = Screen{}
	}

	s := Signals{
		ScreenWidth:  screen.Width,
		ScreenHeight: screen.Height,
		ColorDepth:   screen.ColorDepth,
		PixelDepth:   screen.PixelDepth,
		Timezone:     read(ctx, c.probes.Timezone),
		Language:     read(ctx, c.probes.Language),
		UserAgent:    read(ctx, c.probes.UserAgent),
		Platform:     read(ctx, c.probes.Platform),
		Canvas:       read(ctx, c.probes.Canvas),
		WebGL:        read(ctx, c.probes.WebGL),
	}

	if v, ok := readNumber(ctx, c.probes.CPUCores); ok {
		cores := int(v)
		s.CPUCores = &cores
	}
	if v, ok := readNumber(ctx, c.probes.DeviceMemory); ok {
		s.DeviceMemory = &v
	}
	return s
}

func read(ctx context.Context, p Probe) string {
	v, _ := p.Probe(ctx)
	return v
}

func readNumber(ctx context.Context, p NumberProbe) (float64, bool) {
	if p == nil {
		return 0, false
	}
	v, err := p.Number(ctx)
	if err != nil {
		return 0, false
	}
	return v, true
}
