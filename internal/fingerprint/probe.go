package fingerprint

import (
	"context"
	"os"
	"runtime"
	"strings"
	"time"
)

// Probe reads one string-valued capability of the host.
type Probe interface {
	Probe(ctx context.Context) (string, error)
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context) (string, error)

// Probe implements Probe.
func (f ProbeFunc) Probe(ctx context.Context) (string, error) { return f(ctx) }

// Screen describes display geometry.
type Screen struct {
	Width      int
	Height     int
	ColorDepth int
	PixelDepth int
}

// ScreenProbe reads display geometry.
type ScreenProbe interface {
	Screen(ctx context.Context) (Screen, error)
}

// NumberProbe reads an optional numeric hardware hint.
type NumberProbe interface {
	Number(ctx context.Context) (float64, error)
}

// NumberFunc adapts a function to NumberProbe.
type NumberFunc func(ctx context.Context) (float64, error)

// Number implements NumberProbe.
func (f NumberFunc) Number(ctx context.Context) (float64, error) { return f(ctx) }

// Static is a probe with a fixed answer.
type Static string

// Probe implements Probe.
func (s Static) Probe(context.Context) (string, error) { return string(s), nil }

// Probes is the set of capabilities a Collector reads. Nil entries are
// replaced with sentinel implementations by NewCollector.
type Probes struct {
	Screen       ScreenProbe
	Timezone     Probe
	Language     Probe
	UserAgent    Probe
	Platform     Probe
	CPUCores     NumberProbe
	DeviceMemory NumberProbe
	Canvas       Probe
	WebGL        Probe
}

// HostProbes returns probes for a headless Go process. Display, canvas and
// WebGL capabilities do not exist and resolve to their sentinels.
func HostProbes(userAgent string) Probes {
	return Probes{
		Timezone:  ProbeFunc(hostTimezone),
		Language:  ProbeFunc(hostLanguage),
		UserAgent: Static(userAgent),
		Platform:  Static(runtime.GOOS + "/" + runtime.GOARCH),
		CPUCores: NumberFunc(func(context.Context) (float64, error) {
			return float64(runtime.NumCPU()), nil
		}),
	}
}

func hostTimezone(context.Context) (string, error) {
	if tz := os.Getenv("TZ"); tz != "" {
		return tz, nil
	}
	name := time.Now().Location().String()
	if name == "Local" {
		name, _ = time.Now().Zone()
	}
	return name, nil
}

func hostLanguage(context.Context) (string, error) {
	for _, key := range []string{"LC_ALL", "LANG"} {
		if v := os.Getenv(key); v != "" && v != "C" && v != "POSIX" {
			lang := strings.SplitN(v, ".", 2)[0]
			return strings.ReplaceAll(lang, "_", "-"), nil
		}
	}
	return "", nil
}
