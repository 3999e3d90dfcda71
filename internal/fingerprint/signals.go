package fingerprint

import (
	"strconv"
)

// Sentinels substituted for signals a client could not observe.
const (
	UnknownTimezone = "unknown-timezone"
	UnknownLanguage = "unknown-lang"
	UnknownUA       = "unknown-ua"
	UnknownPlatform = "unknown-platform"
	NoCanvas        = "no-canvas"
	CanvasError     = "canvas-error"
	NoWebGL         = "no-webgl"
	WebGLError      = "webgl-error"
)

// Signals is the observable client state a fingerprint is derived from.
// Empty string fields are replaced by their sentinel during derivation.
type Signals struct {
	ScreenWidth  int      `json:"screen_width" validate:"gte=0"`
	ScreenHeight int      `json:"screen_height" validate:"gte=0"`
	ColorDepth   int      `json:"color_depth" validate:"gte=0"`
	PixelDepth   int      `json:"pixel_depth" validate:"gte=0"`
	Timezone     string   `json:"timezone"`
	Language     string   `json:"language"`
	UserAgent    string   `json:"user_agent"`
	Platform     string   `json:"platform"`
	CPUCores     *int     `json:"cpu_cores,omitempty" validate:"omitempty,gte=0"`
	DeviceMemory *float64 `json:"device_memory,omitempty" validate:"omitempty,gte=0"`
	Canvas       string   `json:"canvas"`
	WebGL        string   `json:"webgl"`
}

// Components returns the ordered, sentinel-filled values that feed the hash.
// Optional hardware hints are omitted entirely when absent.
func (s Signals) Components() []string {
	out := make([]string, 0, 11)
	out = append(out,
		strconv.Itoa(s.ScreenWidth)+"x"+strconv.Itoa(s.ScreenHeight),
		strconv.Itoa(s.ColorDepth),
		strconv.Itoa(s.PixelDepth),
		orSentinel(s.Timezone, UnknownTimezone),
		orSentinel(s.Language, UnknownLanguage),
		orSentinel(s.UserAgent, UnknownUA),
		orSentinel(s.Platform, UnknownPlatform),
	)
	if s.CPUCores != nil {
		out = append(out, strconv.Itoa(*s.CPUCores))
	}
	if s.DeviceMemory != nil {
		out = append(out, strconv.FormatFloat(*s.DeviceMemory, 'f', -1, 64))
	}
	out = append(out,
		orSentinel(s.Canvas, NoCanvas),
		orSentinel(s.WebGL, NoWebGL),
	)
	return out
}

// ScreenResolution renders the descriptive "WxH" label stored on devices.
func (s Signals) ScreenResolution() string {
	return strconv.Itoa(s.ScreenWidth) + "x" + strconv.Itoa(s.ScreenHeight)
}

func orSentinel(v, sentinel string) string {
	if v == "" {
		return sentinel
	}
	return v
}
