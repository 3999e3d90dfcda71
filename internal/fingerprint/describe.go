package fingerprint

import (
	"strings"

	"github.com/mssola/user_agent"
)

// Device holds human-readable labels for a user agent. They are descriptive
// only and never take part in identity decisions.
type Device struct {
	Name    string `json:"device_name"`
	Browser string `json:"browser_info"`
	OS      string `json:"os_info"`
}

const (
	unknownDevice  = "Unknown Device"
	unknownBrowser = "Unknown Browser"
	unknownOS      = "Unknown OS"
)

// Describe derives device, browser and OS labels from a user agent string.
func Describe(raw string) Device {
	if strings.TrimSpace(raw) == "" {
		return Device{Name: unknownDevice, Browser: unknownBrowser, OS: unknownOS}
	}
	ua := user_agent.New(raw)
	os := ua.OSInfo()
	return Device{
		Name:    deviceName(ua, os),
		Browser: browserLabel(ua),
		OS:      osLabel(ua, os),
	}
}

func deviceName(ua *user_agent.UserAgent, os user_agent.OSInfo) string {
	switch {
	case ua.Bot():
		return "Bot"
	case ua.Platform() == "iPhone":
		return "iPhone (iOS " + orUnknown(os.Version) + ")"
	case ua.Platform() == "iPad":
		return "iPad"
	case os.Name == "Android":
		return "Android Device (" + orUnknown(os.Version) + ")"
	case ua.Platform() == "Windows":
		return "Windows PC"
	case ua.Platform() == "Macintosh":
		return "Mac"
	case os.Name == "Linux":
		return "Linux PC"
	case ua.Mobile():
		return "Mobile Device"
	default:
		return unknownDevice
	}
}

func browserLabel(ua *user_agent.UserAgent) string {
	name, version := ua.Browser()
	switch {
	case name == "":
		return unknownBrowser
	case version == "":
		return name
	default:
		return name + " " + version
	}
}

func osLabel(ua *user_agent.UserAgent, os user_agent.OSInfo) string {
	switch {
	case os.Name == "Windows" && os.Version == "10":
		// Windows 11 still reports NT 10.0.
		return "Windows 10/11"
	case os.Name == "Windows":
		return strings.TrimSpace("Windows " + os.Version)
	case os.Name == "iPhone OS":
		return "iOS " + orUnknown(os.Version)
	case ua.Platform() == "iPad":
		return "iPadOS " + orUnknown(os.Version)
	case os.Name == "Mac OS X":
		return "macOS " + orUnknown(os.Version)
	case os.Name == "Android":
		return "Android " + orUnknown(os.Version)
	case os.Name == "Linux":
		return "Linux"
	case os.FullName != "":
		return os.FullName
	default:
		return unknownOS
	}
}

func orUnknown(v string) string {
	if v == "" {
		return "Unknown"
	}
	return v
}
