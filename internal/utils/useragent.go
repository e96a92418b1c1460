package utils

import (
	"strings"

	ua "github.com/mssola/user_agent"
)

// Booking channels recorded on every booking row
const (
	ChannelMobileApp = "mobile_app"
	ChannelMobileWeb = "mobile_web"
	ChannelWeb       = "web"
	ChannelUnknown   = "unknown"
)

// appMarkers identify our own mobile clients, which send okhttp/CFNetwork/Dart agents
var appMarkers = []string{
	"okhttp",
	"cfnetwork",
	"dart/",
	"kjkhandala",
}

// ClientInfo holds parsed information from a User-Agent string
type ClientInfo struct {
	Channel  string `json:"channel"`
	OS       string `json:"os"`
	Browser  string `json:"browser"`
	IsBot    bool   `json:"is_bot"`
	Platform string `json:"platform"` // android, ios, windows, mac, linux
}

// DetectClient parses a User-Agent string into the booking channel and device details
func DetectClient(userAgent string) ClientInfo {
	if strings.TrimSpace(userAgent) == "" {
		return ClientInfo{
			Channel:  ChannelUnknown,
			OS:       "Unknown",
			Browser:  "Unknown",
			Platform: "unknown",
		}
	}

	parser := ua.New(userAgent)

	info := ClientInfo{
		IsBot:    parser.Bot(),
		OS:       getOS(parser),
		Browser:  getBrowser(parser),
		Platform: getPlatform(parser),
	}

	lower := strings.ToLower(userAgent)
	for _, marker := range appMarkers {
		if strings.Contains(lower, marker) {
			info.Channel = ChannelMobileApp
			return info
		}
	}

	switch {
	case info.IsBot:
		info.Channel = ChannelUnknown
	case parser.Mobile():
		info.Channel = ChannelMobileWeb
	default:
		info.Channel = ChannelWeb
	}

	return info
}

// getOS extracts operating system name and version
func getOS(parser *ua.UserAgent) string {
	osInfo := parser.OSInfo()
	if osInfo.Name == "" {
		return "Unknown"
	}
	if osInfo.Version != "" {
		return osInfo.Name + " " + osInfo.Version
	}
	return osInfo.Name
}

// getBrowser extracts browser name
func getBrowser(parser *ua.UserAgent) string {
	name, _ := parser.Browser()
	if name == "" {
		return "Unknown"
	}
	return name
}

// getPlatform determines the platform (android, ios, windows, etc.)
func getPlatform(parser *ua.UserAgent) string {
	osName := strings.ToLower(parser.OSInfo().Name)

	platforms := []struct{ key, platform string }{
		{"android", "android"},
		{"iphone os", "ios"},
		{"ios", "ios"},
		{"windows", "windows"},
		{"mac os x", "mac"},
		{"linux", "linux"},
	}
	for _, p := range platforms {
		if strings.Contains(osName, p.key) {
			return p.platform
		}
	}

	return "unknown"
}
