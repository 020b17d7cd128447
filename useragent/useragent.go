// Package useragent extracts a coarse operating system and browser label from
// User-Agent headers for display in session lists.
package useragent

import "strings"

// Unknown is reported when no pattern matches.
const Unknown = "Unknown"

// Info is the parsed form of a User-Agent header.
type Info struct {
	OS      string
	Browser string
	Mobile  bool
}

type pattern struct {
	needle string
	label  string
}

// Ordered: the first match wins, so more specific tokens come first.
var osPatterns = []pattern{
	{"Windows Phone", "Windows Phone"},
	{"Windows", "Windows"},
	{"iPhone", "iOS"},
	{"Mac OS", "MacOS"},
	{"Android", "Android"},
	{"Linux", "Linux"},
	{"CrOS", "Chrome OS"},
	{"Ubuntu", "Linux"},
	{"Fedora", "Linux"},
	{"CentOS", "Linux"},
	{"OpenBSD", "OpenBSD"},
	{"FreeBSD", "FreeBSD"},
	{"BlackBerry", "BlackBerry"},
	{"BB10", "BlackBerry"},
	{"bot", "Bot"},
}

var browserPatterns = []pattern{
	{"Edg", "Edge"},
	{"OPR", "Opera"},
	{"Opera", "Opera"},
	{"Vivaldi", "Vivaldi"},
	{"Chromium", "Chrome"},
	{"Chrome", "Chrome"},
	{"FxiOS", "Firefox"},
	{"Firefox", "Firefox"},
	{"Safari", "Safari"},
	{"MSIE", "Internet Explorer"},
	{"Android WebView", "WebView"},
	{"Facebook", "AppView"},
	{"Instagram", "AppView"},
	{"Twitter", "AppView"},
	{"QQBrowser", "QQ"},
	{"UC", "UC"},
	{"Puffin", "Puffin"},
}

var mobileOS = map[string]bool{
	"Android":       true,
	"iOS":           true,
	"Windows Phone": true,
	"BlackBerry":    true,
}

// Parse labels ua. Missing or unrecognised parts are Unknown.
func Parse(ua string) Info {
	info := Info{
		OS:      match(osPatterns, ua),
		Browser: match(browserPatterns, ua),
	}
	info.Mobile = IsMobile(info.OS)
	return info
}

// IsMobile reports whether os is a phone operating system label.
func IsMobile(os string) bool {
	return mobileOS[os]
}

func match(table []pattern, ua string) string {
	for _, p := range table {
		if strings.Contains(ua, p.needle) {
			return p.label
		}
	}
	return Unknown
}
