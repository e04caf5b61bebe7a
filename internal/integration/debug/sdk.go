package debug

import (
	"strconv"
	"strings"

	"github.com/dshills/fdbridge/internal/integration/debug/value"
)

// airSDKPrefix starts the version string of AIR SDKs, whose fdb never
// escapes every string.
const airSDKPrefix = "AIR SDK"

// ValueSettings derives the value decoding settings for an SDK version
// such as "4.14.1". SDK 3 lacks toXMLString support; fdb from SDK 4.12 on
// built for IDE use escapes every string.
func ValueSettings(sdkVersion string, ideMode bool, base value.Settings) value.Settings {
	v := strings.TrimSpace(sdkVersion)
	base.LegacyXML = strings.HasPrefix(v, "3.")
	base.EscapeAll = ideMode && !strings.HasPrefix(v, airSDKPrefix) && compareVersions(v, "4.12") >= 0
	return base
}

// compareVersions compares dotted numeric versions. Missing or non-numeric
// parts count as 0.
func compareVersions(a, b string) int {
	pa, pb := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(pa) || i < len(pb); i++ {
		x, y := versionPart(pa, i), versionPart(pb, i)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return 0
}

func versionPart(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	s := parts[i]
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, _ := strconv.Atoi(s[:end])
	return n
}
