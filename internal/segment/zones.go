package segment

import "strings"

// zoneNames maps raw zone path tokens to display names.
var zoneNames = map[string]string{
	"f1_coast":    "Rust Coast",
	"f1_gorge":    "Briar Gorge",
	"f1_quarry":   "Sunken Quarry",
	"f2_dunes":    "Sunburnt Dunes",
	"f2_ruins":    "Halved Ruins",
	"f2_caldera":  "Ashen Caldera",
	"f3_basin":    "The Basin",
	"f3_depths":   "Sodden Depths",
	"f3_spire":    "Broken Spire",
	"m_crucible":  "Crucible Grounds",
	"m_reliquary": "Reliquary Vault",
}

// sharedSuffixes disambiguates path tokens shared by several regions.
// Key is the token; inner key is levelID mod 100.
var sharedSuffixes = map[string]map[int64]string{
	"f3_basin": {
		4: "Eastern Basin",
		5: "Western Basin",
	},
	"f1_coast": {
		11: "Rust Coast",
		12: "Forsaken Shore",
	},
}

// hubKeywords mark non-gameplay areas: towns, hideouts, social spaces,
// login/character-select. Value timers are considered paused there.
var hubKeywords = []string{"town", "hideout", "login", "social", "camp"}

// IsHub reports whether a zone path token denotes a hub area.
func IsHub(path string) bool {
	if strings.HasPrefix(path, "hub_") {
		return true
	}
	for _, kw := range hubKeywords {
		if strings.Contains(path, kw) {
			return true
		}
	}
	return false
}

// ResolveZoneName picks the display name for a zone. When the token is
// shared by multiple regions and a level id is known, the id's numeric
// suffix selects the region; otherwise the raw-token lookup is used,
// accepting the ambiguity. Unknown tokens fall back to the token itself.
func ResolveZoneName(path string, levelID int64) string {
	if suffixes, shared := sharedSuffixes[path]; shared && levelID > 0 {
		if name, ok := suffixes[levelID%100]; ok {
			return name
		}
	}
	if name, ok := zoneNames[path]; ok {
		return name
	}
	return path
}
