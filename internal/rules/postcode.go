package rules

import "strings"

var deStateCodes = map[string]string{
	"Baden-Württemberg":      "DE-BW",
	"Bayern":                 "DE-BY",
	"Berlin":                 "DE-BE",
	"Brandenburg":            "DE-BB",
	"Bremen":                 "DE-HB",
	"Hamburg":                "DE-HH",
	"Hessen":                 "DE-HE",
	"Mecklenburg-Vorpommern": "DE-MV",
	"Niedersachsen":          "DE-NI",
	"Nordrhein-Westfalen":    "DE-NW",
	"Rheinland-Pfalz":        "DE-RP",
	"Saarland":               "DE-SL",
	"Sachsen":                "DE-SN",
	"Sachsen-Anhalt":         "DE-ST",
	"Schleswig-Holstein":     "DE-SH",
	"Thüringen":              "DE-TH",
}

type postcodeRange struct {
	start, end int
	state      string
}

// Source: https://cebus.net/de/plz-bundesland.htm
var dePostcodeRanges = []postcodeRange{
	{1001, 1936, "Sachsen"},
	{1941, 1998, "Brandenburg"},
	{2601, 2999, "Sachsen"},
	{3001, 3253, "Brandenburg"},
	{4001, 4579, "Sachsen"},
	{4581, 4639, "Thüringen"},
	{4641, 4889, "Sachsen"},
	{4891, 4938, "Brandenburg"},
	{6001, 6548, "Sachsen-Anhalt"},
	{6551, 6578, "Thüringen"},
	{6601, 6928, "Sachsen-Anhalt"},
	{7301, 7919, "Thüringen"},
	{7919, 7919, "Sachsen"},
	{7919, 7919, "Thüringen"},
	{7919, 7919, "Sachsen"},
	{7920, 7950, "Thüringen"},
	{7951, 7951, "Sachsen"},
	{7952, 7952, "Thüringen"},
	{7952, 7952, "Sachsen"},
	{7953, 7980, "Thüringen"},
	{7982, 7982, "Sachsen"},
	{7985, 7985, "Thüringen"},
	{7985, 7985, "Sachsen"},
	{7985, 7989, "Thüringen"},
	{8001, 9669, "Sachsen"},
	{10001, 14330, "Berlin"},
	{14401, 14715, "Brandenburg"},
	{14715, 14715, "Sachsen-Anhalt"},
	{14723, 16949, "Brandenburg"},
	{17001, 17256, "Mecklenburg-Vorpommern"},
	{17258, 17258, "Brandenburg"},
	{17258, 17259, "Mecklenburg-Vorpommern"},
	{17261, 17291, "Brandenburg"},
	{17301, 17309, "Mecklenburg-Vorpommern"},
	{17309, 17309, "Brandenburg"},
	{17309, 17321, "Mecklenburg-Vorpommern"},
	{17321, 17321, "Brandenburg"},
	{17321, 17322, "Mecklenburg-Vorpommern"},
	{17326, 17326, "Brandenburg"},
	{17328, 17331, "Mecklenburg-Vorpommern"},
	{17335, 17335, "Brandenburg"},
	{17335, 17335, "Mecklenburg-Vorpommern"},
	{17337, 17337, "Brandenburg"},
	{17337, 19260, "Mecklenburg-Vorpommern"},
	{19271, 19273, "Niedersachsen"},
	{19273, 19273, "Mecklenburg-Vorpommern"},
	{19273, 19306, "Mecklenburg-Vorpommern"},
	{19307, 19357, "Brandenburg"},
	{19357, 19417, "Mecklenburg-Vorpommern"},
	{20001, 21037, "Hamburg"},
	{21039, 21039, "Schleswig-Holstein"},
	{21039, 21170, "Hamburg"},
	{21202, 21449, "Niedersachsen"},
	{21451, 21521, "Schleswig-Holstein"},
	{21522, 21522, "Niedersachsen"},
	{21524, 21529, "Schleswig-Holstein"},
	{21601, 21789, "Niedersachsen"},
	{22001, 22113, "Hamburg"},
	{22113, 22113, "Schleswig-Holstein"},
	{22115, 22143, "Hamburg"},
	{22145, 22145, "Schleswig-Holstein"},
	{22145, 22145, "Hamburg"},
	{22145, 22145, "Schleswig-Holstein"},
	{22147, 22786, "Hamburg"},
	{22801, 23919, "Schleswig-Holstein"},
	{23921, 23999, "Mecklenburg-Vorpommern"},
	{24001, 25999, "Schleswig-Holstein"},
	{26001, 27478, "Niedersachsen"},
	{27483, 27498, "Schleswig-Holstein"},
	{27499, 27499, "Hamburg"},
	{27501, 27580, "Bremen"},
	{27607, 27809, "Niedersachsen"},
	{28001, 28779, "Bremen"},
	{28784, 29399, "Niedersachsen"},
	{29401, 29416, "Sachsen-Anhalt"},
	{29431, 31868, "Niedersachsen"},
	{32001, 33829, "Nordrhein-Westfalen"},
	{34001, 34329, "Hessen"},
	{34331, 34353, "Niedersachsen"},
	{34355, 34355, "Hessen"},
	{34355, 34355, "Niedersachsen"},
	{34356, 34399, "Hessen"},
	{34401, 34439, "Nordrhein-Westfalen"},
	{34441, 36399, "Hessen"},
	{36401, 36469, "Thüringen"},
	{37001, 37194, "Niedersachsen"},
	{37194, 37195, "Hessen"},
	{37197, 37199, "Niedersachsen"},
	{37201, 37299, "Hessen"},
	{37301, 37359, "Thüringen"},
	{37401, 37649, "Niedersachsen"},
	{37651, 37688, "Nordrhein-Westfalen"},
	{37689, 37691, "Niedersachsen"},
	{37692, 37696, "Nordrhein-Westfalen"},
	{37697, 38479, "Niedersachsen"},
	{38481, 38489, "Sachsen-Anhalt"},
	{38501, 38729, "Niedersachsen"},
	{38801, 39649, "Sachsen-Anhalt"},
	{40001, 48432, "Nordrhein-Westfalen"},
	{48442, 48465, "Niedersachsen"},
	{48466, 48477, "Nordrhein-Westfalen"},
	{48478, 48480, "Niedersachsen"},
	{48481, 48485, "Nordrhein-Westfalen"},
	{48486, 48488, "Niedersachsen"},
	{48489, 48496, "Nordrhein-Westfalen"},
	{48497, 48531, "Niedersachsen"},
	{48541, 48739, "Nordrhein-Westfalen"},
	{49001, 49459, "Niedersachsen"},
	{49461, 49549, "Nordrhein-Westfalen"},
	{49551, 49849, "Niedersachsen"},
	{50101, 51597, "Nordrhein-Westfalen"},
	{51598, 51598, "Rheinland-Pfalz"},
	{51601, 53359, "Nordrhein-Westfalen"},
	{53401, 53579, "Rheinland-Pfalz"},
	{53581, 53604, "Nordrhein-Westfalen"},
	{53614, 53619, "Rheinland-Pfalz"},
	{53621, 53949, "Nordrhein-Westfalen"},
	{54181, 55239, "Rheinland-Pfalz"},
	{55240, 55252, "Hessen"},
	{55253, 56869, "Rheinland-Pfalz"},
	{57001, 57489, "Nordrhein-Westfalen"},
	{57501, 57648, "Rheinland-Pfalz"},
	{58001, 59966, "Nordrhein-Westfalen"},
	{59969, 59969, "Hessen"},
	{59969, 59969, "Nordrhein-Westfalen"},
	{60001, 63699, "Hessen"},
	{63701, 63774, "Bayern"},
	{63776, 63776, "Hessen"},
	{63776, 63928, "Bayern"},
	{63928, 63928, "Baden-Württemberg"},
	{63930, 63939, "Bayern"},
	{64201, 64753, "Hessen"},
	{64754, 64754, "Baden-Württemberg"},
	{64754, 65326, "Hessen"},
	{65326, 65326, "Rheinland-Pfalz"},
	{65327, 65391, "Hessen"},
	{65391, 65391, "Rheinland-Pfalz"},
	{65392, 65556, "Hessen"},
	{65558, 65582, "Rheinland-Pfalz"},
	{65583, 65620, "Hessen"},
	{65621, 65626, "Rheinland-Pfalz"},
	{65627, 65627, "Hessen"},
	{65629, 65629, "Rheinland-Pfalz"},
	{65701, 65936, "Hessen"},
	{66001, 66459, "Saarland"},
	{66461, 66509, "Rheinland-Pfalz"},
	{66511, 66839, "Saarland"},
	{66841, 67829, "Rheinland-Pfalz"},
	{68001, 68312, "Baden-Württemberg"},
	{68501, 68519, "Hessen"},
	{68520, 68549, "Baden-Württemberg"},
	{68601, 68649, "Hessen"},
	{68701, 69234, "Baden-Württemberg"},
	{69235, 69239, "Hessen"},
	{69240, 69429, "Baden-Württemberg"},
	{69430, 69431, "Hessen"},
	{69434, 69434, "Baden-Württemberg"},
	{69434, 69434, "Hessen"},
	{69435, 69469, "Baden-Württemberg"},
	{69479, 69488, "Hessen"},
	{69489, 69502, "Baden-Württemberg"},
	{69503, 69509, "Hessen"},
	{69510, 69514, "Baden-Württemberg"},
	{69515, 69518, "Hessen"},
	{70001, 74592, "Baden-Württemberg"},
	{74594, 74594, "Bayern"},
	{74594, 76709, "Baden-Württemberg"},
	{76711, 76891, "Rheinland-Pfalz"},
	{77601, 79879, "Baden-Württemberg"},
	{80001, 87490, "Bayern"},
	{87491, 87491, "Außerhalb der BRD"},
	{87493, 87561, "Bayern"},
	{87567, 87569, "Außerhalb der BRD"},
	{87571, 87789, "Bayern"},
	{88001, 88099, "Baden-Württemberg"},
	{88101, 88146, "Bayern"},
	{88147, 88147, "Baden-Württemberg"},
	{88147, 88179, "Bayern"},
	{88181, 89079, "Baden-Württemberg"},
	{89081, 89081, "Bayern"},
	{89081, 89085, "Baden-Württemberg"},
	{89087, 89087, "Bayern"},
	{89090, 89198, "Baden-Württemberg"},
	{89201, 89449, "Bayern"},
	{89501, 89619, "Baden-Württemberg"},
	{90001, 96489, "Bayern"},
	{96501, 96529, "Thüringen"},
	{97001, 97859, "Bayern"},
	{97861, 97877, "Baden-Württemberg"},
	{97888, 97892, "Bayern"},
	{97893, 97896, "Baden-Württemberg"},
	{97896, 97896, "Bayern"},
	{97897, 97900, "Baden-Württemberg"},
	{97901, 97909, "Bayern"},
	{97911, 97999, "Baden-Württemberg"},
	{98501, 99998, "Thüringen"},
}

// NormalizeDEPostcode reduces free-form postcode text to its five-digit form.
// A "D-" prefix is stripped and non-digits are discarded.
func NormalizeDEPostcode(text string) (int, bool) {
	s := strings.ToUpper(strings.TrimSpace(text))
	s = strings.TrimPrefix(s, "D-")
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() < 5 {
		return 0, false
	}
	n := 0
	for _, r := range digits.String()[:5] {
		n = n*10 + int(r-'0')
	}
	return n, true
}

// SubdivisionFromPostcode maps a German postcode to its ISO-3166-2 state
// code. The range table deliberately overlaps at state borders; a postcode
// matching more than one state yields no result rather than a guess.
func SubdivisionFromPostcode(text string) (string, bool) {
	code, ok := NormalizeDEPostcode(text)
	if !ok {
		return "", false
	}
	states := make(map[string]struct{})
	for _, r := range dePostcodeRanges {
		if code >= r.start && code <= r.end && r.state != "Außerhalb der BRD" {
			states[r.state] = struct{}{}
		}
	}
	if len(states) != 1 {
		return "", false
	}
	for state := range states {
		return deStateCodes[state], true
	}
	return "", false
}

// LooksLikeDEPostcode reports whether the value is plausibly a German
// postcode: a "D-" prefix or exactly five digits.
func LooksLikeDEPostcode(text string) bool {
	s := strings.ToUpper(strings.TrimSpace(text))
	if strings.HasPrefix(s, "D-") {
		return true
	}
	if len(s) != 5 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
