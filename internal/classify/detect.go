package classify

import (
	"regexp"
	"strconv"
	"strings"
)

// Family names a keyword family. Families that fired are reported as the
// classification's signals.
type Family string

const (
	FamilyULS             Family = "uls"
	FamilyMultiplex       Family = "multiplex"
	FamilyMultiFamily     Family = "multifamily"
	FamilyUnitCount       Family = "unit_count"
	FamilyTownhome        Family = "townhome"
	FamilyDADU            Family = "dadu"
	FamilyAADU            Family = "aadu"
	FamilyADU             Family = "adu"
	FamilyDetached        Family = "detached"
	FamilyNewConstruction Family = "new_construction"
	FamilyNewDwelling     Family = "new_dwelling"
	FamilyConstruct       Family = "construct"
	FamilySingleFamily    Family = "single_family"
	FamilyExclusion       Family = "exclusion"
	FamilyCommercial      Family = "commercial"
	FamilyLargeScale      Family = "large_scale"
)

// familyOrder fixes the order signals are reported in.
var familyOrder = []Family{
	FamilyULS,
	FamilyMultiplex,
	FamilyMultiFamily,
	FamilyUnitCount,
	FamilyTownhome,
	FamilyDADU,
	FamilyAADU,
	FamilyADU,
	FamilyDetached,
	FamilyNewConstruction,
	FamilyNewDwelling,
	FamilyConstruct,
	FamilySingleFamily,
	FamilyExclusion,
	FamilyCommercial,
	FamilyLargeScale,
}

// addressFamilies are the families also matched against the address field.
// Exclusion and commercial words are skipped there because street names
// ("Commercial St", "Deck Ave") would trip them.
var addressFamilies = map[Family]bool{
	FamilyULS: true,
}

// phraseSet is a compiled keyword family. Each phrase is normalized and
// matched on word boundaries with an optional plural suffix on its last word.
type phraseSet []string

// compilePhrases normalizes and deduplicates phrases, dropping empties.
func compilePhrases(words []string) phraseSet {
	seen := make(map[string]bool, len(words))
	out := make(phraseSet, 0, len(words))
	for _, w := range words {
		n := Normalize(w)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// match reports whether normalized text contains any phrase in the set.
func (p phraseSet) match(text string) bool {
	if text == "" {
		return false
	}
	padded := " " + text + " "
	for _, phrase := range p {
		if containsPhrase(padded, phrase) {
			return true
		}
	}
	return false
}

// containsPhrase checks a space-padded text for phrase as whole words,
// accepting "s" or "es" plurals.
func containsPhrase(padded, phrase string) bool {
	return strings.Contains(padded, " "+phrase+" ") ||
		strings.Contains(padded, " "+phrase+"s ") ||
		strings.Contains(padded, " "+phrase+"es ")
}

// unitCountPattern finds "4 unit", "three units", "6 plex", "12 dwelling
// units" and similar in normalized text.
var unitCountPattern = regexp.MustCompile(
	`\b(\d{1,4}|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve)` +
		`(?: (?:new|residential|attached|detached|townhouse|townhome|rowhouse|live work))?` +
		` (units?|plex(?:es)?|dus?|dwelling units?|apartments?)\b`)

var numberWords = map[string]int{
	"two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7,
	"eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
}

// UnitCount returns the largest dwelling-unit count stated in normalized
// text, or 0 when none is stated.
func UnitCount(text string) int {
	best := 0
	for _, m := range unitCountPattern.FindAllStringSubmatch(text, -1) {
		n, ok := numberWords[m[1]]
		if !ok {
			var err error
			n, err = strconv.Atoi(m[1])
			if err != nil {
				continue
			}
		}
		if n > best {
			best = n
		}
	}
	return best
}

// fields holds the normalized classifier inputs.
type fields struct {
	description string
	projectName string
	address     string
}

func newFields(description, projectName, address string) fields {
	return fields{
		description: Normalize(description),
		projectName: Normalize(projectName),
		address:     Normalize(address),
	}
}

func (f fields) empty() bool {
	return f.description == "" && f.projectName == "" && f.address == ""
}

// detect runs one family against the fields it is allowed to scan.
func (f fields) detect(fam Family, set phraseSet) bool {
	if set.match(f.description) || set.match(f.projectName) {
		return true
	}
	return addressFamilies[fam] && set.match(f.address)
}

// unitCount returns the governing unit count. When the description and the
// project name disagree, the higher count wins.
func (f fields) unitCount() int {
	return max(UnitCount(f.description), UnitCount(f.projectName))
}
