package classify

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Default unit-count bounds for count-based multiplex detection.
const (
	DefaultMinMultiplexUnits = 3
	DefaultMaxMultiplexUnits = 8
)

// Vocabulary is the keyword data behind every signal family. Phrases are
// normalized at compile time, so they may be written in any case or
// punctuation style.
type Vocabulary struct {
	ULS             []string `yaml:"uls"`
	Multiplex       []string `yaml:"multiplex"`
	MultiFamily     []string `yaml:"multifamily"`
	Townhome        []string `yaml:"townhome"`
	DADU            []string `yaml:"dadu"`
	AADU            []string `yaml:"aadu"`
	ADU             []string `yaml:"adu"`
	Detached        []string `yaml:"detached"`
	NewConstruction []string `yaml:"new_construction"`
	NewDwelling     []string `yaml:"new_dwelling"`
	Construct       []string `yaml:"construct"`
	SingleFamily    []string `yaml:"single_family"`
	Exclusion       []string `yaml:"exclusion"`
	Commercial      []string `yaml:"commercial"`
	LargeScale      []string `yaml:"large_scale"`

	// Count-based multiplex applies to unit counts within [Min, Max].
	// Counts above Max are treated as apartment scale.
	MinMultiplexUnits int `yaml:"min_multiplex_units"`
	MaxMultiplexUnits int `yaml:"max_multiplex_units"`
}

// DefaultVocabulary returns the built-in keyword sets.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		ULS: []string{
			"unit lot subdivision", "unit lot short plat", "unit lot sub",
			"unit lot", "uls",
		},
		Multiplex: []string{
			"multiplex", "multi plex", "duplex", "triplex", "tri plex",
			"fourplex", "four plex", "quadplex", "quad plex", "quadruplex",
			"fiveplex", "five plex", "sixplex", "six plex", "stacked flat",
		},
		MultiFamily: []string{
			"multi family", "multifamily", "multi unit", "multiunit",
			"multiple dwelling",
		},
		Townhome: []string{
			"townhouse", "townhome", "town house", "town home",
			"rowhouse", "row house", "rowhome", "row home",
			"attached single family", "attached sfr", "attached residence",
		},
		DADU: []string{
			"dadu", "detached accessory dwelling", "detached adu",
			"detached accessory unit", "backyard cottage", "carriage house",
			"laneway house",
		},
		AADU: []string{
			"aadu", "attached accessory dwelling", "attached adu",
			"attached accessory unit", "basement adu",
		},
		ADU: []string{
			"adu", "accessory dwelling", "accessory dwelling unit",
			"accessory unit", "mother in law", "in law unit",
			"in law apartment", "granny flat",
		},
		Detached: []string{
			"detached", "backyard", "cottage", "stand alone", "freestanding",
			"separate structure", "accessory structure", "detached garage",
		},
		NewConstruction: []string{
			"new construction", "construct new", "construct a new",
			"new build", "newly constructed", "ground up", "build new",
			"erect new",
		},
		// "new" directly naming the dwelling; outranks exclusion wording.
		NewDwelling: []string{
			"new single family", "new sfr", "new sfd", "new residence",
			"new house", "new home", "new dwelling", "new detached single family",
		},
		Construct: []string{
			"construct", "build", "erect", "establish use",
		},
		SingleFamily: []string{
			"single family", "sfr", "sfd", "single family residence",
			"single family dwelling", "residence", "house", "home", "dwelling",
		},
		Exclusion: []string{
			"repair", "remodel", "remodeling", "renovation", "renovate",
			"tenant improvement", "ti", "alteration", "alter", "reroof",
			"re roof", "deck", "addition", "interior", "replace",
			"replacement", "demolish", "demolition", "demo", "retrofit",
			"existing", "siding", "window", "solar", "fence",
			"retaining wall", "kitchen", "bath", "bathroom", "upgrade",
			"garage", "carport", "shed", "pool", "sign",
		},
		Commercial: []string{
			"commercial", "office", "retail", "restaurant", "warehouse",
			"industrial", "hotel", "medical", "clinic", "school", "church",
			"tenant", "store",
		},
		LargeScale: []string{
			"apartment", "apartment building", "mixed use", "mid rise",
			"high rise", "podium", "congregate", "micro housing",
			"dormitory", "assisted living",
		},
		MinMultiplexUnits: DefaultMinMultiplexUnits,
		MaxMultiplexUnits: DefaultMaxMultiplexUnits,
	}
}

// ParseVocabulary decodes YAML vocabulary data. Families or thresholds the
// document leaves empty keep their default values.
func ParseVocabulary(data []byte) (Vocabulary, error) {
	var override Vocabulary
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Vocabulary{}, eris.Wrap(err, "classify: parse vocabulary")
	}
	v := DefaultVocabulary().merge(override)
	if err := v.Validate(); err != nil {
		return Vocabulary{}, err
	}
	return v, nil
}

// LoadVocabulary reads a YAML vocabulary file from path.
func LoadVocabulary(path string) (Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, eris.Wrapf(err, "classify: read vocabulary %s", path)
	}
	return ParseVocabulary(data)
}

// Validate checks that the vocabulary can drive the resolver.
func (v Vocabulary) Validate() error {
	if v.MinMultiplexUnits < 2 {
		return eris.Errorf("classify: min_multiplex_units must be at least 2, got %d", v.MinMultiplexUnits)
	}
	if v.MaxMultiplexUnits < v.MinMultiplexUnits {
		return eris.Errorf("classify: max_multiplex_units (%d) below min_multiplex_units (%d)",
			v.MaxMultiplexUnits, v.MinMultiplexUnits)
	}
	for name, words := range v.families() {
		if len(compilePhrases(words)) == 0 {
			return eris.Errorf("classify: family %q has no usable keywords", name)
		}
	}
	return nil
}

// merge overlays the non-empty parts of o onto v.
func (v Vocabulary) merge(o Vocabulary) Vocabulary {
	pick := func(base, over []string) []string {
		if len(over) > 0 {
			return over
		}
		return base
	}
	v.ULS = pick(v.ULS, o.ULS)
	v.Multiplex = pick(v.Multiplex, o.Multiplex)
	v.MultiFamily = pick(v.MultiFamily, o.MultiFamily)
	v.Townhome = pick(v.Townhome, o.Townhome)
	v.DADU = pick(v.DADU, o.DADU)
	v.AADU = pick(v.AADU, o.AADU)
	v.ADU = pick(v.ADU, o.ADU)
	v.Detached = pick(v.Detached, o.Detached)
	v.NewConstruction = pick(v.NewConstruction, o.NewConstruction)
	v.NewDwelling = pick(v.NewDwelling, o.NewDwelling)
	v.Construct = pick(v.Construct, o.Construct)
	v.SingleFamily = pick(v.SingleFamily, o.SingleFamily)
	v.Exclusion = pick(v.Exclusion, o.Exclusion)
	v.Commercial = pick(v.Commercial, o.Commercial)
	v.LargeScale = pick(v.LargeScale, o.LargeScale)
	if o.MinMultiplexUnits != 0 {
		v.MinMultiplexUnits = o.MinMultiplexUnits
	}
	if o.MaxMultiplexUnits != 0 {
		v.MaxMultiplexUnits = o.MaxMultiplexUnits
	}
	return v
}

// families maps each signal family to its keyword list.
func (v Vocabulary) families() map[Family][]string {
	return map[Family][]string{
		FamilyULS:             v.ULS,
		FamilyMultiplex:       v.Multiplex,
		FamilyMultiFamily:     v.MultiFamily,
		FamilyTownhome:        v.Townhome,
		FamilyDADU:            v.DADU,
		FamilyAADU:            v.AADU,
		FamilyADU:             v.ADU,
		FamilyDetached:        v.Detached,
		FamilyNewConstruction: v.NewConstruction,
		FamilyNewDwelling:     v.NewDwelling,
		FamilyConstruct:       v.Construct,
		FamilySingleFamily:    v.SingleFamily,
		FamilyExclusion:       v.Exclusion,
		FamilyCommercial:      v.Commercial,
		FamilyLargeScale:      v.LargeScale,
	}
}
