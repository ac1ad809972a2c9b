package classify

import (
	"github.com/sells-group/middle-housing/internal/model"
)

// Classifier resolves permit text into exactly one category. It holds only
// compiled, read-only vocabulary and is safe for concurrent use.
type Classifier struct {
	sets     map[Family]phraseSet
	minUnits int
	maxUnits int
}

// New compiles a classifier from vocabulary v.
func New(v Vocabulary) (*Classifier, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	sets := make(map[Family]phraseSet)
	for fam, words := range v.families() {
		sets[fam] = compilePhrases(words)
	}
	return &Classifier{
		sets:     sets,
		minUnits: v.MinMultiplexUnits,
		maxUnits: v.MaxMultiplexUnits,
	}, nil
}

// Default returns a classifier built from DefaultVocabulary.
func Default() *Classifier {
	c, err := New(DefaultVocabulary())
	if err != nil {
		panic("classify: default vocabulary invalid: " + err.Error())
	}
	return c
}

// Explanation is the intermediate state behind a classification, exposed for
// debugging rule behavior.
type Explanation struct {
	Description string          `json:"description"`
	ProjectName string          `json:"project_name"`
	Address     string          `json:"address"`
	UnitCount   int             `json:"unit_count"`
	Fired       map[Family]bool `json:"fired"`
	Category    model.Category  `json:"category"`
}

// Signals returns the fired families in reporting order.
func (e Explanation) Signals() []string {
	var out []string
	for _, fam := range familyOrder {
		if e.Fired[fam] {
			out = append(out, string(fam))
		}
	}
	return out
}

// Classify assigns a category to the three free-text permit fields. It never
// fails: inputs without a positive signal resolve to EXCLUDED. The returned
// classification has no Original row; see ClassifyRow.
func (c *Classifier) Classify(description, projectName, address string) model.Classification {
	e := c.Explain(description, projectName, address)
	return model.Classification{
		Category:        e.Category,
		IsMiddleHousing: e.Category.IsMiddleHousing(),
		UnitCount:       e.UnitCount,
		Signals:         e.Signals(),
	}
}

// ClassifyRow extracts the classifier inputs from row using cols and
// classifies them. Original carries an unmodified copy of row.
func (c *Classifier) ClassifyRow(row model.Row, cols model.ColumnMap) model.Classification {
	desc, proj, addr := cols.Extract(row)
	result := c.Classify(desc, proj, addr)
	result.Original = row.Clone()
	return result
}

// Explain runs every detector and the resolver, returning the full trace.
func (c *Classifier) Explain(description, projectName, address string) Explanation {
	f := newFields(description, projectName, address)
	e := Explanation{
		Description: f.description,
		ProjectName: f.projectName,
		Address:     f.address,
		Fired:       make(map[Family]bool),
		Category:    model.CategoryExcluded,
	}
	if f.empty() {
		return e
	}

	for fam, set := range c.sets {
		if f.detect(fam, set) {
			e.Fired[fam] = true
		}
	}

	e.UnitCount = f.unitCount()
	withinRange := e.UnitCount >= c.minUnits && e.UnitCount <= c.maxUnits
	if e.UnitCount > c.maxUnits || (e.Fired[FamilyLargeScale] && !withinRange) {
		e.Fired[FamilyLargeScale] = true
	} else if e.Fired[FamilyLargeScale] && withinRange {
		// A stated small unit count outweighs "apartment" wording.
		delete(e.Fired, FamilyLargeScale)
	}
	// ADU or townhome wording names the unit type, so a unit count alone
	// does not promote the record to MULTIPLEX ("4-unit building with ADU"
	// stays an ADU). Explicit multiplex words still win.
	anyADU := e.Fired[FamilyDADU] || e.Fired[FamilyAADU] || e.Fired[FamilyADU]
	if withinRange && !e.Fired[FamilyTownhome] && !anyADU {
		e.Fired[FamilyUnitCount] = true
	}

	e.Category = c.resolve(e.Fired)
	return e
}

// resolve applies the fixed priority order:
// ULS > MULTIPLEX > TOWNHOME > DADU > AADU > NEW_SFR > EXCLUDED.
// Middle-housing signals always outrank exclusion keywords.
func (c *Classifier) resolve(fired map[Family]bool) model.Category {
	for _, rule := range priorityRules {
		if rule.when(fired) {
			return rule.category
		}
	}
	return model.CategoryExcluded
}

type priorityRule struct {
	category model.Category
	when     func(fired map[Family]bool) bool
}

// priorityRules are evaluated in order; the first match wins, which also
// settles ties deterministically.
var priorityRules = []priorityRule{
	{model.CategoryULS, func(f map[Family]bool) bool {
		return f[FamilyULS]
	}},
	{model.CategoryMultiplex, func(f map[Family]bool) bool {
		return f[FamilyMultiplex] ||
			(f[FamilyMultiFamily] && !f[FamilyLargeScale]) ||
			f[FamilyUnitCount]
	}},
	{model.CategoryTownhome, func(f map[Family]bool) bool {
		return f[FamilyTownhome]
	}},
	{model.CategoryDADU, func(f map[Family]bool) bool {
		return f[FamilyDADU] || (f[FamilyADU] && f[FamilyDetached])
	}},
	{model.CategoryAADU, func(f map[Family]bool) bool {
		return f[FamilyAADU] || f[FamilyADU]
	}},
	{model.CategoryNewSFR, newSFR},
}

// newSFR fires on new-construction language. Only a phrase where "new"
// names the dwelling itself ("new single family", "new house") beats
// exclusion keywords. Anything weaker ("construct new deck at existing
// residence", "construct ... residence") yields to exclusion, commercial,
// or large-scale wording.
func newSFR(f map[Family]bool) bool {
	if f[FamilyNewDwelling] {
		return true
	}
	weak := f[FamilyNewConstruction] || (f[FamilyConstruct] && f[FamilySingleFamily])
	return weak && !f[FamilyExclusion] && !f[FamilyCommercial] && !f[FamilyLargeScale]
}
