// Package vocab loads the controlled vocabularies used by the extractors and
// the profession scorer. Tables are immutable after loading.
package vocab

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"docintel-go/internal/textnorm"
	"docintel-go/internal/types"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var embedded embed.FS

const (
	fileSkills      = "skills.yaml"
	fileProfessions = "professions.yaml"
	fileToxicity    = "toxicity.yaml"
	fileSections    = "sections.yaml"
	fileStopwords   = "stopwords.yaml"
	fileGazetteer   = "gazetteer.yaml"
)

// Profession is one entry of the profession taxonomy.
type Profession struct {
	Label       string   `yaml:"label"`
	Area        string   `yaml:"area"`
	Description string   `yaml:"description"`
	Keywords    []string `yaml:"keywords"`
}

// ToxicPattern is a weighted offensive-language regular expression.
type ToxicPattern struct {
	Pattern  string  `yaml:"pattern"`
	Weight   float64 `yaml:"weight"`
	Category string  `yaml:"category"`
}

type skillsFile struct {
	Version int       `yaml:"version"`
	Domains yaml.Node `yaml:"domains"`
}

type professionsFile struct {
	Version     int          `yaml:"version"`
	Professions []Profession `yaml:"professions"`
}

type toxicityFile struct {
	Version         int            `yaml:"version"`
	TermWeight      float64        `yaml:"term_weight"`
	Terms           []string       `yaml:"terms"`
	Patterns        []ToxicPattern `yaml:"patterns"`
	PositiveContext []string       `yaml:"positive_context"`
}

type sectionsFile struct {
	Version  int                 `yaml:"version"`
	Sections map[string][]string `yaml:"sections"`
}

type stopwordsFile struct {
	Version             int      `yaml:"version"`
	Portuguese          []string `yaml:"portuguese"`
	SkillGeneric        []string `yaml:"skill_generic"`
	SkillFilter         []string `yaml:"skill_filter"`
	ContractBoilerplate []string `yaml:"contract_boilerplate"`
}

type gazetteerFile struct {
	Version     int            `yaml:"version"`
	FirstNames  []string       `yaml:"first_names"`
	OrgSuffixes []string       `yaml:"org_suffixes"`
	OrgKeywords []string       `yaml:"org_keywords"`
	Locations   []string       `yaml:"locations"`
	States      []string       `yaml:"states"`
	Months      map[string]int `yaml:"months"`
	Networking  []string       `yaml:"networking"`
}

type wordSet map[string]struct{}

func newWordSet(words []string) wordSet {
	set := make(wordSet, len(words))
	for _, w := range words {
		set[textnorm.Fold(w)] = struct{}{}
	}
	return set
}

func (s wordSet) has(w string) bool {
	_, ok := s[textnorm.Fold(w)]
	return ok
}

// Tables is the loaded, read-only vocabulary.
type Tables struct {
	versions map[string]int

	domainOrder  []string
	domainTerms  map[string][]string
	skillTerms   []string
	professions  []Profession
	sections     map[types.SectionKind][]string
	toxicTerms   []string
	termWeight   float64
	toxicPattern []ToxicPattern
	positive     wordSet

	stop         wordSet
	skillGeneric wordSet
	skillFilter  wordSet
	boilerplate  wordSet

	firstNames  wordSet
	orgSuffixes wordSet
	orgKeywords wordSet
	locations   []string
	states      wordSet
	months      map[string]int
	monthNames  []string
	networking  []string
}

var (
	defaultOnce   sync.Once
	defaultTables *Tables
)

// Default returns the embedded tables, loading them on first use. It panics
// when the embedded data is corrupt, which only a broken build can cause.
func Default() *Tables {
	defaultOnce.Do(func() {
		sub, err := fs.Sub(embedded, "data")
		if err != nil {
			panic(fmt.Sprintf("vocab: embedded data missing: %v", err))
		}
		t, err := LoadFS(sub)
		if err != nil {
			panic(fmt.Sprintf("vocab: embedded data invalid: %v", err))
		}
		defaultTables = t
	})
	return defaultTables
}

// Load reads the tables from dir, or returns Default when dir is empty.
func Load(dir string) (*Tables, error) {
	if dir == "" {
		return Default(), nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("vocab: stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vocab: %s is not a directory", dir)
	}
	return LoadFS(os.DirFS(dir))
}

// LoadFS reads every table file from fsys.
func LoadFS(fsys fs.FS) (*Tables, error) {
	t := &Tables{versions: make(map[string]int)}

	var sk skillsFile
	if err := decodeFile(fsys, fileSkills, &sk); err != nil {
		return nil, err
	}
	if err := t.setSkills(&sk); err != nil {
		return nil, err
	}

	var pf professionsFile
	if err := decodeFile(fsys, fileProfessions, &pf); err != nil {
		return nil, err
	}
	if len(pf.Professions) == 0 {
		return nil, fmt.Errorf("vocab: %s has no professions", fileProfessions)
	}
	for i, p := range pf.Professions {
		if p.Label == "" || len(p.Keywords) == 0 {
			return nil, fmt.Errorf("vocab: %s entry %d needs a label and keywords", fileProfessions, i)
		}
	}
	t.professions = pf.Professions
	t.versions[fileProfessions] = pf.Version

	var tf toxicityFile
	if err := decodeFile(fsys, fileToxicity, &tf); err != nil {
		return nil, err
	}
	t.toxicTerms = textnorm.FoldAll(tf.Terms)
	t.termWeight = tf.TermWeight
	if t.termWeight <= 0 {
		t.termWeight = 1.0
	}
	t.toxicPattern = tf.Patterns
	t.positive = newWordSet(tf.PositiveContext)
	t.versions[fileToxicity] = tf.Version

	var sf sectionsFile
	if err := decodeFile(fsys, fileSections, &sf); err != nil {
		return nil, err
	}
	t.sections = make(map[types.SectionKind][]string, len(sf.Sections))
	for name, variants := range sf.Sections {
		kind := types.SectionKind(name)
		if kind.Rank() == len(types.SectionKinds) {
			return nil, fmt.Errorf("vocab: %s: unknown section kind %q", fileSections, name)
		}
		t.sections[kind] = variants
	}
	t.versions[fileSections] = sf.Version

	var sw stopwordsFile
	if err := decodeFile(fsys, fileStopwords, &sw); err != nil {
		return nil, err
	}
	t.stop = newWordSet(sw.Portuguese)
	t.skillGeneric = newWordSet(sw.SkillGeneric)
	t.skillFilter = newWordSet(sw.SkillFilter)
	t.boilerplate = newWordSet(sw.ContractBoilerplate)
	t.versions[fileStopwords] = sw.Version

	var gz gazetteerFile
	if err := decodeFile(fsys, fileGazetteer, &gz); err != nil {
		return nil, err
	}
	t.firstNames = newWordSet(gz.FirstNames)
	t.orgSuffixes = newWordSet(trimDots(gz.OrgSuffixes))
	t.orgKeywords = newWordSet(gz.OrgKeywords)
	t.locations = textnorm.FoldAll(gz.Locations)
	t.states = newWordSet(gz.States)
	t.months = make(map[string]int, len(gz.Months))
	seenMonth := make(map[string]struct{})
	for name, m := range gz.Months {
		t.months[textnorm.Fold(name)] = m
		for _, form := range []string{strings.ToLower(name), textnorm.Fold(name)} {
			if _, ok := seenMonth[form]; !ok {
				seenMonth[form] = struct{}{}
				t.monthNames = append(t.monthNames, form)
			}
		}
	}
	t.networking = textnorm.FoldAll(gz.Networking)
	t.versions[fileGazetteer] = gz.Version

	return t, nil
}

func trimDots(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = strings.TrimRight(w, ".")
	}
	return out
}

func decodeFile(fsys fs.FS, name string, out interface{}) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("vocab: read %s: %w", name, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("vocab: parse %s: %w", name, err)
	}
	return nil
}

// setSkills keeps the domain order of the YAML mapping so phrase matching
// and the flattened term list are deterministic.
func (t *Tables) setSkills(sk *skillsFile) error {
	if sk.Domains.Kind != yaml.MappingNode {
		return fmt.Errorf("vocab: %s: domains must be a mapping", fileSkills)
	}
	t.domainTerms = make(map[string][]string)
	seen := make(map[string]struct{})
	for i := 0; i+1 < len(sk.Domains.Content); i += 2 {
		name := sk.Domains.Content[i].Value
		var terms []string
		if err := sk.Domains.Content[i+1].Decode(&terms); err != nil {
			return fmt.Errorf("vocab: %s: domain %s: %w", fileSkills, name, err)
		}
		t.domainOrder = append(t.domainOrder, name)
		t.domainTerms[name] = terms
		for _, term := range terms {
			key := textnorm.Fold(term)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			t.skillTerms = append(t.skillTerms, term)
		}
	}
	if len(t.skillTerms) == 0 {
		return fmt.Errorf("vocab: %s has no terms", fileSkills)
	}
	t.versions[fileSkills] = sk.Version
	return nil
}
