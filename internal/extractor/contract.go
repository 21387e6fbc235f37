package extractor

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"docintel-go/internal/logger"
	"docintel-go/internal/nlp"
	"docintel-go/internal/textnorm"
	"docintel-go/internal/types"
	"docintel-go/internal/vocab"
)

// Contract entity labels.
const (
	LabelCPF        = "CPF"
	LabelCNPJ       = "CNPJ"
	LabelMoney      = "Valor Monetário"
	LabelContractor = "Parte Contratante"
	LabelContracted = "Parte Contratada"
	LabelPerson     = "Pessoa / Testemunha"
	LabelLocation   = "Local"
	LabelOtherOrg   = "Outra Organização"
	LabelDate       = "Data"

	PartyOrganization = "Organização"
	PartyPerson       = "Pessoa"
	PartyUndetermined = "Indeterminado"
)

// PartyLabel composes a role label with the party kind, e.g.
// "Parte Contratante (Pessoa)".
func PartyLabel(role, kind string) string {
	return fmt.Sprintf("%s (%s)", role, kind)
}

// Layer proposes candidates for text given the spans already claimed by
// earlier layers. Layers do not mutate shared state.
type Layer func(text string, claimed []types.Span) []Candidate

type namedLayer struct {
	name string
	run  Layer
}

var identifierPatterns = []struct {
	label string
	re    *regexp.Regexp
}{
	{LabelCNPJ, regexp.MustCompile(`\b\d{2}\.\d{3}\.\d{3}/\d{4}-\d{2}\b`)},
	{LabelCPF, regexp.MustCompile(`\b\d{3}\.\d{3}\.\d{3}-\d{2}\b`)},
	{LabelMoney, regexp.MustCompile(`R\$\s?\d{1,3}(?:\.\d{3})*(?:,\d{2})?\b|R\$\s?\d+(?:,\d{2})?\b`)},
}

// rolePattern captures "KEYWORD ...: rest of line".
var rolePattern = regexp.MustCompile(`\b(CONTRATANTE|CONTRATAD[AO]|Contratante|Contratad[ao])S?\b[^:\n]{0,60}:[ \t]*([^\n]*)`)

// partyStops end the party name inside the captured line.
const partyStops = ",;(\t"

var nerContractLabels = map[nlp.Label]string{
	nlp.LabelPerson: LabelPerson,
	nlp.LabelLoc:    LabelLocation,
	nlp.LabelOrg:    LabelOtherOrg,
	nlp.LabelDate:   LabelDate,
}

// ContractExtractor runs the contract layers in a fixed order: structured
// identifiers, contracting parties, then recognizer entities.
type ContractExtractor struct {
	model  *nlp.Model
	tables *vocab.Tables
	layers []namedLayer
}

// NewContractExtractor wires the layers; with a nil model the entity layer
// finds nothing and undetermined parties stay undetermined.
func NewContractExtractor(tables *vocab.Tables, model *nlp.Model) *ContractExtractor {
	c := &ContractExtractor{model: model, tables: tables}
	c.layers = []namedLayer{
		{"identifiers", IdentifierLayer},
		{"roles", c.RoleLayer},
		{"entities", c.EntityLayer},
	}
	return c
}

// Extract returns non-overlapping entities ordered by position. A failing
// layer is logged and contributes nothing.
func (c *ContractExtractor) Extract(ctx context.Context, text string) []types.ExtractedEntity {
	claims := NewClaims(text, nil)
	for _, l := range c.layers {
		if ctx.Err() != nil {
			logger.Warn().Str("layer", l.name).Msg("contract extraction cancelled")
			break
		}
		kept := 0
		for _, cand := range runLayer(l, text, claims.Claimed()) {
			if _, ok := claims.TryClaim(cand.Span, cand.Label); ok {
				kept++
			}
		}
		logger.Debug().Str("layer", l.name).Int("claimed", kept).Msg("contract layer done")
	}
	return claims.Entities()
}

func runLayer(l namedLayer, text string, claimed []types.Span) (out []Candidate) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Str("layer", l.name).Interface("panic", r).Msg("extraction layer failed")
			out = nil
		}
	}()
	return l.run(text, claimed)
}

// IdentifierLayer matches CNPJ, CPF and monetary amounts verbatim.
func IdentifierLayer(text string, claimed []types.Span) []Candidate {
	var out []Candidate
	for _, p := range identifierPatterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			out = append(out, Candidate{Span: types.Span{Start: loc[0], End: loc[1]}, Label: p.label})
		}
	}
	return out
}

// RoleLayer finds the contracting parties and decides, from the recognizer
// run over the party text alone, whether each is an organisation or a person.
func (c *ContractExtractor) RoleLayer(text string, claimed []types.Span) []Candidate {
	var out []Candidate
	for _, m := range rolePattern.FindAllStringSubmatchIndex(text, -1) {
		role := LabelContracted
		if strings.HasPrefix(textnorm.Fold(text[m[2]:m[3]]), "contratante") {
			role = LabelContractor
		}
		span, ok := partySpan(text, m[4], m[5], claimed)
		if !ok {
			continue
		}
		kind := c.partyKind(text[span.Start:span.End])
		out = append(out, Candidate{Span: span, Label: PartyLabel(role, kind)})
	}
	return out
}

// partySpan cuts the captured line at the first separator or claimed span.
func partySpan(text string, start, end int, claimed []types.Span) (types.Span, bool) {
	if i := strings.IndexAny(text[start:end], partyStops); i >= 0 {
		end = start + i
	}
	if i := strings.Index(text[start:end], " - "); i >= 0 {
		end = start + i
	}
	for _, s := range claimed {
		if s.Start >= start && s.Start < end {
			end = s.Start
		}
	}
	for start < end && (text[start] == ' ' || text[start] == '\t') {
		start++
	}
	for end > start && (text[end-1] == ' ' || text[end-1] == '\t') {
		end--
	}
	if end-start < 2 {
		return types.Span{}, false
	}
	return types.Span{Start: start, End: end}, true
}

func (c *ContractExtractor) partyKind(party string) string {
	if c.model == nil {
		return PartyUndetermined
	}
	var best nlp.Entity
	for _, e := range c.model.Analyze(party).Entities() {
		if e.Label != nlp.LabelOrg && e.Label != nlp.LabelPerson {
			continue
		}
		if e.End-e.Start > best.End-best.Start {
			best = e
		}
	}
	switch best.Label {
	case nlp.LabelOrg:
		return PartyOrganization
	case nlp.LabelPerson:
		return PartyPerson
	}
	return PartyUndetermined
}

// EntityLayer labels the remaining person, place, organisation and date
// spans, skipping structural contract vocabulary.
func (c *ContractExtractor) EntityLayer(text string, claimed []types.Span) []Candidate {
	if c.model == nil {
		return nil
	}
	var out []Candidate
	for _, e := range c.model.Analyze(text).Entities() {
		label, ok := nerContractLabels[e.Label]
		if !ok || c.isBoilerplate(e.Text) {
			continue
		}
		out = append(out, Candidate{Span: types.Span{Start: e.Start, End: e.End}, Label: label})
	}
	return out
}

// isBoilerplate matches the whole entity or, for multi-word entities such as
// "Cláusula Primeira", its first word.
func (c *ContractExtractor) isBoilerplate(text string) bool {
	if c.tables.IsContractBoilerplate(text) {
		return true
	}
	words := strings.Fields(text)
	return len(words) > 1 && utf8.RuneCountInString(words[0]) > 2 && c.tables.IsContractBoilerplate(words[0])
}
