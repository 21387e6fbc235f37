package vocab

import (
	"testing"
	"testing/fstest"

	"docintel-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTables(t *testing.T) {
	tables := Default()
	require.NotNil(t, tables)

	assert.Same(t, tables, Default(), "Default must load once")
	assert.Greater(t, len(tables.SkillTerms()), 200)
	assert.Contains(t, tables.SkillTerms(), "power bi")
	assert.Equal(t, "programming", tables.SkillDomains()[0])
	assert.GreaterOrEqual(t, len(tables.Professions()), 80)

	for _, kind := range types.SectionKinds {
		assert.NotEmpty(t, tables.SectionVariants(kind), "no heading variants for %s", kind)
	}
	assert.Contains(t, tables.SectionVariants(types.SectionExperience), "experiência profissional")
}

func TestLookupsAreAccentAndCaseInsensitive(t *testing.T) {
	tables := Default()

	assert.True(t, tables.IsStopWord("Da"))
	assert.True(t, tables.IsGenericSkillTerm("Avancado"))
	assert.True(t, tables.IsSkillFilterWord("EXPERIÊNCIA"))
	assert.True(t, tables.IsContractBoilerplate("Testemunhas"))
	assert.True(t, tables.IsContractBoilerplate("contrato  de prestação de serviços"))
	assert.True(t, tables.IsFirstName("joão"))
	assert.True(t, tables.IsOrgSuffix("LTDA"))
	assert.True(t, tables.IsLocation("Sao Paulo"))
	assert.True(t, tables.IsPositiveContext("Adoro"))
	assert.False(t, tables.IsStopWord("python"))

	m, ok := tables.Month("Março")
	require.True(t, ok)
	assert.Equal(t, 3, m)
	_, ok = tables.Month("segunda")
	assert.False(t, ok)

	assert.True(t, tables.ContainsNetworkingMarker("linkedin.com/in/maria"))
	assert.False(t, tables.ContainsNetworkingMarker("Maria Silva"))
}

func TestMonthNamesLongestFirst(t *testing.T) {
	names := Default().MonthNames()
	require.NotEmpty(t, names)
	for i := 1; i < len(names); i++ {
		assert.GreaterOrEqual(t, len(names[i-1]), len(names[i]))
	}
}

func TestProfessionDescriptionFallsBackToKeywords(t *testing.T) {
	p := Profession{Label: "Barista", Keywords: []string{"café", "bebidas"}}
	assert.Equal(t, "Barista: café, bebidas", p.DescriptionText())

	p.Description = "Prepara cafés especiais"
	assert.Equal(t, "Prepara cafés especiais", p.DescriptionText())
}

func TestLoadFSErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFS(fstest.MapFS{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), fileSkills)
	})

	t.Run("unknown section kind", func(t *testing.T) {
		fsys := minimalFS()
		fsys[fileSections] = &fstest.MapFile{Data: []byte("sections:\n  hobbies: [hobbies]\n")}
		_, err := LoadFS(fsys)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "hobbies")
	})

	t.Run("profession without keywords", func(t *testing.T) {
		fsys := minimalFS()
		fsys[fileProfessions] = &fstest.MapFile{Data: []byte("professions:\n  - label: Vazio\n")}
		_, err := LoadFS(fsys)
		require.Error(t, err)
	})

	t.Run("minimal tables load", func(t *testing.T) {
		tables, err := LoadFS(minimalFS())
		require.NoError(t, err)
		assert.Equal(t, []string{"go", "docker"}, tables.SkillTerms())
		assert.Equal(t, 1.0, tables.ToxicTermWeight())
	})
}

func TestLoadDirectory(t *testing.T) {
	_, err := Load(t.TempDir() + "/missing")
	require.Error(t, err)

	tables, err := Load("")
	require.NoError(t, err)
	assert.Same(t, Default(), tables)
}

func minimalFS() fstest.MapFS {
	return fstest.MapFS{
		fileSkills:      {Data: []byte("domains:\n  dev: [go, Go, docker]\n")},
		fileProfessions: {Data: []byte("professions:\n  - label: Dev\n    keywords: [código]\n")},
		fileToxicity:    {Data: []byte("terms: [bosta]\n")},
		fileSections:    {Data: []byte("sections:\n  skills: [habilidades]\n")},
		fileStopwords:   {Data: []byte("portuguese: [de]\n")},
		fileGazetteer:   {Data: []byte("months:\n  maio: 5\n")},
	}
}
