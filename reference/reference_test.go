package reference

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDataset(t *testing.T) {
	ds, err := DefaultDataset()
	require.NoError(t, err)
	require.Greater(t, ds.Len(), 0)

	e, ok := ds.Lookup("  société ANONYME ", "Création")
	require.True(t, ok)
	assert.Equal(t, "Société anonyme", e.EntityType)
	assert.NotEmpty(t, e.RequiredDocuments)

	_, ok = ds.Lookup("Société anonyme", "mise à jour")
	assert.False(t, ok)
}

func TestLookupFirstMatchWins(t *testing.T) {
	ds := NewDataset([]Entry{
		{EntityType: "Sociétés", Procedure: "mise à jour", Fee: "first"},
		{EntityType: "sociétés", Procedure: "Mise à jour", Fee: "second"},
	})
	e, ok := ds.Lookup("Sociétés", "mise à jour")
	require.True(t, ok)
	assert.Equal(t, "first", e.Fee)
}

func TestParseDatasetRejectsIncompleteEntries(t *testing.T) {
	_, err := ParseDataset([]byte(`[{"entity_type":"Société anonyme","procedure":" "}]`))
	require.Error(t, err)

	_, err = ParseDataset([]byte(`{not json`))
	require.Error(t, err)
}

func TestLoadDatasetFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"entity_type":"Parti politique","procedure":"création","required_documents":["Statuts"]}]`), 0o600))

	ds, err := LoadDataset(path)
	require.NoError(t, err)
	e, ok := ds.Lookup("parti politique", "création")
	require.True(t, ok)
	assert.Equal(t, []string{"Statuts"}, e.RequiredDocuments)

	_, err = LoadDataset(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestDefaultCatalog(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)

	assert.Contains(t, c.EntityTypesFor("création"), "Société anonyme")
	assert.Equal(t, []string{"Etablissement Public", "Association", "Sociétés"}, c.EntityTypesFor("mise à jour"))
	assert.Len(t, c.EntityTypesFor("autre"), len(c.AllEntityTypes()))
	assert.Greater(t, len(c.UpdateActions), 40)

	seen := map[string]bool{}
	for _, a := range c.UpdateActions {
		key := strings.ToLower(a)
		assert.False(t, seen[key], "duplicate update action %q", a)
		seen[key] = true
	}
}

func TestCatalogFind(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)

	got, ok := c.FindEntityType("société anonyme")
	require.True(t, ok)
	assert.Equal(t, "Société anonyme", got)

	got, ok = c.FindUpdateAction(" transfert du siège social ")
	require.True(t, ok)
	assert.Equal(t, "Transfert du siège social", got)

	_, ok = c.FindUpdateAction("repeindre la façade")
	assert.False(t, ok)
	_, ok = Match("", []string{""})
	assert.False(t, ok)
}

func TestParseCatalogRequiresEntityTypes(t *testing.T) {
	_, err := ParseCatalog([]byte(`{"update_actions":["Transfert du siège"]}`))
	assert.Error(t, err)
}
