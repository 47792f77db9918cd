package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbxark/rneagent/nlu"
	"github.com/tbxark/rneagent/reference"
)

type fakeExtractor struct {
	replies map[string]*nlu.ProcedureFields
	texts   []string
}

func (f *fakeExtractor) ExtractProcedureFields(ctx context.Context, text string) (*nlu.ProcedureFields, error) {
	f.texts = append(f.texts, text)
	if r, ok := f.replies[text]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("%w: no fields", nlu.ErrMalformedReply)
}

func files(m map[string]string) func(string) ([]byte, error) {
	return func(path string) ([]byte, error) {
		if s, ok := m[path]; ok {
			return []byte(s), nil
		}
		return nil, os.ErrNotExist
	}
}

func testEntries() []reference.Entry {
	return []reference.Entry{
		{
			EntityType:        "Société anonyme",
			Procedure:         "création",
			RequiredDocuments: []string{"Copie des statuts"},
			Deadline:          "30 jours",
			Fee:               "150 dinars",
			Sources:           []string{"sa.txt"},
		},
		{EntityType: "Sociétés", Procedure: "mise à jour"},
		{EntityType: "Association", Procedure: "création", Sources: []string{"missing.txt"}},
		{EntityType: "Sarl", Procedure: "création", Sources: []string{"sarl.txt"}},
	}
}

func TestRunMergesExtractedFields(t *testing.T) {
	extractor := &fakeExtractor{replies: map[string]*nlu.ProcedureFields{
		"texte SA": {
			Documents:    []string{"Copie des statuts", "Certificat de négative"},
			Deadlines:    []string{"Dans un délai de 30 jours"},
			Observations: []string{"5 dinars par jour de retard"},
		},
	}}
	ing := NewIngester(extractor, WithBaseDir("/docs"), WithReadFile(files(map[string]string{
		"/docs/sa.txt":   "  texte SA \n",
		"/docs/sarl.txt": "texte Sarl",
	})))

	entries := testEntries()
	merged, report, err := ing.Run(context.Background(), entries)
	require.NoError(t, err)
	require.Len(t, merged, 4)

	sa := merged[0]
	assert.Equal(t, []string{"Copie des statuts", "Certificat de négative"}, sa.RequiredDocuments)
	assert.Equal(t, "Dans un délai de 30 jours", sa.Deadline)
	assert.Equal(t, "150 dinars", sa.Fee)
	assert.Equal(t, []string{"5 dinars par jour de retard"}, sa.Observations)
	assert.Equal(t, []string{"sa.txt"}, sa.Sources)
	assert.Equal(t, entries[1], merged[1])
	assert.Equal(t, entries[3], merged[3])
	assert.Equal(t, []string{"Copie des statuts"}, entries[0].RequiredDocuments)

	assert.Equal(t, []int{0}, report.Updated)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Failures, 2)
	assert.Equal(t, 2, report.Failures[0].Index)
	assert.ErrorIs(t, report.Failures[0].Err, os.ErrNotExist)
	assert.Equal(t, 3, report.Failures[1].Index)
	assert.ErrorIs(t, report.Failures[1].Err, nlu.ErrMalformedReply)
	assert.Equal(t, []string{"texte SA", "texte Sarl"}, extractor.texts)

	var buf bytes.Buffer
	require.NoError(t, report.Render(&buf, merged))
	assert.Contains(t, buf.String(), "updated")
	assert.Contains(t, buf.String(), "1 updated, 2 failed, 1 without sources")
}

func TestRunJoinsSources(t *testing.T) {
	extractor := &fakeExtractor{replies: map[string]*nlu.ProcedureFields{
		"a\n\nb": {Fees: []string{"100 TND", "timbre 5 TND"}},
	}}
	ing := NewIngester(extractor, WithReadFile(files(map[string]string{"a.txt": "a", "b.txt": "b", "c.txt": " "})))

	merged, report, err := ing.Run(context.Background(), []reference.Entry{
		{EntityType: "Sarl", Procedure: "création", Sources: []string{"a.txt", "c.txt", "b.txt"}},
	})
	require.NoError(t, err)
	assert.Empty(t, report.Failures)
	assert.Equal(t, "100 TND ; timbre 5 TND", merged[0].Fee)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewIngester(&fakeExtractor{}).Run(ctx, testEntries())
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestWriteFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.json")
	entries := testEntries()
	require.NoError(t, WriteFile(path, entries))

	ds, err := reference.LoadDataset(path)
	require.NoError(t, err)
	assert.Equal(t, entries, ds.Entries())
}
