package answer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbxark/rneagent/reference"
	"github.com/tbxark/rneagent/types"
)

const sa = "Société anonyme"

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	ds, err := reference.DefaultDataset()
	require.NoError(t, err)
	return NewResolver(ds)
}

func day(d, m, y int) time.Time {
	return time.Date(y, time.Month(m), d, 15, 30, 0, 0, time.UTC)
}

func penaltySlots(entityType, created string) types.Slots {
	return types.Slots{
		types.SlotIntent:       types.IntentCreation,
		types.SlotEntityType:   entityType,
		types.SlotChoice:       types.ChoicePenalty,
		types.SlotCreationDate: created,
	}
}

func TestResolveDocuments(t *testing.T) {
	r := newTestResolver(t)
	got, err := r.Resolve(types.Slots{
		types.SlotIntent:     types.IntentCreation,
		types.SlotEntityType: sa,
		types.SlotChoice:     types.ChoiceDocuments,
	}, day(1, 1, 2025))
	require.NoError(t, err)
	assert.Equal(t, KindDocuments, got.Kind)
	assert.Equal(t, "Voici les documents requis pour une Société anonyme en cas de création :\n"+
		"Formulaire de déclaration d'immatriculation, Copie des statuts, Copie de la pièce d'identité des dirigeants, "+
		"Attestation de dépôt du capital, Certificat de négative", got.Text)
}

func TestResolveNoDocuments(t *testing.T) {
	r := newTestResolver(t)
	got, err := r.Resolve(types.Slots{
		types.SlotIntent:       types.IntentUpdate,
		types.SlotEntityType:   "Etablissement Public",
		types.SlotChoice:       types.ChoiceDocuments,
		types.SlotUpdateAction: "Transfert du siège",
	}, day(1, 1, 2025))
	require.NoError(t, err)
	assert.Equal(t, KindNoDocuments, got.Kind)
	assert.Contains(t, got.Text, "Désolé")
}

func TestResolveNotFound(t *testing.T) {
	r := newTestResolver(t)
	got, err := r.Resolve(types.Slots{
		types.SlotIntent:     types.IntentCreation,
		types.SlotEntityType: "Parti politique",
		types.SlotChoice:     types.ChoiceDocuments,
	}, day(1, 1, 2025))
	require.NoError(t, err)
	assert.Equal(t, KindNotFound, got.Kind)
	assert.Equal(t, "Désolé, je n'ai pas trouvé d'informations pour le type d'entité « Parti politique » et la procédure « création ».", got.Text)
}

func TestResolvePenalty(t *testing.T) {
	r := newTestResolver(t)
	tests := []struct {
		name     string
		slots    types.Slots
		now      time.Time
		kind     Kind
		contains []string
	}{
		{
			name:     "due date itself is on time",
			slots:    penaltySlots(sa, "01/03/2025"),
			now:      day(31, 3, 2025),
			kind:     KindPenaltyOnTime,
			contains: []string{"Tu es dans le délai de 30 jours", "Le tarif normal est de 150 TND", "(Délai légal : Dans un délai de 30 jours"},
		},
		{
			name:     "one day late",
			slots:    penaltySlots(sa, "01/03/2025"),
			now:      day(1, 4, 2025),
			kind:     KindPenaltyOverdue,
			contains: []string{"Tu es en retard de 1 jours", "L’amende s’élève à 5 TND", "(Détail pénalités : Le retard de déclaration"},
		},
		{
			name:     "fifteen day deadline",
			slots:    penaltySlots("Association tunisienne régie par le décret-loi n° 88/2011 portant organisation des associations", "01/03/2025"),
			now:      day(26, 3, 2025),
			kind:     KindPenaltyOverdue,
			contains: []string{"Tu as dépassé le délai de 15 jours", "Tu es en retard de 10 jours", "50 TND"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.slots, tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, got.Kind)
			for _, s := range tt.contains {
				assert.Contains(t, got.Text, s)
			}
		})
	}
}

func TestResolveDateFormatError(t *testing.T) {
	r := newTestResolver(t)
	got, err := r.Resolve(penaltySlots(sa, "2025-03-01"), day(1, 4, 2025))
	assert.ErrorIs(t, err, ErrDateFormat)
	assert.Equal(t, DateFormatMessage, got.Text)
}

func TestDeadlineDaysAndBaseFee(t *testing.T) {
	assert.Equal(t, 15, DeadlineDays("Dans un délai de 15 jours"))
	assert.Equal(t, 30, DeadlineDays("Dans un délai de 30 jours"))
	assert.Equal(t, 30, DeadlineDays("sans délai"))

	assert.Equal(t, 150, BaseFee("Redevance : 150 dinars"))
	assert.Equal(t, 100, BaseFee("Redevance : 100 TND"))
	assert.Equal(t, 0, BaseFee("Gratuit"))
	assert.Equal(t, 0, BaseFee("Redevance : 100 tnd"))
	assert.Equal(t, 0, BaseFee("Redevance : 100 Dinars"))
}
