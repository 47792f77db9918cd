// Package answer turns a completed set of slots into the final reply, looking the procedure up
// in the reference dataset.
package answer

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tbxark/rneagent/reference"
	"github.com/tbxark/rneagent/types"
)

// ErrDateFormat is returned when the creation date slot does not parse as DD/MM/YYYY.
var ErrDateFormat = errors.New("creation date is not DD/MM/YYYY")

// DateFormatMessage is sent back to the user when the stored creation date is unusable.
const DateFormatMessage = "La date fournie n'est pas valide (JJ/MM/AAAA). Merci de recommencer."

const (
	DailyPenalty    = 5
	DefaultDeadline = 30
)

type Kind string

const (
	KindDocuments      Kind = "documents"
	KindNoDocuments    Kind = "no_documents"
	KindNotFound       Kind = "not_found"
	KindPenaltyOverdue Kind = "penalty_overdue"
	KindPenaltyOnTime  Kind = "penalty_on_time"
)

type Answer struct {
	Text string
	Kind Kind
}

var feePattern = regexp.MustCompile(`(\d+)\s*(?:dinars|TND)`)

type Resolver struct {
	dataset *reference.Dataset
}

func NewResolver(dataset *reference.Dataset) *Resolver {
	return &Resolver{dataset: dataset}
}

// Resolve computes the final answer for the filled slots. now is the current time of the caller.
func (r *Resolver) Resolve(slots types.Slots, now time.Time) (Answer, error) {
	intent, _ := slots.Get(types.SlotIntent)
	entityType, _ := slots.Get(types.SlotEntityType)

	entry, ok := r.dataset.Lookup(entityType, intent)
	if !ok {
		return Answer{
			Text: fmt.Sprintf("Désolé, je n'ai pas trouvé d'informations pour le type d'entité « %s » et la procédure « %s ».", entityType, intent),
			Kind: KindNotFound,
		}, nil
	}

	if choice, _ := slots.Get(types.SlotChoice); choice != types.ChoicePenalty {
		return documents(entry, entityType, intent), nil
	}
	return penalty(entry, slots, now)
}

func documents(entry reference.Entry, entityType, intent string) Answer {
	if len(entry.RequiredDocuments) == 0 {
		return Answer{
			Text: fmt.Sprintf("Désolé, je n'ai pas trouvé la liste des documents requis pour une %s en cas de %s.", entityType, intent),
			Kind: KindNoDocuments,
		}
	}
	return Answer{
		Text: fmt.Sprintf("Voici les documents requis pour une %s en cas de %s :\n%s", entityType, intent, strings.Join(entry.RequiredDocuments, ", ")),
		Kind: KindDocuments,
	}
}

func penalty(entry reference.Entry, slots types.Slots, now time.Time) (Answer, error) {
	raw, _ := slots.Get(types.SlotCreationDate)
	created, err := time.Parse(types.DateLayout, raw)
	if err != nil {
		return Answer{Text: DateFormatMessage}, fmt.Errorf("%w: %q", ErrDateFormat, raw)
	}

	days := DeadlineDays(entry.Deadline)
	due := created.AddDate(0, 0, days)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	if today.After(due) {
		overdue := int(today.Sub(due).Hours() / 24)
		note := ""
		if len(entry.Observations) > 0 {
			note = entry.Observations[0]
		}
		return Answer{
			Text: fmt.Sprintf("La création date du %s. Tu as dépassé le délai de %d jours. Tu es en retard de %d jours. L’amende s’élève à %d TND.\n(Détail pénalités : %s)",
				raw, days, overdue, overdue*DailyPenalty, note),
			Kind: KindPenaltyOverdue,
		}, nil
	}
	return Answer{
		Text: fmt.Sprintf("La création date du %s. Tu es dans le délai de %d jours. Le tarif normal est de %d TND.\n(Délai légal : %s)",
			raw, days, BaseFee(entry.Fee), entry.Deadline),
		Kind: KindPenaltyOnTime,
	}, nil
}

// DeadlineDays reads the deadline length out of its description: 15 when it mentions "15 jours",
// 30 otherwise.
func DeadlineDays(deadline string) int {
	if strings.Contains(deadline, "15 jours") {
		return 15
	}
	return DefaultDeadline
}

// BaseFee returns the first amount followed by "dinars" or "TND", or 0.
func BaseFee(fee string) int {
	m := feePattern.FindStringSubmatch(fee)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}
