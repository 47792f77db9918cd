package nlu

import (
	"fmt"
	"os"
	"strings"

	"github.com/bytedance/sonic"
)

// UserPromptPlaceholder is replaced with the raw user input when a task prompt is rendered.
const UserPromptPlaceholder = "<USER_PROMPT>"

// Prompts maps a task to the system prompt sent to the collaborator.
type Prompts map[Task]string

var DefaultPrompts = Prompts{
	TaskClassifyIntent: `
Tu assistes un guichet du registre national des entreprises.
Détermine la démarche voulue par l'utilisateur à partir de son message : "<USER_PROMPT>".
- "création" : il veut immatriculer ou déclarer une nouvelle entité.
- "mise à jour" : il veut modifier, déclarer un changement ou mettre à jour une entité existante.
- "unknown" : le message ne permet pas de trancher.
Ne devine pas : en cas de doute réponds "unknown".
`,
	TaskMatchEntityType: `
Identifie le ou les types d'entité juridique mentionnés dans le message : "<USER_PROMPT>".
Choisis uniquement parmi les valeurs de la table fournie et recopie-les exactement.
Retourne une liste vide si aucun type ne correspond, plusieurs valeurs si le message est ambigu.
`,
	TaskPickEntityType: `
L'utilisateur a précisé : "<USER_PROMPT>".
Parmi les candidats de la table, choisis l'unique type qui correspond et recopie sa valeur exacte.
`,
	TaskDocumentsOrPenalty: `
L'utilisateur a écrit : "<USER_PROMPT>".
Veut-il connaître la liste des documents à fournir ("documents") ou le montant d'une amende ou
pénalité de retard ("amende") ? Réponds "unknown" si le message ne le dit pas.
`,
	TaskValidDate: `
Extrais la date contenue dans : "<USER_PROMPT>".
Retourne-la au format JJ/MM/AAAA. Si la date est absente ou impossible (par exemple 31/02/2024),
renseigne error = "invalid_date" et laisse date vide.
`,
	TaskChooseUpdateAction: `
L'utilisateur décrit la modification suivante : "<USER_PROMPT>".
Choisis dans la table l'action de mise à jour qui correspond et recopie sa valeur exacte.
`,
	TaskExtractProcedureFields: `
Tu lis la fiche d'une procédure du registre national des entreprises.
Extrais de ce texte : les documents demandés, les délais, les redevances à acquitter et les
observations (notamment les pénalités). Recopie les formulations du texte, une entrée par élément.
Le texte de la fiche est fourni dans le message de l'utilisateur.
`,
}

// Render builds the system prompt of task for input, ending with the instruction to call toolName.
func (p Prompts) Render(task Task, toolName, input string) string {
	tpl, ok := p[task]
	if !ok {
		tpl = DefaultPrompts[task]
	}
	text := strings.TrimSpace(strings.ReplaceAll(tpl, UserPromptPlaceholder, strings.TrimSpace(input)))
	return fmt.Sprintf("%s\n\nCall the '%s' tool with the result.", text, toolName)
}

type guidedPrompt struct {
	Description string `json:"description"`
}

// ParsePrompts decodes a guided prompts document of the form {"task": {"description": "..."}}.
// Tasks missing from the document keep their default prompt.
func ParsePrompts(data []byte) (Prompts, error) {
	var raw map[string]guidedPrompt
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode prompts: %w", err)
	}
	out := make(Prompts, len(DefaultPrompts))
	for k, v := range DefaultPrompts {
		out[k] = v
	}
	for name, g := range raw {
		task := Task(name)
		if !task.Valid() {
			return nil, fmt.Errorf("unknown prompt task %q", name)
		}
		if strings.TrimSpace(g.Description) == "" {
			return nil, fmt.Errorf("prompt %q has an empty description", name)
		}
		out[task] = g.Description
	}
	return out, nil
}

func LoadPrompts(path string) (Prompts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts: %w", err)
	}
	return ParsePrompts(data)
}
