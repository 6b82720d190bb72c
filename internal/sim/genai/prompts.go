package genai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/louisbranch/sceneforge/internal/sim/domain"
)

const characterMoveSystem = `You play one character in a turn-based role-play scene.
Stay in character. Declare exactly one move: either an action the character
initiates, or a reaction to what just happened. Answer with JSON matching the
requested shape: "type" is "action" or "reaction", "target" is a present
character's id or "scene", and "description" is one or two sentences in the
third person.`

const adjudicationSystem = `You are the game master adjudicating the declared moves of one turn.
For every move id, decide whether it needs a skill check. If it does, name the
skill and a difficulty class. If it does not, rule an automatic "success" or
"failure". Apply the rulebook. Answer with JSON matching the requested shape,
with one entry per move id.`

const narrationSystem = `You narrate a turn-based role-play scene.
Given the resolved moves of the turn, write the narration in second person
("you"), honoring each move's success or failure exactly. Record what each
character would remember as observations with an importance from 1 to 5.
Express every change to the scene as state operations ("set", "increment",
"decrement", "append_unique", "remove_value") over dotted paths. Answer with
JSON matching the requested shape.`

const suggestionSystem = `You suggest what the player might do next in a role-play scene.
Offer exactly three short, distinct next actions in the player's voice, each a
single imperative sentence. Answer with JSON matching the requested shape.`

func characterMovePrompt(in CharacterMoveInput) (system, prompt string) {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s (%s).\n", in.Character.Name, in.Character.CharacterID)
	if in.Character.Backstory != "" {
		fmt.Fprintf(&b, "Backstory: %s\n", in.Character.Backstory)
	}
	writeJSONSection(&b, "Your stats", in.Character.Stats)
	if in.Lore.Description != "" {
		fmt.Fprintf(&b, "\nWorld: %s\n", in.Lore.Description)
	}
	writeJSONSection(&b, "Scene state", in.SceneState)
	writeCharacterList(&b, in.PresentCharacters)
	writeObservations(&b, in.Observations)
	fmt.Fprintf(&b, "\nThe player's character just declared: %s\n", in.UserMove.Description)
	b.WriteString("Declare your move.")
	return characterMoveSystem, b.String()
}

func adjudicationPrompt(in AdjudicationInput) (system, prompt string) {
	var b strings.Builder
	b.WriteString("Rulebook:\n")
	b.WriteString(in.Ruleset.RulebookText)
	b.WriteString("\n")
	if in.Ruleset.MechanicsGuidance != "" {
		fmt.Fprintf(&b, "Guidance: %s\n", in.Ruleset.MechanicsGuidance)
	}
	writeJSONSection(&b, "Scene state", in.SceneState)
	b.WriteString("\nCharacters and stats:\n")
	for _, character := range in.Characters {
		stats, _ := json.Marshal(character.Stats)
		fmt.Fprintf(&b, "- %s (%s, %s): %s\n", character.Name, character.CharacterID, character.Role, stats)
	}
	writeObservations(&b, in.Observations)
	b.WriteString("\nMoves to adjudicate:\n")
	for _, move := range in.Moves {
		fmt.Fprintf(&b, "- %s: %s (%s, by %s, targeting %s)\n",
			move.ID, move.Description, move.Type, move.ActorID, move.Target)
	}
	b.WriteString("Adjudicate every move id.")
	return adjudicationSystem, b.String()
}

func narrationPrompt(in NarrationInput) (system, prompt string) {
	var b strings.Builder
	if in.Lore.Description != "" {
		fmt.Fprintf(&b, "World: %s\n", in.Lore.Description)
	}
	writeJSONSection(&b, "Scene state", in.SceneState)
	writeCharacterList(&b, in.Characters)
	fmt.Fprintf(&b, "\nThe player declared: %s\n", in.UserMove.Description)
	b.WriteString("\nResolved moves, in order:\n")
	for _, outcome := range in.Outcomes {
		result := "failure"
		if outcome.Success {
			result = "success"
		}
		fmt.Fprintf(&b, "- %s by %s: %s -> %s", outcome.Move.ID, outcome.Move.ActorID,
			outcome.Move.Description, result)
		if outcome.Check != nil {
			fmt.Fprintf(&b, " (rolled %s = %d vs DC %d)",
				outcome.Check.Expression, outcome.Check.Total, outcome.Check.Difficulty)
		}
		if outcome.Reasoning != "" {
			fmt.Fprintf(&b, " [%s]", outcome.Reasoning)
		}
		b.WriteString("\n")
	}
	b.WriteString("Narrate the turn, record observations, and emit state operations.")
	return narrationSystem, b.String()
}

func suggestionPrompt(in SuggestionInput) (system, prompt string) {
	var b strings.Builder
	fmt.Fprintf(&b, "The player's character is %s.\n", in.Persona.Name)
	writeJSONSection(&b, "Scene state", in.SceneState)
	b.WriteString("\nWhat just happened:\n")
	b.WriteString(in.Narration)
	b.WriteString("\n\nSuggest three next actions.")
	return suggestionSystem, b.String()
}

func writeJSONSection(b *strings.Builder, label string, value any) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return
	}
	fmt.Fprintf(b, "\n%s: %s\n", label, encoded)
}

func writeCharacterList(b *strings.Builder, characters []domain.CharacterRuntime) {
	if len(characters) == 0 {
		return
	}
	b.WriteString("\nPresent characters:\n")
	for _, character := range characters {
		fmt.Fprintf(b, "- %s (%s, %s)\n", character.Name, character.CharacterID, character.Role)
	}
}

func writeObservations(b *strings.Builder, observations []domain.WeightedObservation) {
	if len(observations) == 0 {
		return
	}
	b.WriteString("\nRemembered observations, most relevant first:\n")
	for _, weighted := range observations {
		fmt.Fprintf(b, "- [%s, weight %.2f] %s\n",
			weighted.Observation.CharacterID, weighted.Weight, weighted.Observation.Content)
	}
}
