package discord

import "strings"

// action names the button/select kind encoded into a component's custom id,
// as "<action>:<id>" — id is a job id for result buttons, empty for
// draft-scoped components (the requester is identified by the interaction).
type action string

const (
	actionDropdownModel     action = "dd_model"
	actionDropdownSampler   action = "dd_sampler"
	actionDropdownScheduler action = "dd_scheduler"
	actionDropdownSize      action = "dd_size"
	actionEditPrompts       action = "edit_prompts"
	actionGenerate          action = "generate"
	actionSharePrompt       action = "share_prompt"
	actionReroll            action = "reroll"
	actionEdit              action = "edit"
	actionDelete            action = "delete"
	actionUpscale           action = "upscale"

	modalPrompts action = "modal_prompts"
)

func customID(a action, id string) string {
	if id == "" {
		return string(a)
	}
	return string(a) + ":" + id
}

func parseCustomID(raw string) (action, string) {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) == 1 {
		return action(parts[0]), ""
	}
	return action(parts[0]), parts[1]
}
