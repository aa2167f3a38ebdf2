package prompt

import (
	"regexp"
	"strings"

	"github.com/desyr/companion-chat/pkg/domain"
)

var actionSpanRe = regexp.MustCompile(`\*(.*?)\*`)

// ActionHints reminds the model of its recent asterisk-delimited physical
// actions, e.g. *He leans against the desk*. It looks at the last few
// assistant turns and reports the first action span of each.
type ActionHints struct {
	// Window is how many recent assistant turns to scan. Zero means the
	// default of 2.
	Window int
}

func (h ActionHints) Enrich(history []domain.Message) string {
	window := h.Window
	if window <= 0 {
		window = 2
	}

	var actions []string
	for i := len(history) - 1; i >= 0 && window > 0; i-- {
		if history[i].Role != domain.MessageRoleAssistant {
			continue
		}
		window--
		if span := actionSpanRe.FindString(history[i].Content); span != "" {
			// Prepend so the hint reads oldest first.
			actions = append([]string{span}, actions...)
		}
	}

	if len(actions) == 0 {
		return ""
	}
	return "Your last physical actions were: " + strings.Join(actions, " then ") + "."
}
