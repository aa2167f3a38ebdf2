package keyword

import (
	"regexp"
	"strings"
)

// instructionRe matches out-of-band instruction spans like ((stay seated)).
// Spans are non-greedy and non-nested.
var instructionRe = regexp.MustCompile(`\(\((.*?)\)\)`)

// Instructions is the result of splitting raw input into the user-visible
// text and the private stage directions embedded in it.
type Instructions struct {
	VisibleText  string
	Instructions string
}

// ExtractInstructions pulls every ((...)) span out of text. The inner
// texts are joined with ". " and the remaining text is returned with the
// spans removed and the ends trimmed.
func ExtractInstructions(text string) Instructions {
	matches := instructionRe.FindAllStringSubmatch(text, -1)

	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		parts = append(parts, strings.TrimSpace(m[1]))
	}

	return Instructions{
		VisibleText:  strings.TrimSpace(instructionRe.ReplaceAllString(text, "")),
		Instructions: strings.Join(parts, ". "),
	}
}
