package render

import (
	"strings"

	"github.com/russross/blackfriday"
)

// Markdown renders a message body to display HTML. Asterisk-delimited
// action spans (*He leans against the desk*) come out as emphasis and
// blank lines as paragraph breaks, which is all the chat bubbles need.
func Markdown(content string) string {
	return strings.TrimSpace(string(blackfriday.MarkdownCommon([]byte(content))))
}
