package keyword

import "testing"

func TestExtractInstructions(t *testing.T) {
	tests := []struct {
		input        string
		visibleText  string
		instructions string
	}{
		{"A ((B)) C ((D)) E", "A  C  E", "B. D"},
		{"((stay seated)) hello", "hello", "stay seated"},
		{"hello there", "hello there", ""},
		{"", "", ""},
		{"((only instructions))", "", "only instructions"},
		{"((  padded  )) text", "text", "padded"},
		{"before ((a)) middle ((b)) after", "before  middle  after", "a. b"},
		{"(( )) text", "text", ""},
		{"unbalanced ((marker text", "unbalanced ((marker text", ""},
	}

	for _, test := range tests {
		got := ExtractInstructions(test.input)

		if got.VisibleText != test.visibleText || got.Instructions != test.instructions {
			t.Errorf("For input %q, expected (%q, %q), but got (%q, %q)",
				test.input, test.visibleText, test.instructions, got.VisibleText, got.Instructions)
		}
	}
}
