package utils

import (
	"errors"
	"testing"
)

func TestExtractJSONFromFencedBlock(t *testing.T) {
	input := "Here is the result:\n```json\n[{\"a\": 1}]\n```\nHope that helps!"

	got, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("ExtractJSON failed: %v", err)
	}
	if got != `[{"a": 1}]` {
		t.Errorf("got %q", got)
	}
}

func TestExtractJSONFromProse(t *testing.T) {
	input := `Sure! The schedule is {"subject": "Math", "weightage": 50} as requested.`

	got, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("ExtractJSON failed: %v", err)
	}
	if got != `{"subject": "Math", "weightage": 50}` {
		t.Errorf("got %q", got)
	}
}

func TestExtractJSONPlainPayload(t *testing.T) {
	input := `[{"x": 1}, {"x": 2}]`

	got, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("ExtractJSON failed: %v", err)
	}
	if got != input {
		t.Errorf("got %q, want input unchanged", got)
	}
}

func TestExtractJSONHandlesBracketsInsideStrings(t *testing.T) {
	input := `prefix {"note": "has } brace and \" quote"} suffix`

	got, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("ExtractJSON failed: %v", err)
	}
	if got != `{"note": "has } brace and \" quote"}` {
		t.Errorf("got %q", got)
	}
}

func TestExtractJSONNoPayload(t *testing.T) {
	for _, input := range []string{"", "   ", "no json here at all", "{broken"} {
		_, err := ExtractJSON(input)
		if !errors.Is(err, ErrNoJSONFound) {
			t.Errorf("input %q: error = %v, want ErrNoJSONFound", input, err)
		}
	}
}

func TestExtractJSONTo(t *testing.T) {
	input := "```json\n{\"name\": \"Algebra\", \"weightage\": 40}\n```"

	var target struct {
		Name      string  `json:"name"`
		Weightage float64 `json:"weightage"`
	}
	if err := ExtractJSONTo(input, &target); err != nil {
		t.Fatalf("ExtractJSONTo failed: %v", err)
	}
	if target.Name != "Algebra" || target.Weightage != 40 {
		t.Errorf("got %+v", target)
	}
}
