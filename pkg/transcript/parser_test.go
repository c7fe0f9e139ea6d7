package transcript

import (
	"errors"
	"reflect"
	"testing"

	"github.com/jxzhangjhu/guidance/pkg/models"
)

func TestParseTurns(t *testing.T) {
	prompt := "<|im_start|>system\nYou are helpful.<|im_end|><|im_start|>user\nHi<|im_end|>"
	got := Parse(prompt)
	want := []models.Turn{
		{Role: "system", Content: "You are helpful."},
		{Role: "user", Content: "Hi"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestParseUnicodeRole(t *testing.T) {
	got := Parse("<|im_start|>usuário\nOi<|im_end|><|im_start|>助手2\nOlá<|im_end|>")
	want := []models.Turn{
		{Role: "usuário", Content: "Oi"},
		{Role: "助手2", Content: "Olá"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestParseNoMarkers(t *testing.T) {
	got := Parse("  Hello\n")
	want := []models.Turn{{Role: "user", Content: "Hello"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestParseMultilineBody(t *testing.T) {
	prompt := "<|im_start|>user\nline one\n\nline two\n<|im_end|>\n<|im_start|>assistant\n"
	got := Parse(prompt)
	want := []models.Turn{{Role: "user", Content: "line one\n\nline two"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestParseUnbalancedIsPermissive(t *testing.T) {
	// Two starts before one end: the first start swallows the second.
	prompt := "<|im_start|>system\nA<|im_start|>user\nB<|im_end|><|im_end|>"
	got := Parse(prompt)
	if len(got) != 1 {
		t.Fatalf("expected 1 turn, got %d: %+v", len(got), got)
	}
	if got[0].Role != "system" {
		t.Errorf("expected role system, got %q", got[0].Role)
	}
	if got[0].Content != "A<|im_start|>user\nB" {
		t.Errorf("unexpected content %q", got[0].Content)
	}
}

func TestStrictParserRejectsUnbalanced(t *testing.T) {
	p := Parser{Strict: true}
	_, err := p.Parse("<|im_start|>user\nHi<|im_end|><|im_end|>")
	if !errors.Is(err, ErrMalformedPrompt) {
		t.Fatalf("expected ErrMalformedPrompt, got %v", err)
	}

	turns, err := p.Parse("<|im_start|>user\nHi<|im_end|>")
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 1 || turns[0].Content != "Hi" {
		t.Errorf("unexpected turns %+v", turns)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	turns := []models.Turn{
		{Role: "system", Content: "Be brief."},
		{Role: "user", Content: "What is 2+2?"},
		{Role: "assistant", Content: "4"},
	}
	flat := Serialize(turns)
	want := "<|im_start|>system\nBe brief.<|im_end|><|im_start|>user\nWhat is 2+2?<|im_end|><|im_start|>assistant\n4<|im_end|>"
	if flat != want {
		t.Errorf("serialize: got %q", flat)
	}
	if got := Parse(flat); !reflect.DeepEqual(got, turns) {
		t.Errorf("round trip: got %+v", got)
	}
}

func TestAnnotate(t *testing.T) {
	resp := &models.Response{
		Model: "gpt-4",
		Choices: []models.Choice{
			{Index: 0, Message: &models.Turn{Role: "assistant", Content: "Hi there"}, FinishReason: "stop"},
			{Index: 1, Text: "plain"},
		},
	}
	Annotate(resp)

	if resp.Choices[0].Text != "Hi there" {
		t.Errorf("expected text %q, got %q", "Hi there", resp.Choices[0].Text)
	}
	if resp.Choices[0].Message.Role != "assistant" || resp.Choices[0].Message.Content != "Hi there" {
		t.Errorf("message changed: %+v", resp.Choices[0].Message)
	}
	if resp.Choices[0].FinishReason != "stop" {
		t.Errorf("finish reason changed: %q", resp.Choices[0].FinishReason)
	}
	if resp.Choices[1].Text != "plain" {
		t.Errorf("choice without message changed: %q", resp.Choices[1].Text)
	}

	Annotate(nil)
}
