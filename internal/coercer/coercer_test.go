package coercer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aios/organizer/internal/orgerrors"
)

// fakeChatter replays a scripted sequence of responses, one per call, used
// to drive the retry loop deterministically.
type fakeChatter struct {
	responses []string
	calls     int
	prompts   []string
}

func (f *fakeChatter) Chat(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.calls >= len(f.responses) {
		return "", assertNeverCalled{}
	}
	r := f.responses[f.calls]
	f.calls++
	return r, nil
}

type assertNeverCalled struct{}

func (assertNeverCalled) Error() string { return "fakeChatter: ran out of scripted responses" }

func noSleep(d time.Duration) {}

func TestCoerce_SucceedsFirstTry(t *testing.T) {
	chat := &fakeChatter{responses: []string{`{"title":"Q1 Sales Report","summary":"...","category":"Reports","tags":["finance"]}`}}

	obj, err := Coerce(context.Background(), chat, "analyze", Options{Schema: SingleCall, sleep: noSleep})
	require.NoError(t, err)
	assert.Equal(t, "Q1 Sales Report", obj["title"])
	assert.Equal(t, 1, chat.calls)
}

func TestCoerce_StripsMarkdownFence(t *testing.T) {
	chat := &fakeChatter{responses: []string{"```json\n{\"title\":\"x\",\"summary\":\"y\",\"category\":\"z\",\"tags\":[]}\n```"}}

	obj, err := Coerce(context.Background(), chat, "analyze", Options{Schema: SingleCall, sleep: noSleep})
	require.NoError(t, err)
	assert.Equal(t, "x", obj["title"])
}

func TestCoerce_RecoversAfterRetry(t *testing.T) {
	chat := &fakeChatter{responses: []string{
		`not json at all`,
		`{"title":"recovered","summary":"s","category":"c","tags":["a"]}`,
	}}

	obj, err := Coerce(context.Background(), chat, "analyze", Options{Schema: SingleCall, sleep: noSleep})
	require.NoError(t, err)
	assert.Equal(t, "recovered", obj["title"])
	assert.Equal(t, 2, chat.calls)
	// The second prompt must carry the first failure's context.
	assert.Contains(t, chat.prompts[1], "previous attempts failed")
}

func TestCoerce_ExhaustsAttemptBudget(t *testing.T) {
	chat := &fakeChatter{responses: []string{"garbage", "garbage", "garbage"}}

	_, err := Coerce(context.Background(), chat, "analyze", Options{
		Schema:      SingleCall,
		MaxAttempts: 3,
		sleep:       noSleep,
	})
	require.Error(t, err)
	assert.True(t, orgerrors.Is(err, orgerrors.KindCoerceFailed))
	var failed *FailedError
	require.ErrorAs(t, err, &failed)
	assert.Len(t, failed.Attempts, 3)
}

func TestCoerce_EnforcesAllowedValues(t *testing.T) {
	chat := &fakeChatter{responses: []string{
		`{"selectedFolderPath":"Invoices","folderConfidence":0.9}`,
		`{"selectedFolderPath":"Contracts","folderConfidence":0.9}`,
	}}

	obj, err := Coerce(context.Background(), chat, "select folder", Options{
		Schema:        FolderSelection,
		sleep:         noSleep,
		AllowedValues: map[string][]string{"selectedFolderPath": {"Contracts", "Reports/Financial", "Personal"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Contracts", obj["selectedFolderPath"])
	assert.Equal(t, 2, chat.calls)
}

func TestCoerce_ProviderErrorNotRetried(t *testing.T) {
	chat := &erroringChatter{}

	_, err := Coerce(context.Background(), chat, "analyze", Options{Schema: SingleCall, sleep: noSleep})
	require.Error(t, err)
	assert.True(t, orgerrors.Is(err, orgerrors.KindProvider))
	assert.Equal(t, 1, chat.calls)
}

type erroringChatter struct{ calls int }

func (e *erroringChatter) Chat(context.Context, string) (string, error) {
	e.calls++
	return "", assertNeverCalled{}
}

func TestExtractJSONSpan_NestedBraces(t *testing.T) {
	span, err := extractJSONSpan(`prose before {"a":{"b":1},"c":"}"} prose after`)
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"b":1},"c":"}"}`, span)
}

func TestNextPrompt_IsPure(t *testing.T) {
	history := []Attempt{{N: 1, RawText: "bad", Err: assertNeverCalled{}}}
	a := NextPrompt("base", history)
	b := NextPrompt("base", history)
	assert.Equal(t, a, b)
	assert.Contains(t, a, "base")
	assert.Contains(t, a, "bad")
}
