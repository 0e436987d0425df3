package hri

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     *Request
		wantErr string
	}{
		{
			name: "verbal request is valid",
			req:  &Request{Verbal: &VerbalRequest{RawText: "hello"}},
		},
		{
			name: "visual request is valid",
			req:  &Request{Visual: &VisualRequest{Gesture: "wave"}},
		},
		{
			name:    "nil request",
			req:     nil,
			wantErr: "request is nil",
		},
		{
			name:    "empty request",
			req:     &Request{},
			wantErr: "neither a verbal nor a visual part",
		},
		{
			name:    "blank verbal text",
			req:     &Request{Verbal: &VerbalRequest{RawText: "   "}},
			wantErr: "no text and no values",
		},
		{
			name:    "gesture without label",
			req:     &Request{Visual: &VisualRequest{}},
			wantErr: "no gesture",
		},
		{
			name:    "malformed id",
			req:     &Request{ID: "nope", Verbal: &VerbalRequest{RawText: "hi"}},
			wantErr: "invalid request ID",
		},
		{
			name: "uuid id is accepted",
			req:  &Request{ID: uuid.New().String(), Verbal: &VerbalRequest{RawText: "hi"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRequestEnsureID(t *testing.T) {
	req := &Request{Verbal: &VerbalRequest{RawText: "hi"}}
	id := req.EnsureID()
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, req.EnsureID(), "existing id must be kept")
}

func TestRequestUtterance(t *testing.T) {
	assert.Equal(t, "hi", (&Request{Verbal: &VerbalRequest{RawText: "hi"}}).Utterance())
	assert.Equal(t, "wave", (&Request{Visual: &VisualRequest{Gesture: "wave"}}).Utterance())
	assert.Equal(t, "", (&Request{}).Utterance())

	byPattern := &Request{Verbal: &VerbalRequest{Pattern: "bring {object}", Values: map[string]string{"object": "cup"}}}
	assert.Equal(t, "bring {object}", byPattern.Utterance())

	valuesOnly := &Request{Verbal: &VerbalRequest{Values: map[string]string{"object": "cup"}}}
	require.NoError(t, valuesOnly.Validate())
	assert.Equal(t, UnnamedUtterance, valuesOnly.Utterance())
}

func TestPersonLabel(t *testing.T) {
	var nilPerson *Person
	assert.Equal(t, "", nilPerson.Label())
	assert.Equal(t, "p1", (&Person{ID: "p1"}).Label())
	assert.Equal(t, "bob", (&Person{ID: "p1", Name: "bob"}).Label())
}

func TestResponseJSONShape(t *testing.T) {
	resp := SayResponse("hello", "")

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.ElementsMatch(t, []string{"actions", "emotion", "reason", "success", "missing_info"}, keys(decoded))
	assert.Equal(t, true, decoded["success"])
	assert.Equal(t, EmotionNatural, decoded["emotion"])

	actions := decoded["actions"].([]any)
	require.Len(t, actions, 1)
	action := actions[0].(map[string]any)
	assert.Equal(t, "say", action["kind"])
	assert.Equal(t, "hello", action["params"].(map[string]any)["text"])
}

func TestFailure(t *testing.T) {
	resp := Failure("no handler", "bring the bottle")
	assert.False(t, resp.Success)
	assert.Equal(t, "no handler", resp.Reason)
	assert.Equal(t, []string{"bring the bottle"}, resp.MissingInfo)
	assert.NotNil(t, resp.Actions)

	empty := Failure("x")
	assert.NotNil(t, empty.MissingInfo)
	assert.Empty(t, empty.MissingInfo)
}

func TestResponseNormalize(t *testing.T) {
	resp := Response{Actions: []Action{{Kind: ActionMove}}}.Normalize()
	assert.NotNil(t, resp.MissingInfo)
	assert.NotNil(t, resp.Actions[0].Params)

	data, err := json.Marshal(Response{}.Normalize())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"actions":[]`)
	assert.Contains(t, string(data), `"missing_info":[]`)
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestFactMatches(t *testing.T) {
	f := Fact{"id": "b1", "type": "bottle", "color": "Red"}
	assert.True(t, f.Matches(""))
	assert.True(t, f.Matches("red bottle"))
	assert.True(t, f.Matches("b1"))
	assert.False(t, f.Matches("blue bottle"))
	assert.Equal(t, "b1", f.ID())
}
