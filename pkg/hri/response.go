package hri

// SayAction builds a "say" descriptor.
func SayAction(text, emotion string) Action {
	if emotion == "" {
		emotion = EmotionNatural
	}
	return Action{
		Kind: ActionSay,
		Params: map[string]string{
			"text":    text,
			"emotion": emotion,
		},
	}
}

// SayResponse is a successful response that speaks one sentence.
func SayResponse(text, emotion string) Response {
	if emotion == "" {
		emotion = EmotionNatural
	}
	return Response{
		Actions:     []Action{SayAction(text, emotion)},
		Emotion:     emotion,
		Success:     true,
		MissingInfo: []string{},
	}
}

// Failure is an unsuccessful response with no actions.
func Failure(reason string, missing ...string) Response {
	if missing == nil {
		missing = []string{}
	}
	return Response{
		Actions:     []Action{},
		Emotion:     EmotionNeutral,
		Reason:      reason,
		Success:     false,
		MissingInfo: missing,
	}
}

// Normalize replaces nil slices with empty ones so the JSON shape is stable.
func (r Response) Normalize() Response {
	if r.Actions == nil {
		r.Actions = []Action{}
	}
	if r.MissingInfo == nil {
		r.MissingInfo = []string{}
	}
	for i := range r.Actions {
		if r.Actions[i].Params == nil {
			r.Actions[i].Params = map[string]string{}
		}
	}
	return r
}
