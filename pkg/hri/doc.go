// Package hri defines the data model shared by every component that resolves
// human-robot interaction requests.
//
// # Overview
//
// A person's utterance or gesture is reduced upstream into a typed Request: a
// verbal part (raw text plus the pattern it matched) and/or a visual part
// (gesture label plus pose data). The resolution pipeline turns a Request into
// a Response: an ordered list of abstract actions, an emotion, a reason, a
// success flag and a list of missing information.
//
// Actions are descriptors only. A "say" action carries the text and emotion to
// speak; execution belongs to the actuation layer.
//
// # Usage Example
//
//	req := &hri.Request{
//		Person: &hri.Person{ID: "p1", Name: "alice"},
//		Verbal: &hri.VerbalRequest{RawText: "bring the bottle to bob"},
//	}
//	if err := req.Validate(); err != nil {
//		log.Fatal(err)
//	}
//
//	resp := hri.SayResponse("On my way", hri.EmotionHappy)
//	data, _ := json.Marshal(resp)
//	// {"actions":[{"kind":"say","params":{"emotion":"happy","text":"On my way"}}],...}
//
// # Belief System
//
// BeliefSystem is the narrow query interface through which handlers read and
// update what the robot knows about people, objects and itself. Facts are
// opaque attribute maps.
package hri
