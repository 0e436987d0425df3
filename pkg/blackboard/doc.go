// # Overview
//
// The blackboard is the shared state of an HRI instance. Components that never
// talk to each other directly (the serving loop, the CLI, resolution engines in
// other processes) cooperate by reading and writing well-defined records in Redis.
//
// # Core Concepts
//
// Requests are published as JSON on the request events channel and picked up by
// the serving loop. Responses travel back on the response events channel; the
// final response of each request is also stored for late readers.
//
// Resolution contexts are hashes of token -> value shared by every handler in a
// request's continuation chain. The Client implements the resolution store
// interface directly, so a chain can span processes.
//
// Availability records track whether a person is around, with a decaying score.
// Updates are read-modify-write transactions under WATCH/MULTI.
//
// Facts are the belief system: attribute hashes grouped by type. The Client
// implements hri.BeliefSystem.
//
// # Usage Example
//
//	client, err := blackboard.NewClient(&redis.Options{Addr: "localhost:6379"}, "default")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	req := &hri.Request{Verbal: &hri.VerbalRequest{RawText: "hello robot"}}
//	if err := client.PublishRequest(ctx, req); err != nil {
//		log.Fatal(err)
//	}
//
// # Redis Schema
//
// All Redis keys follow the pattern: hri:{instance_name}:{entity}:{id}
//
// Resolution contexts: hri:{instance_name}:resolution:{context_id}
// Availability: hri:{instance_name}:availability:{person_id}
// Availability index: hri:{instance_name}:availability_index
// Facts: hri:{instance_name}:fact:{fact_type}:{fact_id}
// Fact index: hri:{instance_name}:facts:{fact_type}
// Final responses: hri:{instance_name}:response:{request_id}
//
// Pub/Sub channels: hri:{instance_name}:{event_type}_events
//
// Request Events: hri:{instance_name}:request_events
// Response Events: hri:{instance_name}:response_events
package blackboard
