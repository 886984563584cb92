// Package orchestrator runs the chat pipeline that answers one message.
//
// # Overview
//
// A Pipeline is an explicit, ordered list of named steps. Each request
// walks the list once, in order, with no retries:
//
//	validate_request → encode_query → retrieve → load_recent_messages →
//	assemble_request → persist_user_turn → generate → validate_reply →
//	encode_reply → persist_assistant_turn → report_budget
//
// State.CanTransition enforces the order. Every step records a StepResult
// and emits a span, a debug log line and a duration sample on the
// ragbrain.pipeline.step.duration histogram.
//
// # Failure policy
//
// A failing step stops the pipeline and its error is returned as a
// *v1.Error. Work already done is not undone: the user turn is persisted
// before generation, so a generation failure leaves it stored. The one
// exception is encode_reply, which is best effort; its failures are logged
// and the assistant turn is stored without an embedding.
//
// # Usage
//
//	p, err := orchestrator.NewPipeline(cfg, gatewayClient, engine, turns)
//	resp, err := p.Execute(ctx, orchestrator.Request{
//	    UserID: "u1", BusinessID: "b1", Message: "hi", Credential: key,
//	})
package orchestrator
