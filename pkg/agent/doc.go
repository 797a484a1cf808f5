// Package agent builds tool-calling agents on top of hitch workflows.
//
// An Agent pairs a Model with Tools. Its model calls and tool calls are
// registered as tasks, so every turn of the loop is checkpointed and a
// resumed thread never calls the model twice for the same step.
//
// Two entrypoints are provided: Chat runs a single agent over a growing
// conversation, and Swarm lets agents hand the conversation to each other
// through transfer_to_<name> tools, pausing for the user whenever the active
// agent answers without handing off.
package agent
