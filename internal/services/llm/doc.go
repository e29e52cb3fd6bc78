// Package llm provides a minimal client for OpenAI-compatible chat
// completion endpoints, used by the lecture summary pass.
package llm
