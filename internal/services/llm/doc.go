// Package llm wraps the chat-completion API used to structure menu text.
package llm
