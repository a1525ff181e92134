// Package language turns the free-form language a user asks for ("fr",
// "pt-BR", "German") into the English name used in LLM prompts.
package language
