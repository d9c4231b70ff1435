// Package tokens estimates token counts without a tokenizer.
//
// The backend does not report token usage, so every usage figure returned
// to clients is an estimate: whitespace-separated words times a fixed
// factor (0.75 for chat and completions, 1.3 for embeddings). Reasoning
// models additionally get a reasoning token estimate derived from their
// thinking progress output.
//
// # Usage
//
//	est := tokens.NewWordEstimator(tokens.ChatTokensPerWord)
//	prompt := est.EstimateMessages(req.Messages)
//	completion := est.EstimateText(reply)
//	usage := tokens.NewUsage(prompt, completion)
package tokens
