// Package openaicompat implements llm.Provider over the OpenAI Chat
// Completions HTTP contract.
//
// Any service exposing /v1/chat/completions (OpenAI, DeepSeek, Qwen, local
// gateways) can be used by pointing BaseURL at it. Transport failures,
// non-2xx statuses and undecodable bodies are mapped to *llm.Error so the
// conversation engine can classify them as generation failures.
//
// Usage:
//
//	p := openaicompat.New(openaicompat.Config{
//	    APIKey:       os.Getenv("OPENAI_API_KEY"),
//	    DefaultModel: "gpt-4o-mini",
//	}, logger)
//	defer p.Close()
package openaicompat
