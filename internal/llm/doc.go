// Package llm generates answers and summaries with a chat model.
//
// Client is the streaming provider abstraction. ChatClient speaks the
// OpenAI-compatible server-sent events protocol used by Groq and OpenAI;
// GeminiClient uses the genai SDK. Service wraps a Client with the answer and
// summary prompts:
//
//	svc := llm.NewService(client)
//	for fragment := range svc.GenerateResponse(ctx, question, contextText) {
//		fmt.Print(fragment)
//	}
//
// Transient HTTP failures (429 and 5xx) are retried with exponential backoff
// before the first token. Once streaming has started an error ends the stream.
package llm
