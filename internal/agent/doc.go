// Package agent orchestrates ingestion and question answering.
//
// An Agent wires the PDF extractor, a chunking strategy, the vector store,
// a retrieval strategy and the LLM service together:
//
//	a, err := agent.New(ctx, cfg)
//	ok := a.ProcessDocument(ctx, "manual.pdf")
//	for fragment := range a.AskQuestionStream(ctx, "What is the warranty period?") {
//		fmt.Print(fragment)
//	}
//
// Failures during ingestion and answering never escape as errors: ingestion
// reports false and answering yields an answer-shaped message. Only
// construction can fail, for example when the LLM credential is missing.
//
// # Concurrency
//
// The vector store handle is replaced by ClearKnowledgeBase, so mutations
// hold the write lock and questions take the read lock only long enough to
// snapshot the handle. TryProcessDocuments rejects overlapping ingestion
// requests instead of queueing them.
package agent
