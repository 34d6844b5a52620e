// Package retriever selects the snippets handed to the language model as
// answer context.
//
// Strategies run against any Searcher (normally the vector store adapter):
//   - basic: TopK most similar snippets
//   - hybrid: CandidateK similar snippets re-ranked by
//     SimilarityWeight*similarity + KeywordWeight*keyword overlap
//   - contextual: ExpansionK results for each query variant, deduplicated by
//     content prefix and ranked by keyword overlap with the original query
//
// Hybrid and contextual fall back to basic on any error. Basic returns its
// error so the caller can decide how to degrade.
//
// Keyword overlap is |Q ∩ C| / |Q| where Q and C are sets of lowercase
// whitespace separated terms.
package retriever
