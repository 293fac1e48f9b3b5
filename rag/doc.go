// Package rag holds the dynamic retrieval-augmented-generation state of the
// voice agent: the process-wide context store, prompt assembly, and the
// Redis-backed knowledge retriever.
package rag
