// Package finsight provides the chat-orchestration backend for a document
// question-answering assistant over SEC financial filings.
//
// Given a conversation tied to a set of uploaded filings, FinSight builds a
// retrieval-augmented generation pipeline, streams an LLM-generated answer
// back to the caller, and emits structured sub-process records (citations,
// sub-questions, tool calls) as the answer is produced.
//
// # Architecture
//
// A chat turn flows through the following stages:
//
//	Conversation + user message
//	  → index.Store (load or build one vector index per document)
//	  → tools.BuildToolset (per-document citation tools, quantitative API
//	    tools, qualitative/quantitative sub-question engines, top-level pair)
//	  → chat.Agent (tool-using conversational agent, bounded tool calls)
//	  → chat.Stream (full-snapshot answers + sub-process records)
//
// The sole entry point is chat.HandleChatMessage. The HTTP layer, persistence
// schema, document upload, and settings transport are external collaborators;
// this module consumes them through narrow interfaces.
//
// # Using as Go Library
//
// Import specific packages:
//
//	import (
//	    "github.com/finsightai/finsight/pkg/chat"
//	    "github.com/finsightai/finsight/pkg/index"
//	    "github.com/finsightai/finsight/pkg/schema"
//	)
//
// Or run the bundled CLI:
//
//	go install github.com/finsightai/finsight/cmd/finsight@latest
package finsight
