package models

// ChunkType classifies what an indexed chunk was produced from.
type ChunkType string

const (
	ChunkTypeText         ChunkType = "text"
	ChunkTypeImageSummary ChunkType = "image_summary"
)

// PageRecord is one logical page of an extracted source: its plain text plus
// paths to any visual assets pulled out of that page.
type PageRecord struct {
	PageNumber int      `json:"page_number"`
	Text       string   `json:"text"`
	Visuals    []string `json:"visuals,omitempty"`
}

// IndexedChunk is the atomic unit stored in the knowledge base: a bounded
// text fragment or an image description, with its originating page.
type IndexedChunk struct {
	Type    ChunkType `json:"type"`
	Content string    `json:"content"`
	Page    int       `json:"page"`
	// SourceImage names the asset an image summary came from. It is
	// provenance only; the asset file is removed after indexing.
	SourceImage string `json:"source_image,omitempty"`
}

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatTurn is one message in the conversation history.
type ChatTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Answer is the result of one question against the knowledge base.
type Answer struct {
	Text    string         `json:"answer"`
	Sources []IndexedChunk `json:"sources"`
}
