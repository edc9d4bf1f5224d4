package models

const (
	// Metadata keys stored alongside every embedded chunk.
	MetaType        = "type"
	MetaPage        = "page"
	MetaSourceImage = "source_image"
)

var (
	RewritePromptTemplate = `Given a chat history and the latest user question, formulate a standalone question which can be understood without the chat history. Do NOT answer the question, just reformulate it if needed and otherwise return it as is.`

	AnswerPromptTemplate = `You are a helpful assistant for answering questions about a document. Your answers should be concise and clear. Use ONLY the following retrieved context to answer the question. If you don't know the answer, just say that you don't know. Do not make up an answer.

Context:
%s`

	DescribeImagePrompt = `Describe this image in detail. If it is a chart or graph, explain what it shows and its key takeaways. If it is a photo or diagram, describe the main elements.`
)
