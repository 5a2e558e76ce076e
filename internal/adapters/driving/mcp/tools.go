package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// QueryInput is the input schema for the query and ask tools.
type QueryInput struct {
	Question string `json:"question" jsonschema:"the question or keywords to search for"`
	K        int    `json:"k,omitempty" jsonschema:"maximum number of passages to return (default from config)"`
	Mode     string `json:"mode,omitempty" jsonschema:"lexical, semantic or hybrid (default hybrid)"`
}

// QueryOutput is the output schema for the query tool.
type QueryOutput struct {
	Mode     string         `json:"mode"`
	Results  []ResultOutput `json:"results"`
	Count    int            `json:"count"`
	Warnings []string       `json:"warnings"`
}

// ResultOutput represents a single ranked passage.
type ResultOutput struct {
	Document    string  `json:"document"`
	Citation    string  `json:"citation"`
	Page        int     `json:"page,omitempty"`
	Section     string  `json:"section,omitempty"`
	ChunkIndex  int     `json:"chunk_index"`
	Score       float64 `json:"score"`
	Lexical     float64 `json:"lexical_score"`
	Semantic    float64 `json:"semantic_score"`
	StartOffset int     `json:"start_offset"`
	EndOffset   int     `json:"end_offset"`
	Content     string  `json:"content"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer  string         `json:"answer"`
	Sources []ResultOutput `json:"sources"`
}

// IngestInput is the input schema for the ingest tool.
type IngestInput struct {
	Name     string            `json:"name" jsonschema:"unique document name, e.g. a file name"`
	Text     string            `json:"text" jsonschema:"plain text content of the document"`
	Metadata map[string]string `json:"metadata,omitempty" jsonschema:"optional string metadata stored with the document"`
}

// DocumentOutput summarises one document.
type DocumentOutput struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	ChunkCount int    `json:"chunk_count"`
	TextLength int    `json:"text_length"`
	UploadedAt string `json:"uploaded_at"`
}

// ListInput is the (empty) input schema for the list_documents and stats tools.
type ListInput struct{}

// ListOutput is the output schema for the list_documents tool.
type ListOutput struct {
	Documents []DocumentOutput `json:"documents"`
	Count     int              `json:"count"`
}

// DeleteInput is the input schema for the delete_document tool.
type DeleteInput struct {
	Name string `json:"name" jsonschema:"name of the document to delete"`
}

// DeleteOutput is the output schema for the delete_document tool.
type DeleteOutput struct {
	Deleted bool   `json:"deleted"`
	Name    string `json:"name"`
}

// StatsOutput is the output schema for the stats tool.
type StatsOutput struct {
	Tenant     string `json:"tenant"`
	Documents  int    `json:"documents"`
	Chunks     int    `json:"chunks"`
	Terms      int    `json:"terms"`
	Vectors    int    `json:"vectors"`
	Dimensions int    `json:"dimensions"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "query",
		Description: "Search the indexed documents and return ranked passages with citations",
	}, s.handleQuery)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the indexed documents using the configured LLM",
	}, s.handleAsk)

	if s.ports.Document != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ingest",
			Description: "Add a plain text document to the index. Names must be unique",
		}, s.handleIngest)

		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "list_documents",
			Description: "List the indexed documents",
		}, s.handleList)

		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "delete_document",
			Description: "Delete a document and all its passages from the index",
		}, s.handleDelete)
	}

	if s.ports.Tenant != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "stats",
			Description: "Report document, passage and index counts",
		}, s.handleStats)
	}
}

func queryOptions(input QueryInput) (domain.QueryOptions, error) {
	mode, err := domain.ParseSearchMode(input.Mode)
	if err != nil {
		return domain.QueryOptions{}, err
	}
	if input.K < 0 {
		return domain.QueryOptions{}, fmt.Errorf("%w: k must not be negative", domain.ErrValidation)
	}
	return domain.QueryOptions{Mode: mode, K: input.K}, nil
}

// handleQuery handles the query tool invocation.
func (s *Server) handleQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, QueryOutput, error) {
	opts, err := queryOptions(input)
	if err != nil {
		return nil, QueryOutput{}, err
	}

	resp, err := s.ports.Search.Query(ctx, s.tenant, input.Question, opts)
	if err != nil {
		return nil, QueryOutput{}, err
	}

	output := QueryOutput{
		Mode:     string(resp.Mode),
		Results:  toResults(resp.Results),
		Count:    len(resp.Results),
		Warnings: append([]string{}, resp.Warnings...),
	}
	return nil, output, nil
}

// handleAsk handles the ask tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, AskOutput, error) {
	opts, err := queryOptions(input)
	if err != nil {
		return nil, AskOutput{}, err
	}

	answer, err := s.ports.Search.Ask(ctx, s.tenant, input.Question, opts)
	if errors.Is(err, domain.ErrLLMUnavailable) {
		return nil, AskOutput{}, fmt.Errorf("%w: use the query tool instead", err)
	}
	if err != nil {
		return nil, AskOutput{}, err
	}

	return nil, AskOutput{Answer: answer.Text, Sources: toResults(answer.Sources)}, nil
}

// handleIngest handles the ingest tool invocation.
func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, DocumentOutput, error) {
	summary, err := s.ports.Document.Ingest(ctx, s.tenant, input.Name, input.Text, input.Metadata)
	if err != nil {
		return nil, DocumentOutput{}, err
	}
	return nil, toDocument(*summary), nil
}

// handleList handles the list_documents tool invocation.
func (s *Server) handleList(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListInput,
) (*mcp.CallToolResult, ListOutput, error) {
	docs, err := s.ports.Document.List(ctx, s.tenant)
	if err != nil {
		return nil, ListOutput{}, err
	}

	output := ListOutput{
		Documents: make([]DocumentOutput, len(docs)),
		Count:     len(docs),
	}
	for i := range docs {
		output.Documents[i] = toDocument(docs[i])
	}
	return nil, output, nil
}

// handleDelete handles the delete_document tool invocation.
func (s *Server) handleDelete(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DeleteInput,
) (*mcp.CallToolResult, DeleteOutput, error) {
	if err := s.ports.Document.Delete(ctx, s.tenant, input.Name); err != nil {
		return nil, DeleteOutput{}, err
	}
	return nil, DeleteOutput{Deleted: true, Name: input.Name}, nil
}

// handleStats handles the stats tool invocation.
func (s *Server) handleStats(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListInput,
) (*mcp.CallToolResult, StatsOutput, error) {
	st, err := s.ports.Tenant.Stats(ctx, s.tenant)
	if err != nil {
		return nil, StatsOutput{}, err
	}
	return nil, StatsOutput{
		Tenant:     st.Tenant,
		Documents:  st.Documents,
		Chunks:     st.Chunks,
		Terms:      st.Terms,
		Vectors:    st.Vectors,
		Dimensions: st.Dimensions,
	}, nil
}

func toResults(results []domain.QueryResult) []ResultOutput {
	out := make([]ResultOutput, len(results))
	for i := range results {
		r := &results[i]
		out[i] = ResultOutput{
			Document:    r.Citation.DocumentName,
			Citation:    r.Citation.String(),
			Page:        r.Citation.Page,
			Section:     r.Citation.Section,
			ChunkIndex:  r.Citation.ChunkIndex,
			Score:       r.Score,
			Lexical:     r.LexicalScore,
			Semantic:    r.SemanticScore,
			StartOffset: r.Citation.StartOffset,
			EndOffset:   r.Citation.EndOffset,
			Content:     r.Content,
		}
	}
	return out
}

func toDocument(d domain.DocumentSummary) DocumentOutput {
	return DocumentOutput{
		ID:         d.ID,
		Name:       d.Name,
		Status:     string(d.Status),
		ChunkCount: d.ChunkCount,
		TextLength: d.TextLength,
		UploadedAt: d.UploadedAt.UTC().Format(time.RFC3339),
	}
}
