package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/normalisers"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Add documents to the index",
	Long: `Chunks, embeds and indexes plain text or Markdown files.

Each file becomes a document named after its base name unless --name is
given. Use "-" to read from stdin (requires --name), or --text to ingest
a string directly. Names are unique per tenant: delete a document before
ingesting a new version.`,
	RunE: runIngest,
}

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage indexed documents",
	Long:  `List, inspect or delete the documents of a tenant.`,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentChunksCmd = &cobra.Command{
	Use:   "chunks [name]",
	Short: "Show the passages of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentChunks,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Delete a document and its index entries",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDelete,
}

// Ingest flags.
var (
	ingestName     string
	ingestText     string
	ingestMetadata map[string]string
)

func init() {
	ingestCmd.Flags().StringVar(&ingestName, "name", "", "document name (single input only)")
	ingestCmd.Flags().StringVar(&ingestText, "text", "", "ingest this text instead of files")
	ingestCmd.Flags().StringToStringVar(&ingestMetadata, "meta", nil, "metadata as key=value pairs (with --text)")
	rootCmd.AddCommand(ingestCmd)

	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentChunksCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	rootCmd.AddCommand(documentCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}
	tenant, err := currentTenant()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var summaries []*domain.DocumentSummary
	switch {
	case ingestText != "":
		if len(args) > 0 {
			return fmt.Errorf("%w: --text cannot be combined with files", domain.ErrValidation)
		}
		if ingestName == "" {
			return fmt.Errorf("%w: --text requires --name", domain.ErrValidation)
		}
		s, err := documentService.Ingest(ctx, tenant, ingestName, ingestText, ingestMetadata)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", ingestName, err)
		}
		summaries = append(summaries, s)

	case len(args) == 0:
		return fmt.Errorf("%w: give at least one file, - for stdin, or --text", domain.ErrValidation)

	default:
		if ingestName != "" && len(args) > 1 {
			return fmt.Errorf("%w: --name needs exactly one input", domain.ErrValidation)
		}
		for _, arg := range args {
			s, err := ingestInput(cmd, tenant, arg)
			if err != nil {
				return err
			}
			summaries = append(summaries, s)
		}
	}

	if wantJSON(cmd) {
		return printJSON(cmd, summaries)
	}
	w := cmd.OutOrStdout()
	for _, s := range summaries {
		fmt.Fprintf(w, "Ingested %s: %d chunks, %d characters\n", s.Name, s.ChunkCount, s.TextLength)
	}
	return nil
}

func ingestInput(cmd *cobra.Command, tenant, arg string) (*domain.DocumentSummary, error) {
	var (
		data []byte
		err  error
		name = ingestName
	)
	if arg == "-" {
		if name == "" {
			return nil, fmt.Errorf("%w: reading stdin requires --name", domain.ErrValidation)
		}
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		if name == "" {
			name = filepath.Base(arg)
		}
		data, err = os.ReadFile(arg)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", arg, err)
	}

	mimeType := normalisers.DetectMIMEType(name, data)
	s, err := documentService.IngestFile(cmd.Context(), tenant, name, data, mimeType)
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", name, err)
	}
	return s, nil
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}
	tenant, err := currentTenant()
	if err != nil {
		return err
	}

	docs, err := documentService.List(cmd.Context(), tenant)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if wantJSON(cmd) {
		if docs == nil {
			docs = []domain.DocumentSummary{}
		}
		return printJSON(cmd, docs)
	}

	w := cmd.OutOrStdout()
	if len(docs) == 0 {
		fmt.Fprintf(w, "No documents found for tenant: %s\n", tenant)
		return nil
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "NAME\tSTATUS\tCHUNKS\tCHARS\tUPLOADED")
	for i := range docs {
		d := &docs[i]
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
			d.Name, d.Status, d.ChunkCount, d.TextLength, d.UploadedAt.Local().Format("2006-01-02 15:04"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nTotal: %d documents\n", len(docs))
	return nil
}

func runDocumentChunks(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}
	tenant, err := currentTenant()
	if err != nil {
		return err
	}

	chunks, err := documentService.GetChunks(cmd.Context(), tenant, args[0])
	if err != nil {
		return fmt.Errorf("failed to get chunks: %w", err)
	}

	if wantJSON(cmd) {
		type chunkInfo struct {
			Index       int    `json:"index"`
			Page        int    `json:"page,omitempty"`
			Section     string `json:"section,omitempty"`
			StartOffset int    `json:"start_offset"`
			EndOffset   int    `json:"end_offset"`
			Content     string `json:"content"`
		}
		infos := make([]chunkInfo, len(chunks))
		for i := range chunks {
			c := &chunks[i]
			infos[i] = chunkInfo{c.Index, c.Page, c.Section, c.StartOffset, c.EndOffset, c.Content}
		}
		return printJSON(cmd, infos)
	}

	w := cmd.OutOrStdout()
	for i := range chunks {
		c := &chunks[i]
		fmt.Fprintf(w, "--- chunk %d [%d:%d]", c.Index, c.StartOffset, c.EndOffset)
		if c.Page > 0 {
			fmt.Fprintf(w, " page %d", c.Page)
		}
		if c.Section != "" {
			fmt.Fprintf(w, " section %q", c.Section)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, c.Content)
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Total: %d chunks\n", len(chunks))
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}
	tenant, err := currentTenant()
	if err != nil {
		return err
	}

	if err := documentService.Delete(cmd.Context(), tenant, args[0]); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
	return nil
}
