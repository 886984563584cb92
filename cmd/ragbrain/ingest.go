package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/ragbrain/internal/ingest"
	v1 "github.com/fyrsmithlabs/ragbrain/pkg/api/v1"
)

// maxIngestBytes bounds a single document read from a file or stdin.
const maxIngestBytes = 8 << 20

var (
	ingestBusiness string
	ingestTitle    string
	ingestDocID    string
	ingestKey      string
	ingestMetadata string
)

func init() {
	ingestCmd.Flags().StringVar(&ingestBusiness, "business", "", "business id that owns the document (required)")
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "document title")
	ingestCmd.Flags().StringVar(&ingestDocID, "doc-id", "", "caller-supplied document id")
	ingestCmd.Flags().StringVar(&ingestKey, "key", os.Getenv("RAGBRAIN_GATEWAY_KEY"), "gateway key used for embedding")
	ingestCmd.Flags().StringVar(&ingestMetadata, "metadata", "", "JSON object stored with the document")
	_ = ingestCmd.MarkFlagRequired("business")
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [file|-]",
	Short: "Embed and store a tenant document",
	Long: `Embed a document through the gateway and store it in the configured
document backend. Reads stdin when the argument is "-" or missing.

Examples:
  ragbrain ingest --business acme --title "Opening hours" hours.md
  cat faq.txt | ragbrain ingest --business acme --key $KEY -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	content, err := readDocument(cmd, args)
	if err != nil {
		return err
	}

	var metadata map[string]any
	if ingestMetadata != "" {
		if err := json.Unmarshal([]byte(ingestMetadata), &metadata); err != nil {
			return fmt.Errorf("--metadata must be a JSON object: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	if err := a.openStores(ctx); err != nil {
		return err
	}
	gw, err := a.gateway()
	if err != nil {
		return err
	}
	svc, err := ingest.NewService(ingest.Config{
		Provider:  a.config.Gateway.Embed.Provider,
		Model:     a.config.Gateway.Embed.Model,
		Dimension: a.config.Gateway.Embed.Dimension,
	}, gw, a.stores.Documents, a.logger)
	if err != nil {
		return err
	}

	doc, err := svc.Ingest(ctx, ingest.Request{
		BusinessID: ingestBusiness,
		Content:    string(content),
		Title:      ingestTitle,
		DocID:      ingestDocID,
		Metadata:   metadata,
		Credential: ingestKey,
	})
	if err != nil {
		return fmt.Errorf("ingest failed (HTTP %d): %s", v1.StatusOf(err), v1.MessageOf(err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "stored document %s (embedded: %t)\n", doc.ID, doc.Embedding != nil)
	return nil
}

func readDocument(cmd *cobra.Command, args []string) ([]byte, error) {
	var r io.Reader = cmd.InOrStdin()
	name := "stdin"
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer f.Close()
		r, name = f, args[0]
	}
	content, err := io.ReadAll(io.LimitReader(r, maxIngestBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(content) > maxIngestBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes", name, maxIngestBytes)
	}
	return content, nil
}
