package kbcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rshanygen/anygen/cmd/anygen/cmdenv"
	"github.com/rshanygen/anygen/pkg/cliui"
	"github.com/rshanygen/anygen/pkg/gateway"
	"github.com/rshanygen/anygen/pkg/utils"
)

func newUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>...",
		Short: "Ingest documents into the active collection",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdenv.RunAdmin(cmd, func(ctx context.Context, env *cmdenv.Env, gw *gateway.Client) error {
				var errs []error
				for _, path := range args {
					var err error
					if f, ok := env.Out.(*os.File); ok && cliui.IsTerminal(f) {
						err = cliui.Step(f, "Uploading "+path, func() error {
							_, err := uploadFile(ctx, gw, path)
							return err
						})
					} else {
						err = reportUpload(env.Out, path, func() (*gateway.IngestResult, error) {
							return uploadFile(ctx, gw, path)
						})
					}
					if err != nil {
						errs = append(errs, fmt.Errorf("%s: %w", path, err))
					}
				}

				if len(errs) > 0 {
					return fmt.Errorf("%d of %d uploads failed: %w", len(errs), len(args), errors.Join(errs...))
				}
				return nil
			})
		},
	}
}

// reportUpload prints one result line per file for non-interactive output.
func reportUpload(w io.Writer, path string, upload func() (*gateway.IngestResult, error)) error {
	res, err := upload()
	if err != nil {
		fmt.Fprintf(w, "%s %s %s\n", cliui.FailMark, path, cliui.DimStyle.Render(err.Error()))
		return err
	}

	fmt.Fprintf(w, "%s %s %s\n", cliui.SuccessMark, path,
		cliui.DimStyle.Render(fmt.Sprintf("(%d chunks)", res.ChunksCreated)))
	return nil
}

func uploadFile(ctx context.Context, gw *gateway.Client, path string) (*gateway.IngestResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	res, err := gw.UploadFile(ctx, path, f)
	if err != nil {
		return nil, err
	}
	if res.Status == "error" || res.Error != "" {
		return nil, fmt.Errorf("ingest failed: %s", firstNonEmpty(res.Error, res.Message, res.Status))
	}
	return res, nil
}

func newIngestTextCmd() *cobra.Command {
	var (
		docID    string
		fromFile string
		metadata map[string]string
	)

	cmd := &cobra.Command{
		Use:   "ingest-text [text]",
		Short: "Ingest raw text as a document",
		Long: `Ingest raw text as a document.

The text is taken from the argument, or from --file ("-" reads stdin).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd.InOrStdin(), args, fromFile)
			if err != nil {
				return err
			}

			meta := make(map[string]any, len(metadata))
			for k, v := range metadata {
				meta[k] = v
			}

			return cmdenv.RunAdmin(cmd, func(ctx context.Context, env *cmdenv.Env, gw *gateway.Client) error {
				res, err := gw.IngestText(ctx, text, docID, meta)
				if err != nil {
					return err
				}
				if res.Status == "error" || res.Error != "" {
					return fmt.Errorf("ingest failed: %s", firstNonEmpty(res.Error, res.Message, res.Status))
				}

				fmt.Fprintf(env.Out, "%s Ingested %s %s\n", cliui.SuccessMark, cliui.NameStyle.Render(docID),
					cliui.DimStyle.Render(fmt.Sprintf("(%d chunks)", res.ChunksCreated)))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&docID, "doc-id", "", "Document id (required)")
	cmd.Flags().StringVarP(&fromFile, "file", "f", "", "Read the text from a file, - for stdin")
	cmd.Flags().StringToStringVar(&metadata, "meta", nil, "Metadata key=value pairs")
	_ = cmd.MarkFlagRequired("doc-id")
	return cmd
}

func readText(stdin io.Reader, args []string, fromFile string) (string, error) {
	switch {
	case len(args) == 1 && fromFile != "":
		return "", fmt.Errorf("pass the text as an argument or with --file, not both")
	case len(args) == 1:
		return args[0], nil
	case fromFile == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(b), nil
	case fromFile != "":
		b, err := os.ReadFile(fromFile)
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("no text given: pass it as an argument or with --file")
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the RAG pipeline status and active collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmdenv.RunGateway(cmd, func(ctx context.Context, env *cmdenv.Env, gw *gateway.Client) error {
				st, err := gw.CollectionStatus(ctx)
				if err != nil {
					return err
				}

				cliui.KV(env.Out, "service", st.Service)
				cliui.KV(env.Out, "status", st.Status)
				cliui.KV(env.Out, "collection", st.Collection)
				return nil
			})
		},
	}
}

func newSearchCmd() *cobra.Command {
	var req gateway.SearchRequest

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the active collection",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Query = strings.Join(args, " ")

			return cmdenv.RunGateway(cmd, func(ctx context.Context, env *cmdenv.Env, gw *gateway.Client) error {
				results, err := gw.Search(ctx, req)
				if err != nil {
					return err
				}
				return printResults(env.Out, results)
			})
		},
	}
	cmd.Flags().IntVarP(&req.TopK, "top-k", "k", 5, "Number of chunks to return")
	cmd.Flags().BoolVar(&req.Rerank, "rerank", false, "Rerank results")
	return cmd
}

func printResults(w io.Writer, results []gateway.SearchResult) error {
	if len(results) == 0 {
		fmt.Fprintln(w, cliui.DimStyle.Render("No matches."))
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCORE\tCHUNK\tCONTENT")
	for _, r := range results {
		content := strings.Join(strings.Fields(r.Content), " ")
		fmt.Fprintf(tw, "%.3f\t%s\t%s\n", r.Score, r.ChunkID, utils.Truncate(content, 80))
	}
	return tw.Flush()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return "unknown error"
}
