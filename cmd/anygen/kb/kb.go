// Package kbcmder provides the kb command: knowledge base management and
// document ingest through the RAG pipeline.
package kbcmder

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rshanygen/anygen/cmd/anygen/cmdenv"
	"github.com/rshanygen/anygen/pkg/cliui"
	"github.com/rshanygen/anygen/pkg/config"
	"github.com/rshanygen/anygen/pkg/gateway"
	"github.com/rshanygen/anygen/pkg/prefs"
	"github.com/rshanygen/anygen/pkg/utils"
)

const kbLongDesc string = `Manage knowledge bases and ingest documents.

Creating, changing and deleting knowledge bases, and ingesting documents,
require the admin role. Documents are sent to the RAG pipeline (--rag).

Examples:
  anygen kb ls
  anygen kb create handbook --description "Employee handbook"
  anygen kb upload ./docs/onboarding.pdf ./docs/benefits.md
  anygen kb ingest-text --doc-id faq-1 "Office hours are 9 to 5."
  anygen kb search "parental leave" --top-k 3`

const kbShortDesc string = "Manage knowledge bases"

type kbCommander struct {
	gateway string
	rag     string
}

func NewKBCmd() *cobra.Command {
	cmder := &kbCommander{}

	cmd := &cobra.Command{
		Use:   "kb",
		Short: kbShortDesc,
		Long:  kbLongDesc,
	}

	config.AddPersistentStringFlag(cmd, config.Flags, config.FlagGateway, &cmder.gateway)
	config.AddPersistentStringFlag(cmd, config.Flags, config.FlagRAG, &cmder.rag)

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newUpdateCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newUploadCmd())
	cmd.AddCommand(newIngestTextCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newSearchCmd())

	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List knowledge bases",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmdenv.RunAdmin(cmd, func(ctx context.Context, env *cmdenv.Env, gw *gateway.Client) error {
				kbs, err := gw.ListKBs(ctx)
				if err != nil {
					return err
				}
				return printKBs(env.Out, kbs)
			})
		},
	}
}

func newCreateCmd() *cobra.Command {
	var description, embeddingModel string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdenv.RunAdmin(cmd, func(ctx context.Context, env *cmdenv.Env, gw *gateway.Client) error {
				if !cmd.Flags().Changed("embedding-model") {
					store, err := env.Prefs(ctx)
					if err != nil {
						return err
					}
					if _, err := store.Get(ctx, prefs.KeyModelEmbedding, &embeddingModel); err != nil {
						return err
					}
				}

				kb, err := gw.CreateKB(ctx, args[0], description, embeddingModel)
				if err != nil {
					return err
				}
				fmt.Fprintf(env.Out, "%s Created knowledge base %s %s\n",
					cliui.SuccessMark, cliui.NameStyle.Render(kb.Name), cliui.DimStyle.Render(kb.ID))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "Knowledge base description")
	cmd.Flags().StringVar(&embeddingModel, "embedding-model", gateway.DefaultEmbeddingModel, "Embedding model (defaults to the model.embedding setting)")
	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdenv.RunAdmin(cmd, func(ctx context.Context, env *cmdenv.Env, gw *gateway.Client) error {
				kb, err := gw.GetKB(ctx, args[0])
				if err != nil {
					return err
				}

				cliui.KV(env.Out, "id", kb.ID)
				cliui.KV(env.Out, "name", kb.Name)
				cliui.KV(env.Out, "description", kb.Description)
				cliui.KV(env.Out, "embedding model", kb.EmbeddingModel)
				cliui.KV(env.Out, "documents", kb.DocumentCount)
				cliui.KV(env.Out, "created", kb.CreatedAt)
				return nil
			})
		},
	}
}

func newUpdateCmd() *cobra.Command {
	var name, description string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change the name or description of a knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req gateway.UpdateKBRequest
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("description") {
				req.Description = &description
			}
			if req.Name == nil && req.Description == nil {
				return fmt.Errorf("nothing to update: pass --name or --description")
			}

			return cmdenv.RunAdmin(cmd, func(ctx context.Context, env *cmdenv.Env, gw *gateway.Client) error {
				kb, err := gw.UpdateKB(ctx, args[0], req)
				if err != nil {
					return err
				}
				fmt.Fprintf(env.Out, "%s Updated knowledge base %s\n", cliui.SuccessMark, cliui.NameStyle.Render(kb.Name))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a knowledge base",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdenv.RunAdmin(cmd, func(ctx context.Context, env *cmdenv.Env, gw *gateway.Client) error {
				if err := gw.DeleteKB(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(env.Out, "%s Deleted knowledge base %s\n", cliui.SuccessMark, args[0])
				return nil
			})
		},
	}
}

func printKBs(w io.Writer, kbs []gateway.KnowledgeBase) error {
	if len(kbs) == 0 {
		fmt.Fprintln(w, cliui.DimStyle.Render("No knowledge bases."))
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDOCUMENTS\tMODEL\tDESCRIPTION")
	for _, kb := range kbs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			kb.ID, kb.Name, kb.DocumentCount, kb.EmbeddingModel, utils.Truncate(kb.Description, 40))
	}
	return tw.Flush()
}
