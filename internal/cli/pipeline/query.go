package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/pdfrag/internal/domain"
)

const previewLength = 200

func QueryCmd() *cobra.Command {
	var (
		topK   int
		source string
	)

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Retrieve the chunks most relevant to a question",
		Long:  "Embeds the question and returns the best matching chunks with their source ids.",
		Example: `  pdfrag query "How did revenue develop?" --top-k 3
  pdfrag query "Which risks are listed?" --source q3.pdf --output`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			ctx := commandContext(cmd)

			rt, err := newRuntime(ctx, runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, span := startCommand(ctx, "query")
			defer span.End()

			result, err := rt.Retrieval.Query(ctx, args[0], topK, source)
			if err != nil {
				return err
			}
			return printQueryResult(os.Stdout, result, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of chunks to retrieve (defaults to TOP_K)")
	cmd.Flags().StringVarP(&source, "source", "s", "", "Only retrieve chunks from this source id")

	return cmd
}

func AskCmd() *cobra.Command {
	var (
		topK   int
		source string
	)

	cmd := &cobra.Command{
		Use:     "ask <question>",
		Short:   "Answer a question from the ingested documents",
		Long:    "Retrieves the best matching chunks and asks the chat model to answer from them.",
		Example: `  pdfrag ask "What was the operating margin in Q3?"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			ctx := commandContext(cmd)

			rt, err := newRuntime(ctx, runtimeOptions{answerer: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, span := startCommand(ctx, "ask")
			defer span.End()

			answer, err := rt.Retrieval.Ask(ctx, args[0], topK, source)
			if err != nil {
				return err
			}
			return printAnswer(os.Stdout, answer, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of chunks to retrieve (defaults to TOP_K)")
	cmd.Flags().StringVarP(&source, "source", "s", "", "Only retrieve chunks from this source id")

	return cmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func printQueryResult(w io.Writer, result *domain.RetrievalResult, outputJSON bool) error {
	if outputJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		_, err := fmt.Fprintln(w, string(output))
		return err
	}

	if result.Len() == 0 {
		fmt.Fprintln(w, "No matching chunks found.")
		return nil
	}

	fmt.Fprintf(w, "Found %d chunks:\n\n", result.Len())
	for i, text := range result.Contexts {
		fmt.Fprintf(w, "%d. %s\n", i+1, result.Sources[i])
		fmt.Fprintf(w, "   %s\n\n", preview(text))
	}
	return nil
}

func printAnswer(w io.Writer, answer *domain.Answer, outputJSON bool) error {
	if outputJSON {
		output, _ := json.MarshalIndent(answer, "", "  ")
		_, err := fmt.Fprintln(w, string(output))
		return err
	}

	fmt.Fprintln(w, answer.Answer)
	if len(answer.Sources) > 0 {
		fmt.Fprintf(w, "\nSources (%d contexts):\n", answer.NumContexts)
		for _, src := range uniqueSources(answer.Sources) {
			fmt.Fprintf(w, "  - %s\n", src)
		}
	}
	return nil
}

func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	return string(runes[:previewLength]) + "..."
}

func uniqueSources(sources []string) []string {
	seen := make(map[string]bool, len(sources))
	out := make([]string, 0, len(sources))
	for _, s := range sources {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
