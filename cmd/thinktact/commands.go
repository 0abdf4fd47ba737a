package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/spf13/cobra"

	"thinktact/internal/domain"
	"thinktact/internal/llm"
	"thinktact/internal/service"
)

var plainTextPolicy = bluemonday.StrictPolicy()

func newAnalyzeCmd(app *cliApp) *cobra.Command {
	var (
		file    string
		asJSON  bool
		subject string
	)
	cmd := &cobra.Command{
		Use:   "analyze [argument...]",
		Short: "Analyze an argument and print the sections",
		Long: `Analyze an argument. The text comes from the positional arguments,
from --file, or from stdin when neither is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readArgument(args, file, app.in)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), app.timeout)
			defer cancel()

			var result service.AnalysisResult
			if subject == "text" {
				result, err = app.analysis.AnalyzeText(ctx, text)
			} else {
				result, err = app.analysis.Analyze(ctx, text)
			}
			if err != nil {
				return describeAnalysisError(err)
			}

			if asJSON {
				enc := json.NewEncoder(app.out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"model":    result.Model,
					"response": result.Text,
					"sections": result.Sections,
					"usage":    result.Usage,
				})
			}
			printSections(app.out, result.Sections)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the argument from a file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	cmd.Flags().StringVar(&subject, "as", "argument", "Prompt wording: argument or text")
	return cmd
}

func newChatCmd(app *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive analysis session with a local transcript",
		Long: `Reads one argument per line and prints its analysis.
Type /history to list the transcript, /clear to reset it and /exit to quit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), app)
		},
	}
}

func runChat(ctx context.Context, app *cliApp) error {
	sessionID := uuid.NewString()
	scanner := bufio.NewScanner(app.in)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)

	fmt.Fprintln(app.out, "ThinkTact chat. Type /exit to quit.")
	for {
		fmt.Fprint(app.out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/clear":
			if err := app.transcripts.Clear(ctx, sessionID); err != nil {
				return err
			}
			fmt.Fprintln(app.out, "transcript cleared")
			continue
		case "/history":
			transcript, err := app.transcripts.Load(ctx, sessionID)
			if err != nil {
				return err
			}
			printHistory(app.out, transcript)
			continue
		}

		if _, err := app.transcripts.Append(ctx, sessionID, domain.RoleUser, line); err != nil {
			return err
		}
		callCtx, cancel := context.WithTimeout(ctx, app.timeout)
		result, err := app.analysis.Analyze(callCtx, line)
		cancel()
		if err != nil {
			fmt.Fprintln(app.out, "error:", describeAnalysisError(err))
			continue
		}
		if _, err := app.transcripts.Append(ctx, sessionID, domain.RoleAssistant, result.Text); err != nil {
			return err
		}
		printSections(app.out, result.Sections)
	}
	return scanner.Err()
}

func newModelsCmd(app *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "Check connectivity with the LLM provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), app.timeout)
			defer cancel()

			report, err := app.analysis.CheckConnectivity(ctx)
			if err != nil {
				return describeAnalysisError(err)
			}
			fmt.Fprintln(app.out, "Available models:")
			for _, m := range report.Models {
				fmt.Fprintf(app.out, "  %s\n", m.ID)
			}
			fmt.Fprintf(app.out, "\nTest response (%s):\n%s\n", report.Model, report.TestResponse)
			fmt.Fprintf(app.out, "\nTokens: prompt=%d completion=%d total=%d\n",
				report.Usage.PromptTokens, report.Usage.CompletionTokens, report.Usage.TotalTokens)
			return nil
		},
	}
}

func newLeadsCmd(app *cliApp) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leads",
		Short: "List the most recent archived waitlist leads",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := app.leadRepository(cmd.Context())
			if err != nil {
				return err
			}
			leads, err := repo.ListRecent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list leads: %w", err)
			}
			w := tabwriter.NewWriter(app.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CREATED\tEMAIL\tJOB\tSOURCE")
			for _, l := range leads {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", l.CreatedAt.Format(time.RFC3339), l.Email, l.Job, l.Source)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of leads to show")
	return cmd
}

// readArgument toma el texto de los args, de un archivo o de stdin, en ese orden.
func readArgument(args []string, file string, stdin io.Reader) (string, error) {
	var text string
	switch {
	case len(args) > 0:
		text = strings.Join(args, " ")
	case file != "":
		raw, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", file, err)
		}
		text = string(raw)
	default:
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		text = string(raw)
	}
	if strings.TrimSpace(text) == "" {
		return "", service.ErrEmptyArgument
	}
	return text, nil
}

func describeAnalysisError(err error) error {
	switch llm.StatusCode(err) {
	case 429:
		return errors.New("API quota exceeded. Please try again later or contact support.")
	case 401:
		return errors.New("Authentication error. Please check API configuration.")
	}
	return err
}

func printSections(w io.Writer, sections service.Sections) {
	for _, s := range sections.List() {
		fmt.Fprintf(w, "== %s ==\n%s\n\n", s.Name, htmlToText(s.HTML))
	}
}

func printHistory(w io.Writer, t domain.Transcript) {
	if len(t.Messages) == 0 {
		fmt.Fprintln(w, "(empty)")
		return
	}
	for _, m := range t.Messages {
		at := time.UnixMilli(m.Timestamp).Format("15:04:05")
		content := m.Content
		if len(content) > 80 {
			content = content[:77] + "..."
		}
		fmt.Fprintf(w, "[%s] %s: %s\n", at, m.Role, strings.ReplaceAll(content, "\n", " "))
	}
}

// htmlToText pasa el HTML de una sección a texto para la terminal.
func htmlToText(s string) string {
	s = strings.ReplaceAll(s, "<br>", "\n")
	s = strings.ReplaceAll(s, "</p>", "\n")
	s = strings.ReplaceAll(s, "</div>", "\n")
	s = strings.ReplaceAll(s, "</span>", " ")
	s = plainTextPolicy.Sanitize(s)
	s = html.UnescapeString(s)

	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
