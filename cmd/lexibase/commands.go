package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/nkoreli/lexibase/internal/config"
	"github.com/nkoreli/lexibase/internal/importer"
)

// --- add ---

var addCmd = &cobra.Command{
	Use:   "add <word>",
	Short: "Add a word and queue example sentence generation",
	Long: `Add a word and queue example sentence generation.

Examples:
  lexibase add perro --language spanish --translation dog
  lexibase add 犬 --language japanese --topic "daily life" --count 5`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		languageFlag, _ := cmd.Flags().GetString("language")
		translation, _ := cmd.Flags().GetString("translation")
		topic, _ := cmd.Flags().GetString("topic")
		count, _ := cmd.Flags().GetInt("count")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		language, err := client.resolveLanguage(languageFlag)
		if err != nil {
			return err
		}

		req := map[string]any{
			"text":     args[0],
			"language": language,
		}
		if translation != "" {
			req["translation"] = translation
		}
		if topic != "" {
			req["topic"] = topic
		}
		if count > 0 {
			req["sentence_count"] = count
		}

		resp, err := client.post(cmd.Context(), "/words", req)
		if err != nil {
			return err
		}

		var result struct {
			ID int64 `json:"id"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Added word %d (%s), sentence generation queued", result.ID, args[0])
		return nil
	},
}

func init() {
	addCmd.Flags().String("language", "", "language the word belongs to")
	addCmd.Flags().String("translation", "", "known translation")
	addCmd.Flags().String("topic", "", "topic to theme generated sentences around")
	addCmd.Flags().Int("count", 0, "number of sentences to generate")
}

// wordRow mirrors the fields this CLI displays from word responses.
type wordRow struct {
	ID               int64
	Text             string
	Translation      string
	Strength         int
	Known            bool
	Ignored          bool
	ProcessingStatus string
	SentenceCount    int
	NextDueAt        time.Time
}

// --- study ---

var studyCmd = &cobra.Command{
	Use:   "study",
	Short: "Show the next study batch: due words first, backlog fill after",
	RunE: func(cmd *cobra.Command, args []string) error {
		languageFlag, _ := cmd.Flags().GetString("language")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		language, err := client.resolveLanguage(languageFlag)
		if err != nil {
			return err
		}

		dueResp, err := client.get(cmd.Context(), "/study/due-count?language="+url.QueryEscape(language))
		if err != nil {
			return err
		}
		var due struct {
			Due int `json:"due"`
		}
		if err := decodeJSON(dueResp, &due); err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/study/batch?language=%s&limit=%d", url.QueryEscape(language), limit))
		if err != nil {
			return err
		}
		var words []wordRow
		if err := decodeJSON(resp, &words); err != nil {
			return err
		}

		if len(words) == 0 {
			fmt.Println("Nothing to study. Add words with `lexibase add`.")
			return nil
		}

		fmt.Printf("%d word(s) due, batch of %d:\n\n", due.Due, len(words))
		now := time.Now().UTC()
		for _, w := range words {
			marker := " "
			if !w.NextDueAt.After(now) {
				marker = colorize(colorYellow, "!")
			}
			fmt.Printf("%s %s  %s  (strength %d)\n",
				marker,
				colorize(colorCyan, strconv.FormatInt(w.ID, 10)),
				colorize(colorBold, w.Text),
				w.Strength,
			)
			if w.Translation != "" {
				fmt.Printf("    %s\n", w.Translation)
			}
		}
		fmt.Println("\nRate each with: lexibase review <id> <again|hard|good|easy>")
		return nil
	},
}

func init() {
	studyCmd.Flags().String("language", "", "language to study")
	studyCmd.Flags().Int("limit", 10, "maximum batch size")
}

// --- review ---

var reviewCmd = &cobra.Command{
	Use:   "review <word-id> <rating>",
	Short: "Record a review outcome (again, hard, good or easy)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid word id %q", args[0])
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/study/reviews", map[string]any{
			"word_id": id,
			"rating":  args[1],
		})
		if err != nil {
			return err
		}

		var result struct {
			IntervalDays int       `json:"interval_days"`
			NextDueAt    time.Time `json:"next_due_at"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Recorded %s: next review in %d day(s) (%s)",
			args[1], result.IntervalDays, result.NextDueAt.Format("2006-01-02"))
		return nil
	},
}

// --- words ---

var wordsCmd = &cobra.Command{
	Use:   "words",
	Short: "Manage the word collection",
}

var wordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List words",
	RunE: func(cmd *cobra.Command, args []string) error {
		languageFlag, _ := cmd.Flags().GetString("language")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		language, _ := client.resolveLanguage(languageFlag)

		path := fmt.Sprintf("/words?limit=%d", limit)
		if language != "" {
			path += "&language=" + url.QueryEscape(language)
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var words []wordRow
		if err := decodeJSON(resp, &words); err != nil {
			return err
		}

		if len(words) == 0 {
			fmt.Println("No words found.")
			return nil
		}

		for _, w := range words {
			flags := ""
			if w.Known {
				flags += " [known]"
			}
			if w.Ignored {
				flags += " [ignored]"
			}
			fmt.Printf("%s  %s  %s  %d sentence(s), strength %d%s\n",
				colorize(colorCyan, strconv.FormatInt(w.ID, 10)),
				colorize(colorBold, w.Text),
				w.ProcessingStatus,
				w.SentenceCount,
				w.Strength,
				colorize(colorYellow, flags),
			)
		}
		return nil
	},
}

var wordsSetCmd = &cobra.Command{
	Use:   "set <id> <known|ignored> <true|false>",
	Short: "Set the known or ignored flag on a word",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid word id %q", args[0])
		}
		field := args[1]
		if field != "known" && field != "ignored" {
			return fmt.Errorf("unknown field %q (use known or ignored)", field)
		}
		value, err := strconv.ParseBool(args[2])
		if err != nil {
			return fmt.Errorf("invalid value %q: %w", args[2], err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.patch(cmd.Context(), fmt.Sprintf("/words/%d", id), map[string]any{field: value})
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Set %s = %v on word %d", field, value, id)
		return nil
	},
}

var wordsSentencesCmd = &cobra.Command{
	Use:   "sentences <id>",
	Short: "Show the sentences linked to a word",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid word id %q", args[0])
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/words/%d/sentences", id))
		if err != nil {
			return err
		}

		var sentences []struct {
			ID          int64
			Text        string
			Translation string
			AudioPath   string
		}
		if err := decodeJSON(resp, &sentences); err != nil {
			return err
		}

		if len(sentences) == 0 {
			fmt.Println("No sentences yet; generation may still be queued.")
			return nil
		}

		for _, s := range sentences {
			fmt.Printf("%s  %s\n", colorize(colorCyan, strconv.FormatInt(s.ID, 10)), colorize(colorBold, s.Text))
			if s.Translation != "" {
				fmt.Printf("    %s\n", s.Translation)
			}
			if s.AudioPath != "" {
				fmt.Printf("    audio: %s\n", s.AudioPath)
			}
		}
		return nil
	},
}

var wordsRequeueCmd = &cobra.Command{
	Use:   "requeue <id>",
	Short: "Queue sentence generation again for a word",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid word id %q", args[0])
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), fmt.Sprintf("/words/%d/requeue", id), nil)
		if err != nil {
			return err
		}
		var result map[string]any
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Requeued word %d", id)
		return nil
	},
}

var wordsHistoryCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "Show the review history of a word",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid word id %q", args[0])
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/words/%d/reviews", id))
		if err != nil {
			return err
		}

		var entries []struct {
			Rating         string
			IntervalBefore int
			IntervalAfter  int
			ReviewedAt     time.Time
		}
		if err := decodeJSON(resp, &entries); err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("No reviews recorded yet.")
			return nil
		}

		for _, e := range entries {
			fmt.Printf("%s  %-5s  %dd -> %dd\n",
				e.ReviewedAt.Local().Format("2006-01-02 15:04"),
				e.Rating, e.IntervalBefore, e.IntervalAfter)
		}
		return nil
	},
}

func init() {
	wordsListCmd.Flags().String("language", "", "filter by language")
	wordsListCmd.Flags().Int("limit", 50, "maximum number of words to list")
	wordsCmd.AddCommand(wordsListCmd)
	wordsCmd.AddCommand(wordsSetCmd)
	wordsCmd.AddCommand(wordsSentencesCmd)
	wordsCmd.AddCommand(wordsRequeueCmd)
	wordsCmd.AddCommand(wordsHistoryCmd)
}

// --- sentences ---

var sentencesCmd = &cobra.Command{
	Use:   "sentences",
	Short: "Manage generated sentences",
}

var sentencesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a sentence and unlink it from its words",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid sentence id %q", args[0])
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), fmt.Sprintf("/sentences/%d", id))
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted sentence %d", id)
		return nil
	},
}

func init() {
	sentencesCmd.AddCommand(sentencesDeleteCmd)
}

// --- queue ---

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show the sentence generation queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		languageFlag, _ := cmd.Flags().GetString("language")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		language, _ := client.resolveLanguage(languageFlag)

		path := "/queue"
		if language != "" {
			path += "?language=" + url.QueryEscape(language)
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var summary struct {
			Queued     int
			Processing int
			Failed     int
			Active     []struct {
				WordID int64
				Text   string
				Status string
			}
		}
		if err := decodeJSON(resp, &summary); err != nil {
			return err
		}

		printStatus("Queued", "%d", summary.Queued)
		printStatus("Processing", "%d", summary.Processing)
		printStatus("Failed", "%d", summary.Failed)

		if len(summary.Active) > 0 {
			fmt.Println()
			for _, w := range summary.Active {
				fmt.Printf("%s  %s  %s\n",
					colorize(colorCyan, strconv.FormatInt(w.WordID, 10)),
					colorize(colorBold, w.Text),
					w.Status,
				)
			}
		}
		return nil
	},
}

func init() {
	queueCmd.Flags().String("language", "", "filter by language")
}

// --- import ---

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk-add candidate words from a PDF, URL, or text file",
	Long: `Bulk-add candidate words from reading material.

Examples:
  lexibase import --file chapter1.pdf --language spanish --limit 30
  lexibase import --url https://example.com/article --language japanese --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		pageURL, _ := cmd.Flags().GetString("url")
		languageFlag, _ := cmd.Flags().GetString("language")
		topic, _ := cmd.Flags().GetString("topic")
		limit, _ := cmd.Flags().GetInt("limit")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		if (file == "") == (pageURL == "") {
			return fmt.Errorf("exactly one of --file or --url is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		language, err := client.resolveLanguage(languageFlag)
		if err != nil {
			return err
		}

		var content string
		if file != "" {
			content, err = importer.FromFile(file)
		} else {
			content, err = importer.FromURL(cmd.Context(), nil, pageURL)
		}
		if err != nil {
			return err
		}

		candidates := importer.CandidateWords(language, content, limit)
		if len(candidates) == 0 {
			fmt.Println("No candidate words found.")
			return nil
		}

		if dryRun {
			for _, c := range candidates {
				fmt.Println(c)
			}
			return nil
		}

		printStep("Adding %d word(s)...", len(candidates))
		added := 0
		for _, c := range candidates {
			req := map[string]any{"text": c, "language": language}
			if topic != "" {
				req["topic"] = topic
			}
			resp, err := client.post(cmd.Context(), "/words", req)
			if err != nil {
				return err
			}
			var result map[string]any
			if err := decodeJSON(resp, &result); err != nil {
				printError("Failed to add %q: %v", c, err)
				continue
			}
			added++
		}

		printSuccess("Added %d word(s), generation queued", added)
		return nil
	},
}

func init() {
	importCmd.Flags().String("file", "", "file path to import (pdf, html or plain text)")
	importCmd.Flags().String("url", "", "URL to fetch and import")
	importCmd.Flags().String("language", "", "language of the material")
	importCmd.Flags().String("topic", "", "topic to theme generated sentences around")
	importCmd.Flags().Int("limit", 20, "maximum number of words to add")
	importCmd.Flags().Bool("dry-run", false, "print candidates without adding them")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

// exportCmd streams all words and their sentences as JSONL.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all words and sentences as JSONL",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		writer := os.Stdout
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			writer = f
		}

		enc := json.NewEncoder(writer)

		offset := 0
		for {
			resp, err := client.get(cmd.Context(), fmt.Sprintf("/words?limit=100&offset=%d", offset))
			if err != nil {
				return err
			}
			var words []map[string]any
			if err := decodeJSON(resp, &words); err != nil {
				return err
			}
			if len(words) == 0 {
				break
			}
			for _, w := range words {
				enc.Encode(map[string]any{"type": "word", "data": w})
				id, ok := w["ID"].(float64)
				if !ok {
					continue
				}
				sentResp, err := client.get(cmd.Context(), fmt.Sprintf("/words/%d/sentences", int64(id)))
				if err != nil {
					return err
				}
				var sentences []map[string]any
				if err := decodeJSON(sentResp, &sentences); err != nil {
					return err
				}
				for _, s := range sentences {
					enc.Encode(map[string]any{"type": "sentence", "data": s})
				}
			}
			offset += len(words)
		}

		if output != "" {
			printSuccess("Data exported to %s", output)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().String("output", "", "output file path (default: stdout)")
}
