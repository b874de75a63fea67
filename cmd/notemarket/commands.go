package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pbaille/notemarket/internal/classify"
	"github.com/pbaille/notemarket/internal/dashboard"
	"github.com/pbaille/notemarket/internal/domain"
	"github.com/pbaille/notemarket/internal/fetcher"
	"github.com/pbaille/notemarket/internal/moderation"
	"github.com/pbaille/notemarket/internal/transparency"
)

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id: %s", s)
	}
	return id, nil
}

func classifyCmd() *cobra.Command {
	var scheme string

	cmd := &cobra.Command{
		Use:   "classify [score]",
		Short: "Classify a similarity score (0-100)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			score, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid score: %s", args[0])
			}

			schemes := []classify.Scheme{classify.SchemeWarning, classify.SchemeCloneStatus, classify.SchemeOriginality}
			if scheme != "" {
				s, err := classify.ParseScheme(scheme)
				if err != nil {
					return err
				}
				schemes = []classify.Scheme{s}
			}

			lines, err := classifyLines(score, schemes)
			if err != nil {
				return err
			}
			for _, l := range lines {
				fmt.Println(l)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&scheme, "scheme", "s", "", "warning, clone_status or originality (default all)")
	return cmd
}

func classifyLines(score float64, schemes []classify.Scheme) ([]string, error) {
	lines := make([]string, 0, len(schemes)+1)
	for _, s := range schemes {
		tier, err := classify.Classify(score, s)
		if err != nil {
			return nil, err
		}
		if tier == "" {
			tier = "(no record)"
		}
		lines = append(lines, fmt.Sprintf("%-18s %s", s+":", tier))
	}
	lines = append(lines, fmt.Sprintf("%-18s %.0f", "originality_score:", classify.OriginalityScore(score)))
	return lines, nil
}

func creatorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "creator",
		Short: "Manage creator accounts",
	}

	var private bool
	add := &cobra.Command{
		Use:   "add [username]",
		Short: "Register a creator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			c, err := a.store.CreateCreator(cmd.Context(), strings.TrimSpace(args[0]), !private)
			if err != nil {
				return err
			}
			visibility := "public"
			if !c.IsPublic {
				visibility = "private"
			}
			fmt.Printf("Added creator %d: @%s (%s)\n", c.ID, c.Username, visibility)
			return nil
		},
	}
	add.Flags().BoolVar(&private, "private", false, "hide the username from buyers")

	cmd.AddCommand(add)
	return cmd
}

func publishCmd() *cobra.Command {
	var (
		creator string
		title   string
		price   int
		file    string
	)

	cmd := &cobra.Command{
		Use:   "publish [body or URL]",
		Short: "Publish a note and scan it for clones",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			c, err := a.resolveCreator(ctx, creator)
			if err != nil {
				return err
			}

			body, err := readBody(ctx, a, file, args)
			if err != nil {
				return err
			}
			if strings.TrimSpace(title) == "" {
				return fmt.Errorf("--title is required")
			}

			note, err := a.store.AddNote(ctx, c.ID, strings.TrimSpace(title), body, price)
			if err != nil {
				return err
			}
			fmt.Printf("Published note %d: %s\n", note.ID, note.Title)

			if a.detector == nil {
				fmt.Println("(scan skipped: similarity detection not configured)")
				return nil
			}
			fmt.Print("Scanning... ")
			clones, err := a.detector.ScanNote(ctx, note.ID)
			if err != nil {
				fmt.Printf("failed: %v\n", err)
				return nil
			}
			fmt.Printf("done\n")
			printClones(clones)
			return nil
		},
	}

	cmd.Flags().StringVarP(&creator, "creator", "c", "", "creator id or username")
	cmd.Flags().StringVarP(&title, "title", "t", "", "note title")
	cmd.Flags().IntVarP(&price, "price", "p", 0, "price in cents")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the body from a file")
	_ = cmd.MarkFlagRequired("creator")
	return cmd
}

// readBody takes the note body from a file, a URL or the arguments
func readBody(ctx context.Context, a *app, file string, args []string) (string, error) {
	var body string
	switch {
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", file, err)
		}
		body = string(data)
	case len(args) == 1 && fetcher.IsURL(args[0]):
		fmt.Printf("Fetching %s... ", args[0])
		text, err := fetcher.New(a.cfg.HTTPTimeout()).Fetch(ctx, args[0])
		if err != nil {
			fmt.Println("failed")
			return "", err
		}
		fmt.Println("done")
		return text, nil
	default:
		body = strings.Join(args, " ")
	}

	if fetcher.LooksLikeHTML(body) {
		body = fetcher.ExtractText(body)
	}
	if strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("note body is empty")
	}
	return body, nil
}

func printClones(clones []domain.CloneRecord) {
	if len(clones) == 0 {
		fmt.Println("No clones detected.")
		return
	}
	for _, c := range clones {
		fmt.Printf("  clone %d: note %d -> note %d  %.0f%%  %s\n",
			c.ID, c.SourceNoteID, c.SuspectNoteID, c.SimilarityScore, c.Status)
	}
}

func listCmd() *cobra.Command {
	var (
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recently published notes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			notes, err := a.store.ListNotes(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}
			printNotes(os.Stdout, notes)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of notes to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of notes to skip")
	return cmd
}

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search [query]",
		Short: "Find notes whose title or body contains the query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := strings.TrimSpace(strings.Join(args, " "))
			if q == "" {
				return fmt.Errorf("query is empty")
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			notes, err := a.store.SearchNotes(cmd.Context(), q)
			if err != nil {
				return err
			}
			printNotes(os.Stdout, notes)
			return nil
		},
	}
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [note-id]",
		Short: "Show a note and whether it has been indexed and scanned",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			n, err := a.store.GetNote(ctx, id)
			if err != nil {
				return err
			}
			indexed, err := a.store.HasEmbedding(ctx, id)
			if err != nil {
				return err
			}
			scanned, err := a.store.IsScanned(ctx, id)
			if err != nil {
				return err
			}

			fmt.Printf("Note:      %d %q\n", n.ID, n.Title)
			fmt.Printf("Creator:   %d\n", n.CreatorID)
			fmt.Printf("Price:     %s\n", formatPrice(n.PriceCents))
			fmt.Printf("Published: %s\n", n.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("Indexed:   %t\n", indexed)
			fmt.Printf("Scanned:   %t\n", scanned)
			fmt.Printf("\n%s\n", n.Body)
			return nil
		},
	}
}

func printNotes(w io.Writer, notes []domain.Note) {
	if len(notes) == 0 {
		fmt.Fprintln(w, "No notes found.")
		return
	}
	for _, n := range notes {
		fmt.Fprintf(w, "%5d  %-40s %8s  %s\n", n.ID, truncate(n.Title, 40), formatPrice(n.PriceCents), n.CreatedAt.Format("2006-01-02"))
	}
}

func formatPrice(cents int) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [draft text]",
		Short: "Check a draft for similar notes before publishing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireDetector(); err != nil {
				return err
			}

			check, err := a.detector.CheckDraft(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Printf("Warning: %s (top match %.0f%%)\n", check.Level, check.TopScore)
			for _, m := range check.Matches {
				fmt.Printf("  note %d  %.0f%%\n", m.NoteID, m.Score)
			}
			return nil
		},
	}
}

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan [note-id]",
		Short: "Scan one note, or every unscanned note when no id is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireDetector(); err != nil {
				return err
			}

			if len(args) == 0 {
				res, err := a.detector.Sweep(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("Scanned %d notes: %d clones recorded, %d failed\n", res.Scanned, res.Created, res.Failed)
				return nil
			}

			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			clones, err := a.detector.ScanNote(cmd.Context(), id)
			if err != nil {
				return err
			}
			printClones(clones)
			return nil
		},
	}
}

func transparencyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transparency [note-id]",
		Short: "Show what buyers see for a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			r, err := transparency.NewStoreLookup(a.store).LookupTransparency(cmd.Context(), id)
			if err != nil {
				return err
			}

			fmt.Printf("Note:        %d\n", r.NoteID)
			fmt.Printf("Originality: %.0f (%s)\n", r.OriginalityScore, r.OriginalityLevel)
			if r.IsClone {
				fmt.Printf("Badge:       %s [%s]\n", r.TransparencyBadge.Text, r.TransparencyBadge.Severity)
				if r.OriginalNote != nil {
					fmt.Printf("Original:    note %d %q\n", r.OriginalNote.ID, r.OriginalNote.Title)
				}
			}
			fmt.Printf("\n%s\n%s\n%s\n", r.BuyerMessage.Title, r.BuyerMessage.Description, r.BuyerMessage.Recommendation)
			if r.PurchaseWarning != nil {
				fmt.Printf("\nAt checkout: %s\n", *r.PurchaseWarning)
			}
			return nil
		},
	}
}

func actionCmd() *cobra.Command {
	var (
		as      string
		message string
	)

	cmd := &cobra.Command{
		Use:       "action [clone-id] [action]",
		Short:     "Respond to a detected clone",
		Long:      "Actions: TAKEDOWN_REQUESTED, RESALE_ALLOWED, RESALE_DENIED, CLONE_DISMISSED",
		Args:      cobra.ExactArgs(2),
		ValidArgs: actionNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			action, err := moderation.ParseActionType(strings.ToUpper(args[1]))
			if err != nil {
				return err
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			c, err := a.resolveCreator(cmd.Context(), as)
			if err != nil {
				return err
			}
			res, err := a.workflow.HandleAction(cmd.Context(), moderation.ActionRequest{
				CreatorID: c.ID,
				CloneID:   id,
				Action:    action,
				Message:   message,
			})
			if err != nil {
				return err
			}
			fmt.Printf("%s (action %s)\n", res.Message, res.ActionID[:8])
			return nil
		},
	}

	cmd.Flags().StringVar(&as, "as", "", "acting creator id or username")
	cmd.Flags().StringVarP(&message, "message", "m", "", "note stored with the audit entry")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}

func actionNames() []string {
	names := make([]string, len(moderation.ActionTypes))
	for i, a := range moderation.ActionTypes {
		names[i] = string(a)
	}
	return names
}

func bulkCmd() *cobra.Command {
	var (
		as      string
		message string
	)

	cmd := &cobra.Command{
		Use:   "bulk [action] [clone-id...]",
		Short: "Apply one action to several clones",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := moderation.ParseActionType(strings.ToUpper(args[0]))
			if err != nil {
				return err
			}
			ids := make([]int64, 0, len(args)-1)
			for _, raw := range args[1:] {
				id, err := parseID(raw)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			c, err := a.resolveCreator(cmd.Context(), as)
			if err != nil {
				return err
			}
			res := a.workflow.HandleBulkActions(cmd.Context(), moderation.BulkRequest{
				CreatorID: c.ID,
				CloneIDs:  ids,
				Action:    action,
				Message:   message,
			})
			fmt.Printf("Processed %d, errors %d\n", res.Processed, res.Errors)
			if !res.Success {
				return fmt.Errorf("%d of %d actions failed", res.Errors, len(ids))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&as, "as", "", "acting creator id or username")
	cmd.Flags().StringVarP(&message, "message", "m", "", "note stored with each audit entry")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}

func messageCmd() *cobra.Command {
	var (
		as      string
		subject string
	)

	cmd := &cobra.Command{
		Use:   "message [clone-id] [body]",
		Short: "Send a message to the creator of a clone",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			c, err := a.resolveCreator(cmd.Context(), as)
			if err != nil {
				return err
			}
			if err := a.workflow.SendMessageToCloner(cmd.Context(), c.ID, id, subject, strings.Join(args[1:], " ")); err != nil {
				return err
			}
			fmt.Println("Message sent.")
			return nil
		},
	}

	cmd.Flags().StringVar(&as, "as", "", "sending creator id or username")
	cmd.Flags().StringVarP(&subject, "subject", "s", "About your note", "message subject")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history [clone-id]",
		Short: "Show the moderation history of a clone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.workflow.GetActionHistory(cmd.Context(), id)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No actions yet.")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%s  %-19s @%s", e.CreatedAt.Format("2006-01-02 15:04:05"), e.ActionType, e.CreatorUsername)
				if e.Message != "" {
					fmt.Printf("  %q", e.Message)
				}
				fmt.Println()
			}
			return nil
		},
	}
}

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard [creator]",
		Short: "Summarise the clones of a creator's notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			c, err := a.resolveCreator(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			report, err := dashboard.NewService(a.store).Report(cmd.Context(), c.ID)
			if err != nil {
				return err
			}

			m := report.Metrics
			fmt.Printf("Creator:          @%s\n", c.Username)
			fmt.Printf("Total clones:     %d\n", m.TotalClones)
			fmt.Printf("High similarity:  %d\n", m.HighSimilarityClones)
			fmt.Printf("Pending actions:  %d\n", m.PendingActions)
			fmt.Printf("Takedowns:        %d\n", m.TakedownRequests)
			fmt.Printf("Avg similarity:   %.1f%%\n", m.AverageSimilarity)

			for _, g := range report.Originals {
				fmt.Printf("\n%s (note %d)\n", g.OriginalNote.Title, g.OriginalNote.ID)
				for _, r := range g.Clones {
					fmt.Printf("  clone %d: note %d  %.0f%%  %s  %s\n",
						r.ID, r.SuspectNoteID, r.SimilarityScore, r.Status, r.CreatorAction)
				}
			}
			return nil
		},
	}
}
