package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mail-autosort-go/internal/models"
	"mail-autosort-go/internal/resolver"
)

var rootCmd = &cobra.Command{
	Use:          "mail-autosort",
	Short:        "Mail AutoSort",
	Long:         "Classifies mail with a generative-text API and moves or tags it into folders",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the auto-sort scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return Serve(cmd.Context(), cfg)
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify [file]",
	Short: "Classify email text from a file or stdin and print the label",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		return withComponents(cmd, func(ctx context.Context, c *Components) error {
			snap, err := c.Settings.Load(ctx)
			if err != nil {
				return err
			}
			label, ok, err := c.Classifier.Classify(ctx, text, snap.Classification)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no matching label")
			}
			fmt.Fprintln(cmd.OutOrStdout(), label)
			return nil
		})
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply LABEL MESSAGE_ID...",
	Short: "Move or tag messages of one folder with a label",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		account, _ := cmd.Flags().GetString("account")
		folder, _ := cmd.Flags().GetString("folder")
		mode, _ := cmd.Flags().GetString("mode")

		messages := make([]models.Message, 0, len(args)-1)
		for _, id := range args[1:] {
			messages = append(messages, models.Message{
				ID:      id,
				Subject: id,
				Folder:  models.FolderRef{AccountID: account, FolderID: folder},
			})
		}

		return withComponents(cmd, func(ctx context.Context, c *Components) error {
			m := models.Mode(mode)
			if m == "" {
				snap, err := c.Settings.Load(ctx)
				if err != nil {
					return err
				}
				m = snap.Mode
			}
			summary, err := c.Engine.ApplyLabel(ctx, messages, args[0], m)
			if err != nil {
				return err
			}
			printOutcomes(cmd.OutOrStdout(), summary.Outcomes)
			if summary.Result() == models.BatchFailed {
				return fmt.Errorf("all %d message(s) failed", summary.ErrorCount)
			}
			return nil
		})
	},
}

var runOnceCmd = &cobra.Command{
	Use:   "run-once",
	Short: "Analyze and sort new messages in every configured account once",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withComponents(cmd, func(ctx context.Context, c *Components) error {
			result, err := c.Scheduler.RunOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "accounts=%d listed=%d applied=%d skipped=%d\n",
				result.Accounts, result.Listed, result.Applied, result.Skipped)
			for _, e := range result.Errors {
				fmt.Fprintln(cmd.ErrOrStderr(), e)
			}
			return nil
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show or clear the move history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List history entries, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withComponents(cmd, func(ctx context.Context, c *Components) error {
			entries := c.History.List()
			if limit > 0 && limit < len(entries) {
				entries = entries[:limit]
			}
			printOutcomes(cmd.OutOrStdout(), entries)
			return nil
		})
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all history entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withComponents(cmd, func(ctx context.Context, c *Components) error {
			return c.History.Clear(ctx)
		})
	},
}

var foldersCmd = &cobra.Command{
	Use:   "folders ACCOUNT_ID",
	Short: "Print an account's folder tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withComponents(cmd, func(ctx context.Context, c *Components) error {
			account, err := c.Mail.FetchAccount(ctx, args[0])
			if err != nil {
				return err
			}
			printFolders(cmd.OutOrStdout(), account.Folders)
			return nil
		})
	},
}

var labelsImportCmd = &cobra.Command{
	Use:   "import-labels [file]",
	Short: "Replace the candidate labels with one label per line",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		return withComponents(cmd, func(ctx context.Context, c *Components) error {
			labels, err := c.Settings.ImportLabels(ctx, text)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d categories/folders\n", len(labels))
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().String("log.level", "", "Log level")
	rootCmd.PersistentFlags().String("database.path", "", "SQLite database path")
	serveCmd.Flags().String("server.port", "", "HTTP server port")

	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log.level"))
	viper.BindPFlag("database.path", rootCmd.PersistentFlags().Lookup("database.path"))
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("server.port"))

	applyCmd.Flags().String("account", "", "Account id")
	applyCmd.Flags().String("folder", "INBOX", "Source folder id")
	applyCmd.Flags().String("mode", "", "move or tag (default from settings)")
	applyCmd.MarkFlagRequired("account")

	historyListCmd.Flags().Int("limit", 0, "Maximum entries to print")
	historyCmd.AddCommand(historyListCmd, historyClearCmd)

	rootCmd.AddCommand(serveCmd, classifyCmd, applyCmd, runOnceCmd, historyCmd, foldersCmd, labelsImportCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func withComponents(cmd *cobra.Command, fn func(ctx context.Context, c *Components) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := Build(ctx, cfg, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(ctx, c)
}

func readInput(cmd *cobra.Command, args []string) (string, error) {
	var r io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return "", fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return string(b), nil
}

func printOutcomes(w io.Writer, records []models.OutcomeRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSTATUS\tDESTINATION\tSUBJECT")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Timestamp.Format("2006-01-02 15:04:05"), r.Status, r.Destination, r.Subject)
	}
	tw.Flush()
}

func printFolders(w io.Writer, folders []models.Folder) {
	resolver.Walk(folders, func(path string, f *models.Folder) bool {
		depth := strings.Count(path, "/")
		fmt.Fprintf(w, "%s%s\t(%s)\n", strings.Repeat("  ", depth), f.Name, f.ID)
		return true
	})
}
