package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/example/shelter-matching/internal/config"
	"github.com/example/shelter-matching/internal/intake"
	"github.com/example/shelter-matching/internal/logging"
	"github.com/example/shelter-matching/internal/matcher"
	"github.com/example/shelter-matching/internal/models"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type inputs struct {
	profilePath  string
	sheltersPath string
}

func newRootCmd() *cobra.Command {
	in := &inputs{}
	root := &cobra.Command{
		Use:           "matchctl",
		Short:         "Rank shelters for an intake form offline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&in.profilePath, "profile", "", "intake form JSON file")
	root.PersistentFlags().StringVar(&in.sheltersPath, "shelters", "", "JSON array of shelter candidates")
	_ = root.MarkPersistentFlagRequired("profile")
	_ = root.MarkPersistentFlagRequired("shelters")

	root.AddCommand(createRankCmd(in))
	root.AddCommand(createExplainCmd(in))
	return root
}

// createRankCmd prints the ranked matches in the API response shape.
func createRankCmd(in *inputs) *cobra.Command {
	return &cobra.Command{
		Use:   "rank",
		Short: "Print eligible shelters best first",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, user, shelters, err := load(in, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			matches, _ := m.Rank(user, shelters)
			if matches == nil {
				matches = []models.MatchResult{}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"success": true, "matches": matches})
		},
	}
}

// createExplainCmd prints one line per shelter with the gate that excluded it
// or the score breakdown.
func createExplainCmd(in *inputs) *cobra.Command {
	return &cobra.Command{
		Use:   "explain",
		Short: "Show why each shelter was kept or excluded",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, user, shelters, err := load(in, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SHELTER\tRESULT\tDETAIL")
			for i, s := range shelters {
				d := m.Explain(user, s)
				id := d.ShelterID
				if id == "" {
					id = fmt.Sprintf("#%d", i)
				}
				switch {
				case d.Eligible():
					fmt.Fprintf(tw, "%s\t%d%%\t%s\n", id, d.Result.PercentageMatch, breakdown(d.Result.MatchDetails))
				case d.Err != nil:
					fmt.Fprintf(tw, "%s\texcluded\t%s: %v\n", id, d.Gate, d.Err)
				default:
					fmt.Fprintf(tw, "%s\texcluded\t%s\n", id, d.Gate)
				}
			}
			return tw.Flush()
		},
	}
}

func breakdown(details []models.MatchDetail) string {
	parts := make([]string, 0, len(details))
	for _, md := range details {
		parts = append(parts, fmt.Sprintf("%s %g/%g", md.Criterion, md.Score, md.MaxScore))
	}
	return strings.Join(parts, ", ")
}

func load(in *inputs, logOut io.Writer) (*matcher.Matcher, models.UserProfile, []models.ShelterCandidate, error) {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return nil, models.UserProfile{}, nil, err
	}
	mc := cfg.MatcherConfig()
	mc.Logger = logging.NewLoggerTo(logOut, "matchctl", cfg.LogLevel)
	m, err := matcher.New(mc)
	if err != nil {
		return nil, models.UserProfile{}, nil, err
	}

	var form intake.Form
	if err := readJSON(in.profilePath, &form); err != nil {
		return nil, models.UserProfile{}, nil, err
	}
	user, err := intake.ParseForm(form)
	if err != nil {
		return nil, models.UserProfile{}, nil, fmt.Errorf("profile: %w", err)
	}
	var shelters []models.ShelterCandidate
	if err := readJSON(in.sheltersPath, &shelters); err != nil {
		return nil, models.UserProfile{}, nil, err
	}
	return m, user, shelters, nil
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
