package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"arbiter/internal/store"
)

var outcomeFlags struct {
	configPath string
	dbPath     string
	confirmed  bool
	wrong      bool
	notes      string
}

var outcomeCmd = &cobra.Command{
	Use:   "outcome <debate-id>",
	Short: "Record whether a debate's recommendation held up",
	Long: `Records the human-confirmed outcome of a past debate and refreshes the
pattern model so future pre-checks weigh this result. An outcome can be set
only once per debate; to correct one, run a new debate.

  arbiter outcome 4f1c9b2e --confirmed --notes "merged, no regressions"
  arbiter outcome 4f1c9b2e --wrong --notes "broke the migration path"`,
	Args: cobra.ExactArgs(1),
	RunE: runOutcome,
}

func init() {
	f := outcomeCmd.Flags()
	f.StringVar(&outcomeFlags.configPath, "config", "", "Config file path (default: .arbiter/config.yaml)")
	f.StringVar(&outcomeFlags.dbPath, "db", "", "History DB path (overrides config)")
	f.BoolVar(&outcomeFlags.confirmed, "confirmed", false, "The recommendation proved correct")
	f.BoolVar(&outcomeFlags.wrong, "wrong", false, "The recommendation proved wrong")
	f.StringVar(&outcomeFlags.notes, "notes", "", "Free-form notes about what happened")
}

func runOutcome(cmd *cobra.Command, args []string) error {
	if outcomeFlags.confirmed == outcomeFlags.wrong {
		return errors.New("pass exactly one of --confirmed or --wrong")
	}

	configPath := outcomeFlags.configPath
	if configPath == "" {
		configPath = ".arbiter/config.yaml"
	}
	comps, err := buildComponents(configPath, outcomeFlags.dbPath)
	if err != nil {
		return err
	}
	defer comps.close()

	id, err := resolveDebateID(comps.store, args[0])
	if err != nil {
		return err
	}

	err = comps.learner.Learn(id, outcomeFlags.confirmed, outcomeFlags.notes)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("no debate with id %s", args[0])
	case errors.Is(err, store.ErrAlreadyRecorded):
		return fmt.Errorf("debate %s already has an outcome recorded", args[0])
	case err != nil:
		return err
	}

	fmt.Printf("Outcome recorded for %s.\n", id)
	return nil
}

// resolveDebateID accepts a full UUID or an unambiguous prefix (as printed
// by 'arbiter history').
func resolveDebateID(st store.Store, idOrPrefix string) (string, error) {
	if len(idOrPrefix) == 36 {
		return idOrPrefix, nil
	}
	records, err := st.GetRecent(1000)
	if err != nil {
		return "", err
	}
	var match string
	for _, rec := range records {
		if len(rec.ID) >= len(idOrPrefix) && rec.ID[:len(idOrPrefix)] == idOrPrefix {
			if match != "" {
				return "", fmt.Errorf("debate id prefix %q is ambiguous", idOrPrefix)
			}
			match = rec.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no debate with id %s", idOrPrefix)
	}
	return match, nil
}
