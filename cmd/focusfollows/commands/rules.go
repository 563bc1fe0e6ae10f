package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/bryanchriswhite/focusfollows/internal/classify"
	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage classification rules",
	Long: `List the built-in rules and add or remove rules in the config file.

Rule kinds:
  allow   raise windows of this class whatever their style
  block   never raise windows of this class
  pause   raise nothing while a window of this class is foreground
  pair    a top-level window of this class under the pointer belongs to the
          foreground application when the foreground class matches --foreground`,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rules in evaluation order",
	RunE:  runRulesList,
}

var rulesAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add a rule",
	Example: `  # Never raise the GIMP toolbox
  focusfollows rules add gimp-toolbox --kind block --class gimp-toolbox

  # Raise every window whose class contains "kitty"
  focusfollows rules add terminals --kind allow --class kitty --match contains

  # Treat a plugin surface as part of its host window
  focusfollows rules add vst --kind pair --class VSTPluginWindow --foreground Ableton`,
	Args: cobra.ExactArgs(1),
	RunE: runRulesAdd,
}

var rulesRemoveCmd = &cobra.Command{
	Use:   "remove NAME",
	Short: "Remove a rule from the config file",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesRemove,
}

var (
	rulesFormat string
	newRule     classify.Rule
	ruleMatch   string
	ruleFgMatch string
	ruleKind    string
)

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesAddCmd)
	rulesCmd.AddCommand(rulesRemoveCmd)

	rulesListCmd.Flags().StringVarP(&rulesFormat, "format", "f", "table", "output format (table or json)")

	rulesAddCmd.Flags().StringVar(&ruleKind, "kind", "", "rule kind (allow, block, pause, pair)")
	rulesAddCmd.Flags().StringVar(&newRule.Class, "class", "", "window class to match")
	rulesAddCmd.Flags().StringVar(&ruleMatch, "match", "exact", "class comparison (exact or contains)")
	rulesAddCmd.Flags().StringVar(&newRule.Foreground, "foreground", "", "foreground class (pair rules)")
	rulesAddCmd.Flags().StringVar(&ruleFgMatch, "foreground-match", "exact", "foreground comparison (exact or contains)")
	rulesAddCmd.MarkFlagRequired("kind")
	rulesAddCmd.MarkFlagRequired("class")
}

func runRulesList(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}

	rules, err := configMgr.RuleSet()
	if err != nil {
		return fmt.Errorf("invalid rules: %w", err)
	}

	configured := make(map[string]bool)
	for _, r := range configMgr.Get().Rules {
		configured[r.Name] = true
	}

	switch rulesFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(rules.Rules())
	case "table":
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tKIND\tCLASS\tMATCH\tFOREGROUND\tSOURCE")
		for _, r := range rules.Rules() {
			source := "built-in"
			if configured[r.Name] {
				source = "config"
			}
			foreground := "-"
			if r.Kind == classify.KindPair {
				foreground = fmt.Sprintf("%s (%s)", r.Foreground, r.ForegroundMatch)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", r.Name, r.Kind, r.Class, r.Match, foreground, source)
		}
		return w.Flush()
	default:
		return fmt.Errorf("unsupported format: %s (use 'table' or 'json')", rulesFormat)
	}
}

func runRulesAdd(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}

	rule := newRule
	rule.Name = args[0]
	rule.Kind = classify.Kind(ruleKind)
	rule.Match = classify.Match(ruleMatch)
	if rule.Kind == classify.KindPair {
		rule.ForegroundMatch = classify.Match(ruleFgMatch)
	}

	if err := configMgr.AddRule(rule); err != nil {
		return fmt.Errorf("failed to add rule: %w", err)
	}

	fmt.Printf("✅ Added %s rule '%s' for class '%s'\n", rule.Kind, rule.Name, rule.Class)
	return nil
}

func runRulesRemove(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}

	if err := configMgr.RemoveRule(args[0]); err != nil {
		return fmt.Errorf("failed to remove rule: %w", err)
	}

	fmt.Printf("✅ Removed rule '%s'\n", args[0])
	return nil
}
