package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wpnative/instant-articles/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage transformer rules",
}

var rulesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the stored rules with a deb822 rules file",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesImport,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored rules",
	RunE:  runRulesList,
}

var rulesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print stored rules as a deb822 rules file",
	RunE:  runRulesExport,
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a deb822 rules file without importing it",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesValidate,
}

func init() {
	rulesCmd.AddCommand(rulesImportCmd)
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesExportCmd)
	rulesCmd.AddCommand(rulesValidateCmd)
	rootCmd.AddCommand(rulesCmd)
}

func runRulesImport(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	n, err := a.ImportRules(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	cmd.Printf("imported %d rules\n", n)
	return nil
}

func runRulesList(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	list, err := a.Rules.Rules(cmd.Context())
	if err != nil {
		return err
	}
	if len(list) == 0 {
		cmd.Println("No rules configured.")
		return nil
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tRULE\tSELECTOR\tSTATUS")
	for _, r := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", r.ID, r.Type, r.Rule, r.Selector, r.Status)
	}
	return tw.Flush()
}

func runRulesExport(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	list, err := a.Rules.Rules(cmd.Context())
	if err != nil {
		return err
	}
	return rules.Write(cmd.OutOrStdout(), list)
}

func runRulesValidate(cmd *cobra.Command, args []string) error {
	loaded, err := rules.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("%d valid rules; %w", len(loaded), err)
	}
	cmd.Printf("%d rules OK\n", len(loaded))
	return nil
}
