package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Administer tenant collections",
	Long:  `Show statistics for, rebuild or wipe the collection selected with --tenant.`,
}

var tenantListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tenants with stored documents",
	Args:  cobra.NoArgs,
	RunE:  runTenantList,
}

var tenantStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show document, chunk and index counts",
	Args:  cobra.NoArgs,
	RunE:  runTenantStats,
}

var tenantRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the search indices from stored chunks",
	Long: `Discards the tenant's keyword and vector indices and rebuilds them from
the chunks in the document store. Chunks without a stored embedding, or with
one of the wrong size, are re-embedded.`,
	Args: cobra.NoArgs,
	RunE: runTenantRebuild,
}

var tenantWipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Delete every document of the tenant",
	Args:  cobra.NoArgs,
	RunE:  runTenantWipe,
}

// wipeYes skips the confirmation prompt.
var wipeYes bool

func init() {
	tenantWipeCmd.Flags().BoolVarP(&wipeYes, "yes", "y", false, "do not ask for confirmation")

	tenantCmd.AddCommand(tenantListCmd)
	tenantCmd.AddCommand(tenantStatsCmd)
	tenantCmd.AddCommand(tenantRebuildCmd)
	tenantCmd.AddCommand(tenantWipeCmd)
	rootCmd.AddCommand(tenantCmd)
}

func runTenantList(cmd *cobra.Command, _ []string) error {
	if tenantService == nil {
		return errors.New("tenant service not configured")
	}

	tenants, err := tenantService.Tenants(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list tenants: %w", err)
	}

	if wantJSON(cmd) {
		if tenants == nil {
			tenants = []string{}
		}
		return printJSON(cmd, tenants)
	}
	w := cmd.OutOrStdout()
	if len(tenants) == 0 {
		fmt.Fprintln(w, "No tenants found.")
		return nil
	}
	for _, t := range tenants {
		fmt.Fprintln(w, t)
	}
	return nil
}

func runTenantStats(cmd *cobra.Command, _ []string) error {
	if tenantService == nil {
		return errors.New("tenant service not configured")
	}
	tenant, err := currentTenant()
	if err != nil {
		return err
	}

	stats, err := tenantService.Stats(cmd.Context(), tenant)
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	if wantJSON(cmd) {
		return printJSON(cmd, stats)
	}
	tw := newTable(cmd.OutOrStdout())
	fmt.Fprintf(tw, "Tenant:\t%s\n", stats.Tenant)
	fmt.Fprintf(tw, "Documents:\t%d\n", stats.Documents)
	fmt.Fprintf(tw, "Chunks:\t%d\n", stats.Chunks)
	fmt.Fprintf(tw, "Terms:\t%d\n", stats.Terms)
	fmt.Fprintf(tw, "Vectors:\t%d\n", stats.Vectors)
	fmt.Fprintf(tw, "Dimensions:\t%d\n", stats.Dimensions)
	return tw.Flush()
}

func runTenantRebuild(cmd *cobra.Command, _ []string) error {
	if tenantService == nil {
		return errors.New("tenant service not configured")
	}
	tenant, err := currentTenant()
	if err != nil {
		return err
	}

	if err := tenantService.Rebuild(cmd.Context(), tenant); err != nil {
		return fmt.Errorf("failed to rebuild indices: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Rebuilt indices for tenant %s\n", tenant)
	return nil
}

func runTenantWipe(cmd *cobra.Command, _ []string) error {
	if tenantService == nil {
		return errors.New("tenant service not configured")
	}
	tenant, err := currentTenant()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if !wipeYes {
		fmt.Fprintf(w, "Delete all documents of tenant %q? [y/N]: ", tenant)
		answer := strings.ToLower(readLine(bufio.NewReader(cmd.InOrStdin())))
		if answer != "y" && answer != "yes" {
			fmt.Fprintln(w, "Aborted.")
			return nil
		}
	}

	if err := tenantService.Wipe(cmd.Context(), tenant); err != nil {
		return fmt.Errorf("failed to wipe tenant: %w", err)
	}
	fmt.Fprintf(w, "Wiped tenant %s\n", tenant)
	return nil
}
