package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/optenrich/internal/profiler"
	"github.com/wonny/optenrich/pkg/database"
)

// profileCmd represents the profile command
var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show the resource profile and check the engine",
	Long: `Detects CPUs and memory, prints the per-file session settings derived
from them and opens an in-memory engine session as a health check.

Example:
  go run ./cmd/optenrich profile
  go run ./cmd/optenrich profile -m 50`,
	RunE: runProfile,
}

var profileMemory int

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.Flags().IntVarP(&profileMemory, "memory-percent", "m", 0, "share of total RAM for the engine (default from MEMORY_PERCENT)")
}

func runProfile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("memory-percent") {
		cfg.Pipeline.MemoryPercent = profileMemory
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	profile, err := profiler.Detect(cmd.Context(), cfg.Pipeline.MemoryPercent)
	if err != nil {
		return err
	}

	PrintHeader("Resource Profile", [][2]string{
		{"CPUs", strconv.Itoa(profile.CPUCount)},
		{"Total memory", fmt.Sprintf("%.1f GB", profile.TotalMemoryGB())},
		{"Memory share", fmt.Sprintf("%d%%", profile.MemoryPercent)},
		{"Threads", strconv.Itoa(profile.Threads)},
		{"Memory limit", fmt.Sprintf("%d GB", profile.MemoryLimitGB)},
		{"Chunk size", strconv.Itoa(profile.LargeRowThreshold)},
		{"Process RSS", fmt.Sprintf("%.1f MB", float64(profiler.RSS())/(1<<20))},
	})

	fmt.Println("Opening in-memory engine session...")
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	db, err := database.Open(ctx, "", profile.Settings())
	if err != nil {
		return fmt.Errorf("❌ Failed to open engine: %w", err)
	}
	defer db.Close()

	status, err := db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("❌ Health check failed: %w", err)
	}

	PrintSuccess("Health Check Results:")
	PrintKeyValue("Healthy", strconv.FormatBool(status.Healthy), 13)
	PrintKeyValue("Version", status.Version, 13)
	PrintKeyValue("Response time", status.ResponseTime.String(), 13)
	PrintKeyValue("Timestamp", status.Timestamp.Format(time.RFC3339), 13)
	return nil
}
