package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"alecontrast/pkg/config"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "alecontrast",
		Short: "ALE subtraction and conjunction analysis for coordinate-based meta-analysis",
		Long: `alecontrast runs activation likelihood estimation (ALE) contrasts over
neuroimaging coordinate datasets.

It estimates voxel-wise group differences between two Sleuth-format foci
lists with a permutation null, applies a combined voxel-level and
cluster-extent threshold, and writes the resulting statistic maps as
compressed NIfTI volumes alongside a cluster report.`,
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "alecontrast.yaml", "Path to YAML configuration file")
	rootCmd.PersistentFlags().String("out", "", "Output directory (overrides the configured one)")

	// Add subcommands
	rootCmd.AddCommand(
		newVersionCmd(),
		newSubtractCmd(),
		newThresholdCmd(),
		newSplitCmd(),
		newConjoinCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("alecontrast version %s\n", version)
		},
	}
}

// loadConfig reads the configured YAML file and applies the global output
// directory override.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if out, _ := cmd.Flags().GetString("out"); out != "" {
		cfg.Output.Dir = out
	}
	return cfg, nil
}

// addThresholdFlags registers the thresholding flags shared by the subtract
// and threshold commands.
func addThresholdFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("voxel-p", 0.001, "Voxel-level false-positive rate, in (0, 1)")
	cmd.Flags().Float64("cluster-mm3", 200, "Minimum cluster extent in mm^3")
	cmd.Flags().Bool("two-sided", true, "Apply a two-tailed threshold")
	cmd.Flags().Int("connectivity", 6, "Cluster neighborhood: 6, 18 or 26")
}

// applyThresholdFlags overrides configured thresholding values with any flag
// the user set explicitly.
func applyThresholdFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("voxel-p") {
		cfg.Thresholding.VoxelP, _ = cmd.Flags().GetFloat64("voxel-p")
	}
	if cmd.Flags().Changed("cluster-mm3") {
		cfg.Thresholding.ClusterSizeMM3, _ = cmd.Flags().GetFloat64("cluster-mm3")
	}
	if cmd.Flags().Changed("two-sided") {
		cfg.Thresholding.TwoSided, _ = cmd.Flags().GetBool("two-sided")
	}
	if cmd.Flags().Changed("connectivity") {
		cfg.Thresholding.Connectivity, _ = cmd.Flags().GetInt("connectivity")
	}
}

// mapStem strips the directory and the .nii/.nii.gz extension from a volume
// file path.
func mapStem(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".gz")
	return strings.TrimSuffix(base, ".nii")
}
