package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"alecontrast/pkg/nifti"
	"alecontrast/pkg/threshold"
)

func newThresholdCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "threshold <map.nii.gz>",
		Short: "Apply the dual voxel/cluster threshold to a saved statistic map",
		Long: `Apply the combined voxel-level and cluster-extent threshold to a saved
statistic map and write the result as {stem}_thresh.nii.gz.

The derived critical statistic value and the surviving clusters are printed.

Examples:
  alecontrast threshold results/control_minus_patient_z.nii.gz
  alecontrast threshold map.nii.gz --voxel-p 0.01 --connectivity 26`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyThresholdFlags(cmd, cfg)

			vol, err := nifti.Load(args[0])
			if err != nil {
				return err
			}

			res, err := threshold.Apply(vol, threshold.Params{
				VoxelP:         cfg.Thresholding.VoxelP,
				ClusterSizeMM3: cfg.Thresholding.ClusterSizeMM3,
				TwoSided:       cfg.Thresholding.TwoSided,
				Connectivity:   cfg.Thresholding.Connectivity,
			})
			if err != nil {
				return err
			}
			fmt.Print(threshold.Summary(res))

			out, _ := cmd.Flags().GetString("output")
			if out == "" {
				out = filepath.Join(filepath.Dir(args[0]), mapStem(args[0])+"_thresh.nii.gz")
			}
			if err := nifti.Save(out, res.Volume); err != nil {
				return err
			}
			fmt.Printf("Thresholded map saved to: %s\n", out)
			return nil
		},
	}

	addThresholdFlags(cmd)
	cmd.Flags().StringP("output", "o", "", "Output path (default: {input stem}_thresh.nii.gz)")

	return cmd
}
