package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"alecontrast/pkg/contrast"
	"alecontrast/pkg/nifti"
)

func newSplitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split <map.nii.gz>",
		Short: "Split a signed difference map into its two directions",
		Long: `Split a signed (usually thresholded) difference map into two directional
maps: {stem}_pos.nii.gz keeps positive voxels as-is, {stem}_neg.nii.gz keeps
negative voxels with their sign flipped to positive.

Example:
  alecontrast split results/control_minus_patient_z_thresh.nii.gz`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vol, err := nifti.Load(args[0])
			if err != nil {
				return err
			}

			pos, neg := contrast.SplitDirectional(vol)

			dir := filepath.Dir(args[0])
			stem := mapStem(args[0])
			posPath := filepath.Join(dir, stem+"_pos.nii.gz")
			negPath := filepath.Join(dir, stem+"_neg.nii.gz")
			if err := nifti.Save(posPath, pos); err != nil {
				return err
			}
			if err := nifti.Save(negPath, neg); err != nil {
				return err
			}

			fmt.Printf("Directional maps saved to: %s (%d voxels), %s (%d voxels)\n",
				posPath, pos.CountNonzero(), negPath, neg.CountNonzero())
			return nil
		},
	}

	return cmd
}
