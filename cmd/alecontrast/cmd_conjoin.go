package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"alecontrast/pkg/contrast"
	"alecontrast/pkg/nifti"
)

func newConjoinCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conjoin <mapX.nii.gz> <mapY.nii.gz>",
		Short: "Compute the conjunction of two independently thresholded maps",
		Long: `Compute the conjunction (shared-effect map) of two statistic maps on the
same grid: the voxel-wise algebraic minimum where both maps are non-zero and
agree in sign, zero elsewhere.

Both inputs are expected to be independently thresholded maps; the stage
itself works on statistic and effect-size maps alike.

Example:
  alecontrast conjoin controls_z_thresh.nii.gz patients_z_thresh.nii.gz -o shared.nii.gz`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := nifti.Load(args[0])
			if err != nil {
				return err
			}
			y, err := nifti.Load(args[1])
			if err != nil {
				return err
			}

			conj, err := contrast.Conjunction(x, y)
			if err != nil {
				return err
			}

			out, _ := cmd.Flags().GetString("output")
			if err := nifti.Save(out, conj); err != nil {
				return err
			}
			fmt.Printf("Conjunction map saved to: %s (%d shared voxels)\n", out, conj.CountNonzero())
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "conjunction.nii.gz", "Output path for the conjunction map")

	return cmd
}
