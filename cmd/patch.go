package cmd

import (
	"github.com/spf13/cobra"

	"github.com/btf2json/btf2json/pkg/profile"
)

var patchFile string

var patchCmd = &cobra.Command{
	Use:   "patch",
	Short: "Patch a generated profile for use with Volatility 3",
	Long: `Adds the following type definition to a generated profile so that it
can be used with Volatility 3:

  "long unsigned int": {
    "size": 8,
    "signed": false,
    "kind": "int",
    "endian": "little"
  }`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()
		return profile.Patch(patchFile)
	},
}

func init() {
	patchCmd.Flags().StringVarP(&patchFile, "file", "f", "", "path to the profile to be patched")
	cobra.CheckErr(patchCmd.MarkFlagRequired("file"))
	rootCmd.AddCommand(patchCmd)
}
