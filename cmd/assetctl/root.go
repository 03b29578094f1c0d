package main

import (
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cli carries the global flags and the output sink shared by every subcommand.
type cli struct {
	v   *viper.Viper
	out io.Writer
}

func (c *cli) serverURL() string { return strings.TrimRight(c.v.GetString("server"), "/") }
func (c *cli) user() string      { return c.v.GetString("user") }
func (c *cli) outputFmt() string { return c.v.GetString("output") }

func (c *cli) client() *registryClient {
	return newClient(c.serverURL(), c.user())
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{v: viper.New(), out: out}

	root := &cobra.Command{
		Use:   "assetctl",
		Short: "CLI for the AssetDNA registry",
		Long: `assetctl manages the asset hierarchy, BOM snapshots, import jobs and
audit trail of an AssetDNA registry server.

Global flags may also be set through the environment: ASSETDNA_SERVER,
ASSETDNA_USER and ASSETDNA_OUTPUT.`,
		SilenceUsage: true,
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.String("server", "http://localhost:8080", "Registry server URL")
	pf.String("user", "", "Acting user, sent as X-Remote-User")
	pf.StringP("output", "o", "table", "Output format: table, json, yaml")

	c.v.SetEnvPrefix("ASSETDNA")
	c.v.AutomaticEnv()
	_ = c.v.BindPFlags(pf)

	root.AddCommand(
		newAssetsCmd(c),
		newTypesCmd(c),
		newBOMCmd(c),
		newReportCmd(c),
		newImportCmd(c),
		newExportCmd(c),
		newJobsCmd(c),
		newAuditCmd(c),
		newHealthCmd(c),
	)
	return root
}
