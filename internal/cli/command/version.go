package command

import (
	"github.com/urfave/cli/v2"

	"github.com/BoxCatTeam/CatPanelBackend/internal/cli/output"
	"github.com/BoxCatTeam/CatPanelBackend/internal/infra/buildinfo"
)

// VersionCommand returns the version command.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show build information",
		Action: versionAction,
	}
}

type versionInfo buildinfo.Info

// Table implements output.Tabular.
func (v versionInfo) Table() *output.Table {
	t := output.NewTable("VERSION", "COMMIT", "BUILT", "GO")
	t.AddRow(v.Version, v.Commit, v.BuildTime, v.GoVersion)
	return t
}

func versionAction(c *cli.Context) error {
	return render(c, versionInfo(buildinfo.Get()))
}
