//go:build linux

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	units "github.com/docker/go-units"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"machinerun.io/clearpart"
	"machinerun.io/clearpart/memgraph"
)

//nolint:gochecknoglobals
var asFlag = &cli.StringFlag{
	Name:  "as",
	Usage: "evaluate with this clear type instead of the configured one",
}

//nolint:gochecknoglobals
var showCommand = cli.Command{
	Name:   "show",
	Usage:  "Show the devices and whether they would be cleared",
	Action: showDevices,
}

//nolint:gochecknoglobals
var shouldClearCommand = cli.Command{
	Name:      "should-clear",
	Usage:     "Tell whether the given devices would be cleared",
	ArgsUsage: "device [device...]",
	Flags:     []cli.Flag{asFlag},
	Action:    shouldClear,
}

//nolint:gochecknoglobals
var clearCommand = cli.Command{
	Name:  "clear",
	Usage: "Run a clearing pass on the device graph. Disks are never written",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "save",
			Usage: "write the resulting layout to this file (json, or yaml by extension)",
		},
	},
	Action: clearPartitions,
}

//nolint:gochecknoglobals
var freeCommand = cli.Command{
	Name:      "free",
	Usage:     "Show the free space clearing would leave on the disks",
	ArgsUsage: "[disk...]",
	Flags:     []cli.Flag{asFlag},
	Action:    freeSpace,
}

//nolint:gochecknoglobals
var protectCommand = cli.Command{
	Name:      "protect",
	Usage:     "Resolve protected device specs (default: the configured ones)",
	ArgsUsage: "[spec...]",
	Action:    resolveProtected,
}

//nolint:gochecknoglobals
var dumpCommand = cli.Command{
	Name:  "dump",
	Usage: "Dump the device graph as a layout usable with --layout",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "yaml",
			Usage: "dump yaml instead of json",
		},
	},
	Action: dumpLayout,
}

func printJSON(w io.Writer, v interface{}) error {
	jbytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s\n", string(jbytes))

	return nil
}

func sizeString(n uint64) string {
	if n == 0 {
		return "0"
	}

	return units.BytesSize(float64(n))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}

	return "no"
}

func formatString(f clearpart.Format) string {
	if f.Type != "" {
		return f.Type
	}

	return f.Kind.String()
}

// overrides returns the policy overrides of the --as flag.
func overrides(c *cli.Context) ([]clearpart.Override, error) {
	if !c.IsSet("as") {
		return nil, nil
	}

	t, err := clearpart.ParseClearType(c.String("as"))
	if err != nil {
		return nil, err
	}

	return []clearpart.Override{clearpart.WithClearType(t)}, nil
}

func deviceRows(g *clearpart.Sealed, cfg clearpart.Config) [][]string {
	data := [][]string{{"NAME", "KIND", "SIZE", "FORMAT", "MOUNTPOINT", "PROTECTED", "CLEAR"}}

	for _, d := range g.Devices() {
		data = append(data, []string{
			d.Name,
			d.Kind.String(),
			sizeString(d.Size),
			formatString(d.Format),
			d.Format.Mountpoint,
			yesNo(clearpart.IsProtected(g, d)),
			yesNo(clearpart.ShouldClear(g, d, cfg)),
		})
	}

	return data
}

func showDevices(c *cli.Context) error {
	s, _, err := newSession(c)
	if err != nil {
		return err
	}

	g, err := s.Graph()
	if err != nil {
		return err
	}

	if c.Bool("json") {
		return printJSON(c.App.Writer, g.Devices())
	}

	printTextTable(c.App.Writer, deviceRows(g, s.Config()))

	return nil
}

func shouldClear(c *cli.Context) error {
	if c.Args().Len() == 0 {
		return errors.New("no devices given")
	}

	ovr, err := overrides(c)
	if err != nil {
		return err
	}

	s, _, err := newSession(c)
	if err != nil {
		return err
	}

	results := map[string]bool{}
	data := [][]string{{"DEVICE", "CLEAR"}}

	for _, name := range c.Args().Slice() {
		cleared, err := s.ShouldClear(name, ovr...)
		if err != nil {
			return err
		}

		results[name] = cleared
		data = append(data, []string{name, yesNo(cleared)})
	}

	if c.Bool("json") {
		return printJSON(c.App.Writer, results)
	}

	printTextTable(c.App.Writer, data)

	return nil
}

func clearPartitions(c *cli.Context) error {
	s, g, err := newSession(c)
	if err != nil {
		return err
	}

	res, err := s.ClearPartitions()
	if err != nil {
		return err
	}

	if path := c.String("save"); path != "" {
		if err := memgraph.WriteLayout(path, g.Layout()); err != nil {
			return err
		}
	}

	if c.Bool("json") {
		return printJSON(c.App.Writer, res)
	}

	for _, name := range res.Removed {
		fmt.Fprintf(c.App.Writer, "removed %s\n", name)
	}

	for _, name := range res.Initialized {
		fmt.Fprintf(c.App.Writer, "initialized %s\n", name)
	}

	for _, w := range res.Warnings {
		fmt.Fprintf(c.App.Writer, "warning: %s\n", w)
	}

	if !res.Changed() {
		fmt.Fprintln(c.App.Writer, "nothing to clear")
	}

	return nil
}

// freeReport is the json output of the free command.
type freeReport struct {
	Disks clearpart.FreeSpaceReport `json:"disks"`
	Total clearpart.DiskFree        `json:"total"`

	// Root is the free space in / and /usr.
	Root uint64 `json:"root"`
}

func freeRows(report clearpart.FreeSpaceReport) [][]string {
	names := make([]string, 0, len(report))
	for name := range report {
		names = append(names, name)
	}

	sort.Strings(names)

	data := [][]string{{"DISK", "DISK FREE", "FS FREE", "TOTAL"}}

	for _, name := range names {
		f := report[name]
		data = append(data, []string{name, sizeString(f.Disk), sizeString(f.FS), sizeString(f.Total())})
	}

	total := report.Total()

	return append(data, []string{"total", sizeString(total.Disk), sizeString(total.FS), sizeString(total.Total())})
}

func freeSpace(c *cli.Context) error {
	var clearType *clearpart.ClearType

	if c.IsSet("as") {
		t, err := clearpart.ParseClearType(c.String("as"))
		if err != nil {
			return err
		}

		clearType = &t
	}

	s, _, err := newSession(c)
	if err != nil {
		return err
	}

	report, err := s.GetFreeSpace(c.Args().Slice(), clearType)
	if err != nil {
		return err
	}

	root, err := s.FileSystemFreeSpace()
	if err != nil {
		return err
	}

	if c.Bool("json") {
		return printJSON(c.App.Writer, freeReport{Disks: report, Total: report.Total(), Root: root})
	}

	printTextTable(c.App.Writer, freeRows(report))
	fmt.Fprintf(c.App.Writer, "free in / and /usr: %s\n", sizeString(root))

	return nil
}

func resolveProtected(c *cli.Context) error {
	s, _, err := newSession(c)
	if err != nil {
		return err
	}

	p := s.Protection()

	if c.Args().Len() != 0 {
		if p, err = s.ResolveProtected(c.Args().Slice()); err != nil {
			return err
		}
	}

	if c.Bool("json") {
		return printJSON(c.App.Writer, p)
	}

	for _, name := range p.Names {
		fmt.Fprintf(c.App.Writer, "protected %s\n", name)
	}

	if p.Live != "" {
		fmt.Fprintf(c.App.Writer, "live device %s\n", p.Live)
	}

	for _, spec := range p.Unresolved {
		fmt.Fprintf(c.App.Writer, "unresolved %s\n", spec)
	}

	return nil
}

func dumpLayout(c *cli.Context) error {
	_, g, err := newSession(c)
	if err != nil {
		return err
	}

	data, err := memgraph.MarshalLayout(g.Layout(), c.Bool("yaml"))
	if err != nil {
		return err
	}

	_, err = c.App.Writer.Write(data)

	return err
}
