//go:build linux

package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
)

var version string

func printTextTable(w io.Writer, data [][]string) {
	var lengths = make([]int, len(data[0]))

	for _, line := range data {
		for i, field := range line {
			if len(field) > lengths[i] {
				lengths[i] = len(field)
			}
		}
	}

	fmts := make([]string, len(lengths))

	for i, l := range lengths {
		fmts[i] = fmt.Sprintf("%%-%ds", l)
	}

	pfmt := strings.Join(fmts, " | ") + " |\n"

	for _, line := range data {
		s := make([]interface{}, len(line))
		for i, v := range line {
			s[i] = v
		}

		fmt.Fprintf(w, pfmt, s...)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "clearpart",
		Version: version,
		Usage:   "Decide which partitions an installation would clear",
		Flags:   globalFlags,
		Commands: []*cli.Command{
			&showCommand,
			&shouldClearCommand,
			&clearCommand,
			&freeCommand,
			&protectCommand,
			&dumpCommand,
		},
	}
}

func main() {
	err := newApp().Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
