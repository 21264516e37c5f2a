// Command semstore maintains a semantic-wiki fact store.
package main

import (
	"os"

	"github.com/roach88/semstore/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	err := root.Execute()
	if err == nil {
		return
	}

	format, _ := root.PersistentFlags().GetString("format")
	verbose, _ := root.PersistentFlags().GetBool("verbose")
	f := &cli.OutputFormatter{
		Format:    format,
		Writer:    os.Stderr,
		ErrWriter: os.Stderr,
		Verbose:   verbose,
	}
	if format == "json" {
		f.Writer = os.Stdout
	}
	_ = f.Fail(err)
	os.Exit(cli.GetExitCode(err))
}
