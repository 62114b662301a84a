package main

import "github.com/perf-analysis/fieldaccess/cmd/cli/cmd"

func main() {
	cmd.Execute()
}
