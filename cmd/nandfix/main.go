package main

import "github.com/OpenTraceLab/OpenTraceNAND/cmd/nandfix/cmd"

func main() {
	cmd.Execute()
}
