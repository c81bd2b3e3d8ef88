package main

import "github.com/jfmyers9/backfill/cmd"

func main() {
	cmd.Execute()
}
