package main

import "github.com/qepting91/wikisync/cmd/wikisync/cmd"

func main() {
	cmd.Execute()
}
