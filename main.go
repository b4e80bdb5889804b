package main

import "github.com/SecurityRonin/nfchat-sub001/internal/cli"

func main() {
	cli.Execute()
}
