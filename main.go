package main

import "github.com/btf2json/btf2json/cmd"

func main() {
	cmd.Execute()
}
