package main

import "github.com/bnema/craftctl/cmd"

func main() {
	cmd.Execute()
}
