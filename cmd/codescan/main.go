package main

import "github.com/ayusman/codescan/cmd/codescan/cmd"

func main() {
	cmd.Execute()
}
