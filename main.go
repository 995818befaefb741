package main

import "github.com/endorses/lippyguard/cmd"

func main() {
	cmd.Execute()
}
