package main

import "github.com/oshokin/cucoon/cmd/cucoon-ctl/cmd"

func main() {
	cmd.Execute()
}
