package main

import "github.com/oshokin/cucoon/cmd/cucoon-dashboard/cmd"

func main() {
	cmd.Execute()
}
