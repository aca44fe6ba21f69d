package main

import (
	"election-backend/cmd/electionctl/cmd"
)

func main() {
	cmd.Execute()
}
