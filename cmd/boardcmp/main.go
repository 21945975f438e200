package main

import "github.com/MeKo-Tech/boardcmp/cmd/boardcmp/cmd"

func main() {
	cmd.Execute()
}
