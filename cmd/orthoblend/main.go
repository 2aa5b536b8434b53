package main

import "github.com/MeKo-Tech/orthoblend/internal/cmd"

func main() {
	cmd.Execute()
}
