package main

import "github.com/cppla/guildboard/cmd"

func main() {
	cmd.Execute()
}
