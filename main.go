package main

import "github.com/vinayakanadinni99/ETL-Finance/cmd"

func main() {
	cmd.Execute()
}
