package main

import "github.com/i474232898/weather-aggregation/internal/cli"

func main() {
	cli.Execute()
}
