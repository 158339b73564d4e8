package main

import "medigateway/cmd/medibench/cmd"

func main() {
	cmd.Execute()
}
