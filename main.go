package main

import "github.com/turbolytics/patcher/internal/cmd"

func main() {
	cmd.Execute()
}
