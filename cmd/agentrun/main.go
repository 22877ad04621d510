package main

import (
	"fmt"
	"os"
)

var Version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "--version", "version", "-v":
		fmt.Println(Version)
		return
	case "agent":
		if err := runAgent(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: agentrun agent --agent-config <path> [--prompt \"...\"] [--model claude-sonnet-4-5-20250929] [--auth-path ~/.claude/tokens.json] [--log-dir path]")
}
