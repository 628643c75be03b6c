package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"quicknginx/backend/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "错误:", cli.DescribeError(err))
		return 1
	}
	return 0
}
