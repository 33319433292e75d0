package main

import "github.com/aop-weaver/cmd/weaver/cmd"

func main() {
	cmd.Execute()
}
