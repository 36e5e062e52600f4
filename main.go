package main

import "github.com/adityamishra28203/healthvault/cmd"

func main() {
	cmd.Execute()
}
