package main

import "github.com/reimbursehq/reimbursement-service/cmd"

func main() {
	cmd.Execute()
}
