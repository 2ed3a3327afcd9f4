// Command bbos inspects and records the channels of a robot.
package main

import "github.com/sarchlab/bbos/cmd/bbos/cmd"

func main() {
	cmd.Execute()
}
