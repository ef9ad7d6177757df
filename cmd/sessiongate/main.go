// Command sessiongate serves a session-guarded product API.
package main

import "github.com/Sentinel-Gate/sessiongate/cmd/sessiongate/cmd"

func main() {
	cmd.Execute()
}
