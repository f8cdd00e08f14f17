// Command nnpshare runs either half of the weight-sharing protocol: a
// backend that publishes model weights to requesting frontends, or a
// frontend that requests one model and resolves its tensors.
package main

import (
	"os"

	"github.com/creachadair/command"
)

func main() {
	root := &command.C{
		Name: "nnpshare",
		Help: "Share neural network model weights between cooperating domains.",

		Commands: append(serveCommands(), configCommands()...),
	}

	env := root.NewEnv(nil).MergeFlags(true)
	command.RunOrFail(env, os.Args[1:])
}
