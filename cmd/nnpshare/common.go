package main

import (
	"flag"
	"fmt"

	"github.com/creachadair/command"
)

// globalFlags are available to every subcommand.
type globalFlags struct {
	Config string `flag:"config,c,Config file path"`
	Output string `flag:"output,o,Output format (json, table)"`
}

// modelFlags names the model a frontend subcommand requests.
type modelFlags struct {
	Model string `flag:"model,m,Model name to request"`
}

// domainFlags overrides the domain id LoadConfig would otherwise assign.
type domainFlags struct {
	Domain int `flag:"domain,d,Domain id override"`
}

// Flags binds a flag struct into a command.SetFlags hook and stashes it on
// env.Config so the Run function can retrieve it by type assertion.
func Flags(bind func(*flag.FlagSet, interface{}), flags interface{}) func(*command.Env, *flag.FlagSet) {
	return func(env *command.Env, fs *flag.FlagSet) {
		bind(fs, flags)
		env.Config = flags
	}
}

func requireString(value, name string) error {
	if value == "" {
		return fmt.Errorf("missing required flag --%s", name)
	}
	return nil
}
