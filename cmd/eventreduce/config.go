package main

import (
	"github.com/vango-dev/eventreduce/internal/config"
)

// loadConfig loads the config at path, or searches from the working
// directory when path is empty. Without any config file the defaults apply.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	root, err := config.FindProjectRoot(".")
	if err != nil {
		return config.New(), nil
	}
	return config.Load(root)
}
