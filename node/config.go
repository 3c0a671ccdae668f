package node

import "path/filepath"

// Config holds the node container options.
type Config struct {
	// Name is the instance name, used for the data directory layout.
	Name string

	// DataDir is the root directory for databases and keys. Empty means
	// a memory backed ephemeral node.
	DataDir string
}

func (c Config) name() string {
	if c.Name == "" {
		return "provotum"
	}
	return c.Name
}

// InstanceDir returns the directory holding this instance's data.
func (c Config) InstanceDir() string {
	if c.DataDir == "" {
		return ""
	}
	return filepath.Join(c.DataDir, c.name())
}

// ResolvePath resolves a path inside the instance directory.
func (c Config) ResolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if c.DataDir == "" {
		return ""
	}
	return filepath.Join(c.InstanceDir(), path)
}
